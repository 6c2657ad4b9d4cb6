package infrastructure

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// HTTPClientOptions configures NewHTTPClient.
type HTTPClientOptions struct {
	// ProxyURL routes traffic through an http, https or socks5 proxy.
	ProxyURL string
}

// NewHTTPClient returns a client that follows every redirect. Requests carry
// no client-level timeout; callers bound them with a context.
func NewHTTPClient(opts HTTPClientOptions) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.ProxyURL != "" {
		if err := configureProxy(transport, opts.ProxyURL); err != nil {
			return nil, err
		}
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: followAllRedirects,
	}, nil
}

// followAllRedirects removes net/http's default ten-hop limit.
func followAllRedirects(req *http.Request, via []*http.Request) error {
	return nil
}

// configureProxy sets up proxy configuration for the transport
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if parsedURL.User != nil {
			password, _ := parsedURL.User.Password()
			auth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
	}

	return nil
}
