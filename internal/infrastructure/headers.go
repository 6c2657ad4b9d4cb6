package infrastructure

import (
	"errors"
	"net/http"
	"sort"

	"golang.org/x/net/http/httpguts"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

var (
	errInvalidHeaderName  = errors.New("invalid header field name")
	errInvalidHeaderValue = errors.New("invalid header field value")
)

// ValidateHeaders checks every name and value against HTTP field syntax.
// Names are visited in sorted order so the reported entry is stable.
func ValidateHeaders(headers map[string]string) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !httpguts.ValidHeaderFieldName(name) {
			return domain.NewHeaderError(name, errInvalidHeaderName)
		}
		if !httpguts.ValidHeaderFieldValue(headers[name]) {
			return domain.NewHeaderError(name, errInvalidHeaderValue)
		}
	}
	return nil
}

// BuildHeader turns the caller's header table and cookie into a request
// header. A non-empty cookie is set last and replaces any caller-supplied
// Cookie entry, whatever its casing.
func BuildHeader(headers map[string]string, cookie string) (http.Header, error) {
	if err := ValidateHeaders(headers); err != nil {
		return nil, err
	}

	h := make(http.Header, len(headers)+1)
	for name, value := range headers {
		h.Set(name, value)
	}

	if cookie != "" {
		if !httpguts.ValidHeaderFieldValue(cookie) {
			return nil, domain.NewHeaderError("Cookie", errInvalidHeaderValue)
		}
		h.Set("Cookie", cookie)
	}
	return h, nil
}
