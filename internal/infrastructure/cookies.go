package infrastructure

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const httpOnlyPrefix = "#HttpOnly_"

// LoadCookieFile reads a cookie file and returns a Cookie header value.
// Netscape cookies.txt files are filtered to entries whose domain matches
// domain ("" keeps every entry). Any other file is taken as a raw header
// value, with a leading "Cookie:" stripped.
func LoadCookieFile(path, domain string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read cookie file: %w", err)
	}
	content := string(data)

	if !isNetscapeCookieFile(content) {
		raw := strings.TrimSpace(content)
		if len(raw) >= len("cookie:") && strings.EqualFold(raw[:len("cookie:")], "cookie:") {
			raw = strings.TrimSpace(raw[len("cookie:"):])
		}
		return raw, nil
	}

	var pairs []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		if domain != "" && !cookieDomainMatches(fields[0], domain) {
			continue
		}
		name, value := fields[5], fields[6]
		if name == "" {
			continue
		}
		pairs = append(pairs, name+"="+value)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to parse cookie file: %w", err)
	}
	return strings.Join(pairs, "; "), nil
}

func isNetscapeCookieFile(content string) bool {
	if strings.HasPrefix(content, "# Netscape HTTP Cookie File") ||
		strings.HasPrefix(content, "# HTTP Cookie File") {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (strings.HasPrefix(line, "#") && !strings.HasPrefix(line, httpOnlyPrefix)) {
			continue
		}
		return strings.Count(line, "\t") >= 6
	}
	return false
}

// cookieDomainMatches reports whether a cookie scoped to cookieDomain is sent
// to host.
func cookieDomainMatches(cookieDomain, host string) bool {
	cookieDomain = strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	host = strings.ToLower(host)
	return host == cookieDomain || strings.HasSuffix(host, "."+cookieDomain) ||
		strings.HasSuffix(cookieDomain, "."+host)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
