package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

func TestBuildHeader_AppliesEveryEntry(t *testing.T) {
	headers := map[string]string{
		"User-Agent": "test-agent/1.0",
		"Accept":     "*/*",
		"referer":    "https://www.tiktok.com/explore",
	}

	h, err := BuildHeader(headers, "")
	require.NoError(t, err)

	assert.Equal(t, "test-agent/1.0", h.Get("User-Agent"))
	assert.Equal(t, "*/*", h.Get("Accept"))
	assert.Equal(t, "https://www.tiktok.com/explore", h.Get("Referer"))
	assert.Empty(t, h.Values("Cookie"))
}

func TestBuildHeader_CookieWins(t *testing.T) {
	headers := map[string]string{
		"cookie": "from=headers",
		"Accept": "*/*",
	}

	h, err := BuildHeader(headers, "sessionid=abc; tt_csrf=def")
	require.NoError(t, err)

	assert.Equal(t, []string{"sessionid=abc; tt_csrf=def"}, h.Values("Cookie"))
}

func TestBuildHeader_EmptyCookieKeepsCallerValue(t *testing.T) {
	h, err := BuildHeader(map[string]string{"Cookie": "from=headers"}, "")
	require.NoError(t, err)

	assert.Equal(t, "from=headers", h.Get("Cookie"))
}

func TestBuildHeader_InvalidName(t *testing.T) {
	_, err := BuildHeader(map[string]string{"Bad Name": "v"}, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHeader)
	assert.Contains(t, err.Error(), "Bad Name")
}

func TestBuildHeader_InvalidValue(t *testing.T) {
	_, err := BuildHeader(map[string]string{"X-Test": "line\r\nInjected: yes"}, "")

	require.Error(t, err)
	assert.Equal(t, domain.KindHeader, domain.KindOf(err))
}

func TestBuildHeader_InvalidCookie(t *testing.T) {
	_, err := BuildHeader(nil, "a=b\nc=d")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHeader)
	assert.Contains(t, err.Error(), "Cookie")
}

func TestValidateHeaders_ReportsFirstSortedName(t *testing.T) {
	err := ValidateHeaders(map[string]string{
		"Z Bad": "v",
		"A Bad": "v",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "A Bad")
}
