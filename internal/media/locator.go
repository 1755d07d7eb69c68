package media

import (
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// LocatorScheme addresses local recordings and narration audio.
const LocatorScheme = "local-video"

const locatorPrefix = LocatorScheme + "://"

// Locator returns the local-video:// address for an absolute path. An empty
// path yields an empty locator.
func Locator(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	return locatorPrefix + filepath.ToSlash(path)
}

// IsLocator reports whether value uses the local-video scheme.
func IsLocator(value string) bool {
	return strings.HasPrefix(value, locatorPrefix)
}

// ResolveLocator converts a locator back to a filesystem path. The query
// suffix is dropped and percent-escapes are decoded. Values without the
// scheme are treated as plain paths.
func ResolveLocator(value string) (string, error) {
	trimmed := StripQuery(strings.TrimPrefix(value, locatorPrefix))
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(decoded), nil
}

// StripQuery removes a ?query suffix.
func StripQuery(value string) string {
	if idx := strings.IndexByte(value, '?'); idx >= 0 {
		return value[:idx]
	}
	return value
}

// SameSource reports whether two locators address the same media, ignoring
// any query suffix such as cache busters.
func SameSource(a, b string) bool {
	return StripQuery(a) == StripQuery(b)
}

// Versioned tags a locator with a ?t= cache buster so a player reloads a
// file rewritten in place. Any earlier query is replaced.
func Versioned(locator string, version int64) string {
	if locator == "" {
		return ""
	}
	return StripQuery(locator) + "?t=" + strconv.FormatInt(version, 10)
}
