package figma

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidFileReference is returned when no file key can be found in the input
var ErrInvalidFileReference = errors.New("invalid figma file url or key")

var (
	bareKeyRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{10,64}$`)
	pathKeyRe  = regexp.MustCompile(`/(?:file|design|proto)/([A-Za-z0-9_-]+)`)
	queryKeyRe = regexp.MustCompile(`[?&]key=([A-Za-z0-9_-]+)`)
)

// ExtractFileKey accepts a bare file key or any share URL and returns the key
func ExtractFileKey(urlOrKey string) (string, error) {
	s := strings.TrimSpace(urlOrKey)
	if s == "" {
		return "", ErrInvalidFileReference
	}
	if bareKeyRe.MatchString(s) {
		return s, nil
	}
	if m := pathKeyRe.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	if m := queryKeyRe.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	return "", ErrInvalidFileReference
}
