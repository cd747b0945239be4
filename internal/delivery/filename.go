package delivery

import (
	"regexp"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName turns a user or network name into a single safe path segment,
// also usable inside a quoted Content-Disposition filename.
func FileName(s string) string {
	name := strings.TrimLeft(unsafeFileChars.ReplaceAllString(s, "_"), ".")
	if name == "" {
		return "wireguard"
	}
	return name
}
