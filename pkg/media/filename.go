// Package media implements upload validation and filename derivation
// for the media endpoint.
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
	"unicode"
)

// hashLen is the number of hex digits of the content hash kept in the
// filename. 16 digits (64 bits) is plenty to avoid accidental collisions
// while keeping names readable.
const hashLen = 16

// maxNameLen bounds the sanitized slice of the original filename.
const maxNameLen = 24

// AllowedType reports whether the declared content type's base media
// type appears in the allow-list. Parameters like charset are ignored.
func AllowedType(contentType string, allowList []string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range allowList {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// Filename derives the storage path for an upload: a year/month bucket,
// the content hash, and a sanitized slice of the original name.
//
// Hashing the content makes the name collision-resistant and
// deterministic, so re-uploading an identical file lands on the same
// path. Sanitizing the original name strips anything that could escape
// the bucket directory.
func Filename(originalName string, data []byte, now time.Time) string {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])[:hashLen]

	base, ext := splitName(originalName)
	name := hash
	if base != "" {
		name = hash + "-" + base
	}

	return fmt.Sprintf("%04d/%02d/%s%s", now.Year(), int(now.Month()), name, ext)
}

// splitName sanitizes the client-supplied filename into a safe base
// slice and extension. Only the final path element is considered.
func splitName(originalName string) (base, ext string) {
	name := path.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext = strings.ToLower(path.Ext(name))
	base = sanitize(strings.TrimSuffix(name, path.Ext(name)))

	if len(base) > maxNameLen {
		base = base[:maxNameLen]
	}
	base = strings.Trim(base, "-")

	if !validExt(ext) {
		ext = ""
	}
	return base, ext
}

// sanitize lowercases and reduces a name to [a-z0-9-].
func sanitize(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// validExt accepts a plain dot-prefixed alphanumeric extension.
func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
