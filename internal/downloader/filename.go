package downloader

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// resolveFileName picks the destination filename for a finished fetch, in
// priority order: Content-Disposition header, last URL path segment, then a
// synthesized "<name>_<unix>.torrent" fallback.
func resolveFileName(resp *http.Response, fallbackName string, now time.Time) string {
	if name := fileNameFromDisposition(resp.Header.Get("Content-Disposition")); name != "" {
		return name
	}

	if resp.Request != nil && resp.Request.URL != nil {
		if name := path.Base(resp.Request.URL.Path); name != "" && name != "/" && name != "." {
			return name
		}
	}

	if fallbackName == "" {
		fallbackName = "torrent"
	}
	return fmt.Sprintf("%s_%d.torrent", fallbackName, now.Unix())
}

// fileNameFromDisposition parses a filename= or RFC 5987 filename*= value
// out of a Content-Disposition header. Tracker responses are known to carry
// UTF-8 names mis-decoded as Latin-1, so the result goes through a mojibake
// repair pass.
func fileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}

	if idx := strings.Index(header, "filename="); idx >= 0 {
		name := header[idx+len("filename="):]
		name = strings.Trim(name, `"'`)
		if semi := strings.Index(name, ";"); semi >= 0 {
			name = name[:semi]
		}
		name = strings.Trim(name, `"'`)
		if name != "" {
			if decoded, err := url.PathUnescape(name); err == nil {
				name = decoded
			}
			return repairMojibake(name)
		}
	}

	if idx := strings.Index(header, "filename*=UTF-8''"); idx >= 0 {
		name := header[idx+len("filename*=UTF-8''"):]
		if semi := strings.Index(name, ";"); semi >= 0 {
			name = name[:semi]
		}
		if decoded, err := url.PathUnescape(name); err == nil && decoded != "" {
			return repairMojibake(decoded)
		}
	}

	return ""
}

// repairMojibake recovers filenames whose UTF-8 bytes were mis-decoded as
// Latin-1. If every code point fits in a byte, the string is reinterpreted
// as UTF-8; the repaired form is kept only when it contains a CJK code
// point or is free of control characters. Anything else returns unchanged.
func repairMojibake(s string) string {
	raw := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		raw = append(raw, byte(r))
	}

	if !utf8.Valid(raw) {
		return s
	}
	repaired := string(raw)
	if repaired == s {
		return s
	}

	if containsCJK(repaired) || !containsControl(repaired) {
		return repaired
	}
	return s
}

func containsCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}

func containsControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// collisionName derives the nth fallback name for a destination that is
// already taken: a unix-timestamp suffix first, then a counter on top so
// same-second collisions still get distinct names.
func collisionName(fileName string, now time.Time, attempt int) string {
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	if attempt > 1 {
		return fmt.Sprintf("%s_%d-%d%s", base, now.Unix(), attempt-1, ext)
	}
	return fmt.Sprintf("%s_%d%s", base, now.Unix(), ext)
}

// sanitizeFileName strips path separators so a hostile header cannot climb
// out of the downloads directory.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "torrent"
	}
	return name
}
