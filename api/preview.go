package api

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

var binaryTypes = []string{
	"image/", "video/", "audio/", "application/octet-stream",
	"application/pdf", "application/zip", "application/gzip",
	"application/x-tar", "application/x-rar", "font/",
}

var safeTextTypes = []string{
	"text/", "application/json", "application/xml",
	"application/javascript", "application/x-www-form-urlencoded",
}

func fingerprint(kind string, body []byte) string {
	hash := sha256.Sum256(body)
	return fmt.Sprintf("<%s: %d bytes, sha256=%s>", kind, len(body), hex.EncodeToString(hash[:8]))
}

// safeBodyPreview returns a preview of body for logging. Binary and unknown
// content is replaced by its size and hash.
func safeBodyPreview(body []byte, contentType string, maxChars int) string {
	if maxChars == 0 {
		maxChars = 200
	}
	lower := strings.ToLower(contentType)
	for _, t := range binaryTypes {
		if strings.Contains(lower, t) {
			return fingerprint("binary", body)
		}
	}
	safe := false
	for _, t := range safeTextTypes {
		if strings.Contains(lower, t) {
			safe = true
			break
		}
	}
	if !safe && contentType != "" {
		return fingerprint("unknown type", body)
	}
	if len(body) > maxChars {
		return string(body[:maxChars]) + fmt.Sprintf("[truncated, total: %d chars]", len(body))
	}
	return string(body)
}
