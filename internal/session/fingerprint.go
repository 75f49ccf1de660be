package session

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/serrebi/streamgate/internal/types"
)

// Fingerprint returns the stable session identifier for a source URL and
// transcode profile. Identical inputs always produce the identical value;
// it doubles as the opaque path segment exposed to clients.
func Fingerprint(sourceURL string, profile types.Profile) string {
	sum := md5.Sum([]byte(normalizeSource(sourceURL) + "|" + string(profile)))
	return hex.EncodeToString(sum[:])
}

// normalizeSource trims insignificant whitespace so that trivially different
// spellings of the same URL map to the same session.
func normalizeSource(sourceURL string) string {
	return strings.TrimSpace(sourceURL)
}
