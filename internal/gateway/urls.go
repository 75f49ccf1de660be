package gateway

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/serrebi/streamgate/internal/types"
)

// EncodeHeaders serializes an upstream header set for the headers query
// parameter: base64-encoded JSON. Returns "" for an empty set.
func EncodeHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	data, err := json.Marshal(headers)
	if err != nil {
		slog.Warn("failed to encode headers", "error", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeHeaders parses the headers query parameter. Malformed input yields
// an empty set; the relay still works, just without the caller's headers.
func DecodeHeaders(encoded string) map[string]string {
	headers := map[string]string{}
	if encoded == "" {
		return headers
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		slog.Debug("ignoring malformed headers parameter", "error", err)
		return headers
	}
	if err := json.Unmarshal(data, &headers); err != nil {
		slog.Debug("ignoring malformed headers parameter", "error", err)
		return map[string]string{}
	}
	return headers
}

// StreamURL returns an absolute relay URL for the target source.
func (g *Gateway) StreamURL(target string, headers map[string]string, mode string) string {
	params := url.Values{}
	params.Set("url", target)
	if mode != "" {
		params.Set("mode", mode)
	}
	if encoded := EncodeHeaders(headers); encoded != "" {
		params.Set("headers", encoded)
	}
	return g.BaseURL() + "/stream?" + params.Encode()
}

// AudioURL returns an absolute relay URL that forces the audio path.
func (g *Gateway) AudioURL(target string, headers map[string]string) string {
	return g.StreamURL(target, headers, "audio")
}

// TranscodedURL returns the absolute session-backed playlist URL for the
// target, creating the transcode session if none exists.
func (g *Gateway) TranscodedURL(target string, headers map[string]string, profile types.Profile) string {
	if !profile.Valid() {
		profile = types.ProfileAuto
	}
	return g.BaseURL() + g.registry.GetOrCreate(target, headers, profile)
}
