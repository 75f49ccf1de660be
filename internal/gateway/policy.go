package gateway

import (
	"strings"

	"github.com/serrebi/streamgate/internal/config"
)

// Decision is the relay handling selected for a source URL.
type Decision int

const (
	// DecideVideo redirects the caller to a session-backed HLS playlist.
	DecideVideo Decision = iota
	// DecideAudioPassthrough proxies the upstream bytes unmodified.
	DecideAudioPassthrough
	// DecideAudioTranscode re-encodes the upstream audio to MP3.
	DecideAudioTranscode
)

// Policy classifies source URLs for the relay routes. The hint lists are
// configuration, not contract; defaults ship in the config package.
type Policy struct {
	audioHints          []string
	passthroughSuffixes []string
	transcodeHints      []string
}

// NewPolicy builds a Policy from a configuration snapshot.
func NewPolicy(snap config.Snapshot) Policy {
	return Policy{
		audioHints:          lowerAll(snap.AudioHints),
		passthroughSuffixes: lowerAll(snap.PassthroughSuffixes),
		transcodeHints:      lowerAll(snap.TranscodeHints),
	}
}

// Classify decides how to relay the given source. forceAudio reflects an
// explicit mode=audio parameter or a request on the /audio route.
func (p Policy) Classify(targetURL string, forceAudio bool) Decision {
	target := strings.ToLower(targetURL)

	if !forceAudio && !containsAny(target, p.audioHints) {
		return DecideVideo
	}

	for _, hint := range p.transcodeHints {
		if strings.Contains(target, hint) {
			return DecideAudioTranscode
		}
	}
	for _, suffix := range p.passthroughSuffixes {
		if strings.HasSuffix(target, suffix) {
			return DecideAudioPassthrough
		}
	}
	return DecideAudioTranscode
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
