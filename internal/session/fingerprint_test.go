package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serrebi/streamgate/internal/types"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("http://radio.example.com/live", types.ProfileAuto)
	b := Fingerprint("http://radio.example.com/live", types.ProfileAuto)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestFingerprintDistinguishesProfile(t *testing.T) {
	url := "http://radio.example.com/live"
	a := Fingerprint(url, types.ProfileAuto)
	b := Fingerprint(url, types.ProfileRadioTranscode)
	assert.NotEqual(t, a, b)
}

func TestFingerprintDistinguishesURL(t *testing.T) {
	a := Fingerprint("http://a.example.com/live", types.ProfileAuto)
	b := Fingerprint("http://b.example.com/live", types.ProfileAuto)
	assert.NotEqual(t, a, b)
}

func TestFingerprintTrimsWhitespace(t *testing.T) {
	a := Fingerprint("  http://radio.example.com/live  ", types.ProfileAuto)
	b := Fingerprint("http://radio.example.com/live", types.ProfileAuto)
	assert.Equal(t, a, b)
}
