package netinfo

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIPIsUsable(t *testing.T) {
	got := LocalIP()
	require.NotEmpty(t, got)

	ip := net.ParseIP(got)
	require.NotNil(t, ip, "LocalIP returned %q, not a valid IP", got)
	assert.NotNil(t, ip.To4())
}
