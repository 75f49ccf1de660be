package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewritePlaylistReplacesHeader(t *testing.T) {
	raw := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:6",
		"#EXT-X-TARGETDURATION:2",
		"#EXT-X-MEDIA-SEQUENCE:7",
		"#EXTINF:2.000000,",
		"seg_7.ts",
		"#EXTINF:2.000000,",
		"seg_8.ts",
	}, "\n")
	base := "http://10.0.0.5:8480/transcode/abc/"

	got := RewritePlaylist(raw, base)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")

	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, "#EXT-X-VERSION:3", lines[1])
	assert.Equal(t, "#EXT-X-TARGETDURATION:2", lines[2])
	assert.Equal(t, "#EXT-X-DISCONTINUITY", lines[3])

	// The engine's own format declarations appear exactly once.
	assert.Equal(t, 1, strings.Count(got, "#EXTM3U"))
	assert.Equal(t, 1, strings.Count(got, "#EXT-X-VERSION"))
}

func TestRewritePlaylistAbsolutizesSegments(t *testing.T) {
	raw := "#EXTINF:2.000000,\nseg_3.ts\n"
	base := "http://10.0.0.5:8480/transcode/abc/"

	got := RewritePlaylist(raw, base)

	assert.Contains(t, got, "#EXTINF:2.000000,")
	assert.Contains(t, got, base+"seg_3.ts")
	assert.NotContains(t, got, "\nseg_3.ts")
}

func TestRewritePlaylistPreservesTagOrder(t *testing.T) {
	raw := strings.Join([]string{
		"#EXT-X-MEDIA-SEQUENCE:4",
		"#EXTINF:2.000000,",
		"seg_4.ts",
		"#EXT-X-ENDLIST",
	}, "\n")

	got := RewritePlaylist(raw, "http://h/")
	seq := strings.Index(got, "#EXT-X-MEDIA-SEQUENCE:4")
	inf := strings.Index(got, "#EXTINF")
	end := strings.Index(got, "#EXT-X-ENDLIST")

	assert.Greater(t, seq, -1)
	assert.Greater(t, inf, seq)
	assert.Greater(t, end, inf)
}

func TestRewritePlaylistSkipsBlankLines(t *testing.T) {
	got := RewritePlaylist("\n\n#EXTINF:2.0,\n\nseg_1.ts\n\n", "http://h/")
	assert.NotContains(t, got, "\n\n")
}

func TestBootstrapPlaylist(t *testing.T) {
	got := BootstrapPlaylist("http://10.0.0.5:8480")

	assert.True(t, strings.HasPrefix(got, "#EXTM3U\n"))
	assert.Contains(t, got, "#EXT-X-VERSION:3")
	assert.Contains(t, got, "#EXT-X-TARGETDURATION:2")
	assert.Contains(t, got, "#EXT-X-MEDIA-SEQUENCE:0")
	assert.Contains(t, got, "#EXT-X-DISCONTINUITY")
	assert.Contains(t, got, "#EXTINF:1.0,")
	assert.Contains(t, got, "http://10.0.0.5:8480/bootstrap.ts")
}
