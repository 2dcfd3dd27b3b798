package swcache_test

import (
	"testing"

	"github.com/bool64/swcache"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		req  *swcache.Request
		kind swcache.Kind
	}{
		{req: get(scope), kind: swcache.KindHTML},
		{req: get("https://pads.test"), kind: swcache.KindHTML},
		{req: get("https://pads.test?utm=1"), kind: swcache.KindHTML},
		{req: get(scope + "index.html"), kind: swcache.KindHTML},
		{req: get(scope + "songs/"), kind: swcache.KindHTML},
		{req: get(scope + "page.html?utm=1#top"), kind: swcache.KindHTML},
		{req: navigate(scope + "songs"), kind: swcache.KindHTML},
		{req: navigate(scope + "audio/piano.mp3"), kind: swcache.KindHTML},
		{req: get(scope + "audio/piano.mp3"), kind: swcache.KindAudio},
		{req: get(scope + "audio/PIANO.MP3"), kind: swcache.KindAudio},
		{req: get(scope + "audio/piano.mp3?v=2"), kind: swcache.KindAudio},
		{req: get(scope + "audio/piano.ogg"), kind: swcache.KindOther},
		{req: get(scope + "app.js"), kind: swcache.KindOther},
		{req: get(scope + "songs"), kind: swcache.KindOther},
	} {
		assert.Equal(t, tc.kind, swcache.Classify(tc.req), tc.req.URL)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "html", swcache.KindHTML.String())
	assert.Equal(t, "audio", swcache.KindAudio.String())
	assert.Equal(t, "other", swcache.KindOther.String())
}
