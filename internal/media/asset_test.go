package media_test

import (
	"testing"

	"reelsmith/internal/media"
)

func TestKindFromPath(t *testing.T) {
	cases := map[string]media.Kind{
		"/pool/images/stoic/a.JPG":  media.KindImage,
		"/pool/clips/b.mp4":         media.KindVideo,
		"/pool/audio/ambient.m4a":   media.KindAudio,
		"/pool/images/stoic/c.webp": media.KindImage,
	}
	for path, want := range cases {
		got, ok := media.KindFromPath(path)
		if !ok || got != want {
			t.Fatalf("KindFromPath(%q) = %q, %v", path, got, ok)
		}
	}
	if _, ok := media.KindFromPath("/pool/notes.txt"); ok {
		t.Fatal("expected text file to be rejected")
	}
}

func TestRegionCenter(t *testing.T) {
	x, y := media.Region{X: 0.2, Y: 0.1, W: 0.4, H: 0.2}.Center()
	if x < 0.399 || x > 0.401 || y < 0.199 || y > 0.201 {
		t.Fatalf("unexpected center %.3f,%.3f", x, y)
	}
}
