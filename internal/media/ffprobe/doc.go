// Package ffprobe runs ffprobe and exposes the fields the reel pipeline
// checks: duration, picture dimensions and stream presence. Render and
// assets depend on a one-method prober interface so tests can fake it.
package ffprobe
