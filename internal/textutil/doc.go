// Package textutil provides small text helpers shared by content generation
// and rendering: token fingerprints for near-duplicate quote detection,
// filesystem-safe slugs, rune-safe truncation, and escaping for ffmpeg
// drawtext filters.
//
// Fingerprints are term-frequency vectors. Tokenization lowercases text,
// splits on non-alphanumeric characters, and drops tokens shorter than three
// characters, so stop words like "a" and "of" never dominate a comparison.
package textutil
