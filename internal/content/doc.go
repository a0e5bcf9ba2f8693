// Package content generates the quote package each run is built around.
//
// A generator asks a language model for one JSON document, checks it against
// an embedded JSON schema and the struct's validation tags, and refuses
// quotes that read too much like recently published ones. Every failure of
// that kind is reported as transient so the pipeline's stage retry asks for
// a fresh document. The package also builds the narration transcript and the
// post caption from the accepted content.
package content
