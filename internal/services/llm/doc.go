// Package llm is a minimal OpenRouter chat client for JSON generation.
//
// The content stage sends one system and one user prompt per attempt and
// decodes the reply with DecodeJSON. The client makes exactly one request per
// call and classifies failures with the services markers, so retry and
// backoff stay with the pipeline stage that owns the deadline.
package llm
