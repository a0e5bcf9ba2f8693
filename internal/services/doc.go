// Package services defines shared utilities consumed by the pipeline stages
// and the external integrations they call.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, variants and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so the orchestrator can
//     decide between retry, fallback and immediate failure from a single place.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
