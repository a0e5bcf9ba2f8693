// Package preflight provides readiness checks for the services and
// filesystem paths reelsmith depends on.
//
// `reelsmith doctor` runs RunAll and prints each Result. The run command
// runs the offline subset before a run starts so a missing directory or
// credential fails fast instead of after content has been generated.
//
// Checks for disabled features are skipped.
package preflight
