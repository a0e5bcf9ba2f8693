// Package variant decides which kind of post a run produces.
//
// Selection is a pure function of the persisted post counter and the feature
// schedule in the configuration, so the same counter always yields the same
// decision. The orchestrator may override the result with Force (operator
// request) or Fallback (degraded run), neither of which touches the counter.
package variant
