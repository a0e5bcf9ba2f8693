// Package pipeline sequences one posting run.
//
// A run moves through content generation, asset acquisition, rendering,
// validation, publication and commit. Every stage call is retried with
// exponential backoff under a per-stage deadline; validation and
// configuration failures stop immediately. A scheduled variant whose assets
// or render fail degrades to Standard for the current run only. The post
// counter, run record and used-asset ledger are written in a single commit
// after publication, so a failed run never moves the counter.
//
// Publication is attempted once. When the outcome of the publish call is
// unknown the run is parked as pending reconciliation and the operator
// settles it with Reconcile.
package pipeline
