// Package publish delivers rendered artifacts to their destination.
//
// Instagram publishes through the Graph API container flow: media is copied
// into a publicly served directory, a container is created from its URL,
// the container is polled until processing finishes and is then published.
// Only the final media_publish call can leave the outcome unknown; those
// failures carry services.ErrUnknownOutcome so the caller can park the run
// for reconciliation instead of retrying.
//
// DryRun copies the artifact under the output directory and returns a
// synthetic post id, leaving the account untouched.
package publish
