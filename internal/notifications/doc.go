// Package notifications delivers run events via ntfy.
//
// The service publishes to the topic configured in config.toml (a bare topic
// name resolves against ntfy.sh) and degrades to a no-op when no topic is set.
// Per-event switches in the notifications section silence completion,
// failure and fallback messages; unknown publish outcomes are always sent
// because they need an operator.
package notifications
