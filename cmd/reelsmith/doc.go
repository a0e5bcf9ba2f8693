// Package main hosts the reelsmith CLI.
//
// `reelsmith run` executes one post end to end and is meant to be invoked by
// a scheduler (cron or a systemd timer). The remaining commands inspect and
// repair the persisted run state: status, history, counter, plan and
// reconcile for publishes whose outcome was unknown. doctor reports
// dependency and credential health, config manages the TOML file and
// test-notify checks the ntfy wiring.
//
// Secrets may come from the environment or a .env file, which is loaded
// before the configuration so its values take part in env fallbacks.
package main
