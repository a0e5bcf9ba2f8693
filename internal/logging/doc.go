// Package logging builds the slog loggers reelsmith writes through.
//
// A run logs one-line console records to stdout and JSON records to
// reelsmith.log under paths.log_dir. Both sinks hang off a tee handler behind
// a level floor, which lets logging.stage_overrides make a single stage
// louder or quieter than the rest. WithContext tags records with the run id,
// stage and variant carried in the context; WarnWithContext and
// ErrorWithContext make sure every problem names an event type and a hint.
package logging
