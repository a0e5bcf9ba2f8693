// Package ffmpeg runs the ffmpeg binary. Callers build argument lists and
// depend on the Runner interface so tests can substitute a fake.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"reelsmith/internal/services"
)

// Runner executes one ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// Exec runs a real ffmpeg binary.
type Exec struct {
	Binary string
}

var commandContext = exec.CommandContext

// Run executes ffmpeg with args. Failures carry the tail of stderr and
// classify as external tool errors.
func (e Exec) Run(ctx context.Context, args ...string) error {
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitErr *exec.ExitError
	msg := "ffmpeg failed"
	if errors.As(err, &exitErr) {
		msg = fmt.Sprintf("ffmpeg exited with status %d", exitErr.ExitCode())
	}
	return services.Wrap(services.ErrExternalTool, "", "ffmpeg", msg+": "+Tail(string(output), 600), err)
}

// Tail returns at most n trailing bytes of s, trimmed.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// BaseArgs are the flags every invocation starts with.
func BaseArgs() []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}
}

// Seconds formats a duration for ffmpeg options with millisecond precision.
func Seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
