package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RequiredFilters are the ffmpeg filters the renderer builds graphs from.
var RequiredFilters = []string{"zoompan", "vignette", "rgbashift", "drawtext", "eq", "crop", "scale", "concat", "amix", "afade", "apad"}

// CheckFFmpegFilters runs `ffmpeg -filters` and reports any required filter
// the build lacks. drawtext is the usual casualty of builds without freetype.
func CheckFFmpegFilters(ctx context.Context, binary string, required []string) Status {
	status := Status{Name: "FFmpeg filters", Command: binary, Description: "Filters used by the reel renderer"}
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-filters").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("list filters: %v", err)
		return status
	}
	missing := MissingFilters(out, required)
	if len(missing) > 0 {
		status.Detail = "missing: " + strings.Join(missing, ", ")
		return status
	}
	status.Available = true
	return status
}

// MissingFilters parses `ffmpeg -filters` output and returns the required
// names that do not appear.
func MissingFilters(listing []byte, required []string) []string {
	available := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Filter rows look like " TSC zoompan  V->V  Apply Zoom & Pan effect."
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		available[fields[1]] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
