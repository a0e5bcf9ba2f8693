package render_test

import (
	"context"
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"reelsmith/internal/media"
	"reelsmith/internal/media/ffprobe"
)

// fakeFFmpeg simulates the duration ffmpeg would produce from an argument
// list: inputs honour -t, -loop and -stream_loop, concat sums its inputs, and
// an output -t caps the result.
type fakeFFmpeg struct {
	mu      sync.Mutex
	calls   [][]string
	sources map[string]float64
	outputs map[string]float64
	fail    error
}

func newFakeFFmpeg(sources map[string]float64) *fakeFFmpeg {
	return &fakeFFmpeg{sources: sources, outputs: map[string]float64{}}
}

type fakeInput struct {
	path  string
	limit float64
	loop  bool
	lavfi bool
}

func (f *fakeFFmpeg) Run(_ context.Context, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), args...))
	if f.fail != nil {
		return f.fail
	}
	out := args[len(args)-1]

	var inputs []fakeInput
	pending := fakeInput{limit: -1}
	outLimit := -1.0
	still := false
	graph := ""
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "-stream_loop":
			pending.loop = args[i+1] == "-1"
			i++
		case "-loop":
			pending.loop = args[i+1] == "1"
			i++
		case "-f":
			pending.lavfi = args[i+1] == "lavfi"
			i++
		case "-t":
			v, _ := strconv.ParseFloat(args[i+1], 64)
			if len(inputs) > 0 && pending == (fakeInput{limit: -1}) {
				outLimit = v
			} else {
				pending.limit = v
			}
			i++
		case "-i":
			pending.path = args[i+1]
			inputs = append(inputs, pending)
			pending = fakeInput{limit: -1}
			i++
		case "-filter_complex":
			graph = args[i+1]
			i++
		case "-frames:v":
			still = true
			i++
		}
	}

	if !still {
		var durations []float64
		for _, in := range inputs {
			if in.lavfi && strings.HasPrefix(in.path, "anullsrc") {
				continue
			}
			if kind, ok := media.KindFromPath(in.path); ok && kind == media.KindAudio {
				continue
			}
			durations = append(durations, f.inputDuration(in))
		}
		total := 0.0
		if strings.Contains(graph, "concat=n=") {
			for _, d := range durations {
				total += d
			}
		} else if len(durations) > 0 {
			total = durations[0]
		}
		if outLimit >= 0 {
			total = math.Min(total, outLimit)
		}
		f.outputs[out] = total
	}
	return os.WriteFile(out, []byte("fake"), 0o644)
}

func (f *fakeFFmpeg) inputDuration(in fakeInput) float64 {
	src := math.Inf(1)
	if !in.lavfi {
		if d, ok := f.sources[in.path]; ok {
			src = d
		} else if d, ok := f.outputs[in.path]; ok {
			src = d
		}
	}
	if in.loop {
		src = math.Inf(1)
	}
	if in.limit >= 0 {
		return math.Min(src, in.limit)
	}
	return src
}

func (f *fakeFFmpeg) callsContaining(fragment string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, call := range f.calls {
		if strings.Contains(strings.Join(call, " "), fragment) {
			out = append(out, call)
		}
	}
	return out
}

// fakeProber reports what fakeFFmpeg produced.
type fakeProber struct {
	ffmpeg      *fakeFFmpeg
	width       int
	height      int
	override    map[string]float64
	stillWidth  int
	stillHeight int
}

func (p *fakeProber) Probe(_ context.Context, path string) (ffprobe.Result, error) {
	if _, err := os.Stat(path); err != nil {
		return ffprobe.Result{}, err
	}
	if strings.HasSuffix(path, ".jpg") {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", Width: p.stillWidth, Height: p.stillHeight}}}, nil
	}
	duration, ok := p.override[path]
	if !ok {
		p.ffmpeg.mu.Lock()
		duration, ok = p.ffmpeg.outputs[path]
		p.ffmpeg.mu.Unlock()
	}
	if !ok {
		return ffprobe.Result{}, errors.New("unknown output " + path)
	}
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "video", Width: p.width, Height: p.height},
			{CodecType: "audio"},
		},
		Format: ffprobe.Format{Duration: strconv.FormatFloat(duration, 'f', 6, 64)},
	}, nil
}
