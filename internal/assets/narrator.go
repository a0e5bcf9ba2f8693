package assets

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services"
	"reelsmith/internal/timing"
)

// SpeechSynthesizer renders text to an audio file.
type SpeechSynthesizer interface {
	Speech(ctx context.Context, model, text, voice, dest string) error
}

// Narrator voices a transcript segment by segment and joins the pieces,
// inserting the dramatic pause between quote and motivation.
type Narrator struct {
	Speech      SpeechSynthesizer
	Runner      ffmpeg.Runner
	Prober      Prober
	Model       string
	Voice       string
	Pause       float64
	Bitrate     string
	Concurrency int
	Logger      *slog.Logger
}

// NewNarrator builds a narrator from the fal and flash reel settings.
func NewNarrator(cfg *config.Config, speech SpeechSynthesizer, runner ffmpeg.Runner, prober Prober, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Narrator{
		Speech:      speech,
		Runner:      runner,
		Prober:      prober,
		Model:       cfg.Fal.TTSModel,
		Voice:       cfg.Fal.Voice,
		Pause:       float64(cfg.FlashReel.DramaticPauseMS) / 1000,
		Bitrate:     cfg.Reel.AudioBitrate,
		Concurrency: cfg.Assets.ProbeConcurrency,
		Logger:      logging.NewComponentLogger(logger, "narrator"),
	}
}

// Narrate returns the joined narration, the transcript with measured segment
// durations and every file it created. The quote's measured duration includes
// the pause that follows it.
func (n *Narrator) Narrate(ctx context.Context, t timing.Transcript, workDir, name string) (media.Asset, timing.Transcript, []string, error) {
	var spoken []int
	for i, seg := range t.Segments {
		if len(seg.Words) > 0 {
			spoken = append(spoken, i)
		}
	}
	if len(spoken) == 0 {
		return media.Asset{}, t, nil, services.Wrap(services.ErrValidation, "assets", "narrate", "transcript has no words", nil)
	}

	var generated []string
	parts := make([]string, len(spoken))
	for j, i := range spoken {
		seg := t.Segments[i]
		dest := filepath.Join(workDir, fmt.Sprintf("%s_voice_%02d_%s.mp3", name, j, seg.Kind))
		generated = append(generated, dest)
		if err := n.Speech.Speech(ctx, n.Model, seg.Text(), n.Voice, dest); err != nil {
			return media.Asset{}, t, generated, err
		}
		parts[j] = dest
	}

	durations := make([]float64, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(n.Concurrency, 1))
	for j, path := range parts {
		g.Go(func() error {
			result, err := n.Prober.Probe(gctx, path)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "assets", "probe narration", filepath.Base(path), err)
			}
			durations[j] = result.DurationSeconds()
			if durations[j] <= 0 {
				return services.Wrap(services.ErrExternalTool, "assets", "probe narration",
					filepath.Base(path)+" reports no duration", nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return media.Asset{}, t, generated, err
	}

	measured := timing.Transcript{Segments: append([]timing.Segment(nil), t.Segments...)}
	pauseAfter := -1
	for j, i := range spoken {
		measured.Segments[i].Duration = durations[j]
		if n.Pause > 0 && t.Segments[i].Kind == timing.SegmentQuote && j+1 < len(spoken) &&
			t.Segments[spoken[j+1]].Kind == timing.SegmentMotivation {
			measured.Segments[i].Duration += n.Pause
			pauseAfter = j
		}
	}

	out := filepath.Join(workDir, name+"_narration.m4a")
	generated = append(generated, out)
	if err := n.Runner.Run(ctx, n.concatArgs(parts, pauseAfter, out)...); err != nil {
		return media.Asset{}, t, generated, err
	}
	result, err := n.Prober.Probe(ctx, out)
	if err != nil {
		return media.Asset{}, t, generated, services.Wrap(services.ErrExternalTool, "assets", "probe narration", filepath.Base(out), err)
	}
	total := result.DurationSeconds()
	if total <= 0 {
		return media.Asset{}, t, generated, services.Wrap(services.ErrExternalTool, "assets", "probe narration", "joined narration reports no duration", nil)
	}

	n.Logger.Info("narration ready",
		logging.Int("segments", len(parts)),
		logging.Float64("duration_seconds", total),
		logging.Float64("pause_seconds", n.pauseSeconds(pauseAfter)),
	)
	return media.Asset{Path: out, Kind: media.KindAudio, Source: media.SourceGenerated, Duration: total}, measured, generated, nil
}

func (n *Narrator) pauseSeconds(pauseAfter int) float64 {
	if pauseAfter < 0 {
		return 0
	}
	return n.Pause
}

// concatArgs joins parts with the concat filter. A silent input of the pause
// length follows part pauseAfter when it is not negative.
func (n *Narrator) concatArgs(parts []string, pauseAfter int, out string) []string {
	args := ffmpeg.BaseArgs()
	var labels []string
	var chains []string
	input := 0
	addChain := func() {
		label := fmt.Sprintf("a%d", input)
		chains = append(chains, fmt.Sprintf("[%d:a]aresample=44100,aformat=sample_fmts=fltp:channel_layouts=stereo[%s]", input, label))
		labels = append(labels, "["+label+"]")
		input++
	}
	for j, part := range parts {
		args = append(args, "-i", part)
		addChain()
		if j == pauseAfter {
			args = append(args, "-f", "lavfi", "-t", ffmpeg.Seconds(n.Pause), "-i", "anullsrc=r=44100:cl=stereo")
			addChain()
		}
	}
	graph := strings.Join(chains, ";") + ";" + strings.Join(labels, "") +
		fmt.Sprintf("concat=n=%d:v=0:a=1[narration]", len(labels))
	bitrate := n.Bitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	return append(args, "-filter_complex", graph, "-map", "[narration]", "-c:a", "aac", "-b:a", bitrate, out)
}
