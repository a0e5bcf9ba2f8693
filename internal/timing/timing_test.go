package timing_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"reelsmith/internal/services"
	"reelsmith/internal/timing"
)

const fps = 30

func testConfig() timing.Config {
	return timing.Config{WordsPerFlash: 2, PauseSeconds: 0.8, FlashSeconds: 0.5, FPS: fps}
}

func transcript(quote, motivation string) timing.Transcript {
	return timing.Transcript{Segments: []timing.Segment{
		{Kind: timing.SegmentIntro, Words: timing.SplitWords("As Seneca once said")},
		{Kind: timing.SegmentQuote, Words: timing.SplitWords(quote)},
		{Kind: timing.SegmentMotivation, Words: timing.SplitWords(motivation)},
		{Kind: timing.SegmentEnding, Words: timing.SplitWords("Follow for more")},
	}}
}

func TestAlignCoversAudioWithinOneFrame(t *testing.T) {
	words := strings.Fields("we suffer more often in imagination than in reality so act now and breathe deeply today")
	for n := 1; n <= len(words); n++ {
		tr := transcript(strings.Join(words[:n], " "), "begin")
		plan, err := timing.Align(tr, 9.7, testConfig())
		if err != nil {
			t.Fatalf("n=%d: Align: %v", n, err)
		}
		if diff := math.Abs(plan.Covered() - 9.7); diff > 1.0/fps {
			t.Fatalf("n=%d: groups+pause = %.4f, want 9.7 within a frame", n, plan.Covered())
		}
		for i := 1; i < len(plan.Groups); i++ {
			prev, cur := plan.Groups[i-1], plan.Groups[i]
			if cur.Start < prev.End-1e-9 {
				t.Fatalf("n=%d: group %d overlaps previous", n, i)
			}
		}
	}
}

func TestPauseSitsBetweenQuoteAndMotivation(t *testing.T) {
	tr := transcript("the obstacle is the way", "start where you stand")
	plan, err := timing.Align(tr, 8, testConfig())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	var lastQuote, firstMotivation timing.WordGroup
	for _, g := range plan.Groups {
		if g.Segment == timing.SegmentQuote {
			lastQuote = g
		}
	}
	firstMotivation, ok := plan.FirstGroup(timing.SegmentMotivation)
	if !ok {
		t.Fatal("missing motivation group")
	}
	if math.Abs(plan.Pause.Duration()-0.8) > 1e-9 {
		t.Fatalf("pause duration %.3f", plan.Pause.Duration())
	}
	if math.Abs(lastQuote.End-plan.Pause.Start) > 1e-9 || math.Abs(plan.Pause.End-firstMotivation.Start) > 1e-9 {
		t.Fatalf("pause %+v not between %+v and %+v", plan.Pause, lastQuote, firstMotivation)
	}
}

func TestGroupsNeverSpanSegments(t *testing.T) {
	tr := transcript("one two three", "four five six")
	plan, err := timing.Align(tr, 6, testConfig())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	var texts []string
	for _, g := range plan.Groups {
		texts = append(texts, string(g.Segment)+":"+g.Text())
	}
	want := []string{
		"intro:As Seneca", "intro:once said",
		"quote:one two", "quote:three",
		"motivation:four five", "motivation:six",
		"ending:Follow for", "ending:more",
	}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Fatalf("groups = %v", texts)
	}
	for _, g := range plan.Groups {
		wantAudioOnly := g.Segment == timing.SegmentIntro || g.Segment == timing.SegmentEnding
		if g.AudioOnly != wantAudioOnly {
			t.Fatalf("group %q audio_only=%v", g.Text(), g.AudioOnly)
		}
	}
	if len(plan.VisibleGroups()) != 4 {
		t.Fatalf("expected 4 visible groups, got %d", len(plan.VisibleGroups()))
	}
}

func TestMeasuredDurationsAreUsed(t *testing.T) {
	tr := timing.Transcript{Segments: []timing.Segment{
		{Kind: timing.SegmentQuote, Words: []string{"short"}, Duration: 4},
		{Kind: timing.SegmentMotivation, Words: []string{"a", "much", "longer", "motivation", "line"}, Duration: 2},
	}}
	plan, err := timing.Align(tr, 6, testConfig())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if math.Abs(plan.Pause.End-4) > 1e-9 || math.Abs(plan.Pause.Start-3.2) > 1e-9 {
		t.Fatalf("pause should end the measured quote span: %+v", plan.Pause)
	}
	first, _ := plan.FirstGroup(timing.SegmentMotivation)
	if math.Abs(first.Start-4) > 1e-9 {
		t.Fatalf("motivation should start at 4s, got %.3f", first.Start)
	}
}

func TestMeasuredDurationsIgnoredWhenInconsistent(t *testing.T) {
	tr := timing.Transcript{Segments: []timing.Segment{
		{Kind: timing.SegmentQuote, Words: []string{"aaaa"}, Duration: 4},
		{Kind: timing.SegmentMotivation, Words: []string{"aaaa"}, Duration: 4},
	}}
	cfg := testConfig()
	cfg.PauseSeconds = 0
	plan, err := timing.Align(tr, 6, cfg)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if math.Abs(plan.Groups[0].End-3) > 1e-9 {
		t.Fatalf("expected character-weighted split at 3s, got %.3f", plan.Groups[0].End)
	}
}

func TestAlignRejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		tr    timing.Transcript
		audio float64
	}{
		"empty transcript": {timing.Transcript{}, 5},
		"blank segments":   {timing.Transcript{Segments: []timing.Segment{{Kind: timing.SegmentQuote}}}, 5},
		"zero audio":       {transcript("a", "b"), 0},
		"negative audio":   {transcript("a", "b"), -1},
		"pause too long":   {transcript("a", "b"), 0.5},
	}
	for name, tc := range cases {
		_, err := timing.Align(tc.tr, tc.audio, testConfig())
		var timingErr *timing.Error
		if !errors.As(err, &timingErr) {
			t.Fatalf("%s: expected *timing.Error, got %v", name, err)
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation classification", name)
		}
	}
}

func TestFlashWindowsTileTotal(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, total := range []float64{0.3, 0.5, 6.0, 7.25, 13.9} {
		flashes, err := timing.ScheduleFlashes(total, 5, testConfig(), rng)
		if err != nil {
			t.Fatalf("total %.2f: %v", total, err)
		}
		if flashes[0].Start != 0 || flashes[len(flashes)-1].End != total {
			t.Fatalf("total %.2f: windows do not span [0,total): %+v", total, flashes)
		}
		for i := 1; i < len(flashes); i++ {
			if flashes[i].Start != flashes[i-1].End {
				t.Fatalf("total %.2f: gap at window %d", total, i)
			}
		}
	}
	flashes, _ := timing.ScheduleFlashes(6.0, 5, testConfig(), rng)
	if len(flashes) != 12 {
		t.Fatalf("6s at 0.5s per flash should be 12 windows, got %d", len(flashes))
	}
}

func TestLastImageHoldsWhenImagesRunOut(t *testing.T) {
	cfg := testConfig()
	cfg.ImagesPerReel = 4
	flashes, err := timing.ScheduleFlashes(5, 10, cfg, rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatalf("ScheduleFlashes: %v", err)
	}
	if len(flashes) != 4 {
		t.Fatalf("expected 4 flashes, got %d", len(flashes))
	}
	last := flashes[3]
	if last.Start != 1.5 || last.End != 5 {
		t.Fatalf("last image should hold from 1.5s to 5s, got %+v", last)
	}
	cfg.ImagesPerReel = 100
	if n := timing.FlashCount(5, cfg); n != 10 {
		t.Fatalf("images_per_reel above need should be capped to 10, got %d", n)
	}
}

func TestShuffleOrderNoRepeatsAndNoSeamRepeat(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	order := timing.ShuffleOrder(6, 6, rng)
	seen := map[int]bool{}
	for _, idx := range order {
		if seen[idx] {
			t.Fatalf("repeat in a single pass: %v", order)
		}
		seen[idx] = true
	}
	for seed := uint64(0); seed < 200; seed++ {
		order := timing.ShuffleOrder(3, 20, rand.New(rand.NewPCG(seed, seed+1)))
		for i := 1; i < len(order); i++ {
			if order[i] == order[i-1] {
				t.Fatalf("seed %d: immediate repeat at %d: %v", seed, i, order)
			}
		}
	}
	if got := timing.ShuffleOrder(1, 3, rng); len(got) != 3 || got[0] != 0 || got[2] != 0 {
		t.Fatalf("single image pool should repeat index 0: %v", got)
	}
}

func TestBuildSchedulesFlashesOverAlignedTotal(t *testing.T) {
	plan, err := timing.Build(transcript("the obstacle is the way", "act"), 4.2, 3, testConfig(), rand.New(rand.NewPCG(9, 9)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Total != 4.2 || len(plan.Flashes) != 9 || plan.Flashes[8].End != 4.2 {
		t.Fatalf("unexpected plan: total=%.2f flashes=%d", plan.Total, len(plan.Flashes))
	}
}
