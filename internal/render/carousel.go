package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services"
)

type carouselRenderer struct {
	tk toolkit
}

// Slide is the copy for one carousel page.
type Slide struct {
	Heading string
	Body    string
}

// Slides lays out the title, up to limit points and the closer.
func Slides(text Text, limit int) []Slide {
	title := strings.TrimSpace(text.Title)
	if title == "" {
		title = strings.TrimSpace(text.Quote)
	}
	slides := []Slide{{Heading: title, Body: authorLine(text.Author)}}
	points := text.Points
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	for i, point := range points {
		if strings.TrimSpace(point) == "" {
			continue
		}
		slides = append(slides, Slide{Heading: fmt.Sprintf("%d.", i+1), Body: strings.TrimSpace(point)})
	}
	if closer := strings.TrimSpace(text.Closer); closer != "" {
		slides = append(slides, Slide{Body: closer})
	}
	return slides
}

func authorLine(author string) string {
	if author = strings.TrimSpace(author); author == "" {
		return ""
	}
	return "- " + author
}

func (r carouselRenderer) Render(ctx context.Context, job Job) (Artifact, error) {
	s := r.tk.settings
	slides := Slides(job.Text, s.CarouselPoints)
	if len(slides) < 2 || len(job.Text.Points) == 0 {
		return Artifact{}, services.Wrap(services.ErrValidation, "render", "carousel", "carousel needs at least one point", nil)
	}
	paths := make([]string, 0, len(slides))
	for i, slide := range slides {
		out := filepath.Join(job.OutputDir, fmt.Sprintf("%s_slide_%02d.jpg", job.Name, i+1))
		if err := r.tk.run(ctx, "carousel_slide", r.slideArgs(job, i, len(slides), slide, out)); err != nil {
			return Artifact{}, err
		}
		paths = append(paths, out)
	}
	return Artifact{
		Path:   paths[0],
		Slides: paths,
		Width:  s.CarouselWidth,
		Height: s.CarouselHeight,
		Format: "jpeg",
	}, nil
}

func (r carouselRenderer) slideArgs(job Job, index, count int, slide Slide, out string) []string {
	s := r.tk.settings
	w, h := s.CarouselWidth, s.CarouselHeight
	args := ffmpeg.BaseArgs()
	if len(job.Images) > 0 {
		args = append(args, "-i", job.Images[index%len(job.Images)].Path)
	} else {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("color=c=0x14181f:s=%dx%d", w, h))
	}

	layout := s
	layout.Width, layout.Height = w, h
	filters := []string{
		coverCrop(w, h),
		"boxblur=6:1",
		"drawbox=x=0:y=0:w=iw:h=ih:color=black@0.45:t=fill",
		gradeFilter,
	}
	headingSize := s.FontSize
	y := float64(h) * 0.22
	if slide.Heading != "" {
		var block []string
		block, y = layout.centeredBlock(wrapText(slide.Heading, charsPerLine(w, headingSize)), headingSize, y, "")
		filters = append(filters, block...)
		y += float64(headingSize) * 0.5
	}
	if slide.Body != "" {
		bodySize := max(headingSize*2/3, 1)
		block, _ := layout.centeredBlock(wrapText(slide.Body, charsPerLine(w, bodySize)), bodySize, y, "")
		filters = append(filters, block...)
	}
	counterSize := max(headingSize/3, 1)
	filters = append(filters, layout.drawtext(textLine{
		text: fmt.Sprintf("%d/%d", index+1, count),
		size: counterSize,
		x:    "w-text_w-40",
		y:    "h-text_h-40",
	}))
	filters = append(filters, "format=yuvj420p")

	args = append(args, "-vf", strings.Join(filters, ","), "-frames:v", "1", "-q:v", "2")
	return append(args, out)
}
