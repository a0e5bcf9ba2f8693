package fal

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reelsmith/internal/services"
)

// DataURI inlines a local file as a base64 data URI.
func DataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ImageToVideo animates one image into a clip saved at dest.
func (c *Client) ImageToVideo(ctx context.Context, model, imagePath, prompt string, seconds int, dest string) error {
	uri, err := DataURI(imagePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "fal image-to-video", "encode image", err)
	}
	input := map[string]any{
		"prompt":    prompt,
		"image_url": uri,
		"duration":  strconv.Itoa(seconds),
	}
	return c.generate(ctx, model, input, dest, "fal image-to-video", func(r MediaResult) *File { return r.Video })
}

// ReferenceToVideo renders a clip of the subject shown in the reference images.
func (c *Client) ReferenceToVideo(ctx context.Context, model string, imagePaths []string, prompt string, seconds int, dest string) error {
	if len(imagePaths) == 0 {
		return services.Wrap(services.ErrValidation, "", "fal reference-to-video", "at least one reference image required", nil)
	}
	uris := make([]string, 0, len(imagePaths))
	for _, path := range imagePaths {
		uri, err := DataURI(path)
		if err != nil {
			return services.Wrap(services.ErrValidation, "", "fal reference-to-video", "encode image", err)
		}
		uris = append(uris, uri)
	}
	input := map[string]any{
		"prompt":               prompt,
		"reference_image_urls": uris,
		"duration":             seconds,
		"aspect_ratio":         "9:16",
	}
	return c.generate(ctx, model, input, dest, "fal reference-to-video", func(r MediaResult) *File { return r.Video })
}

// Speech synthesizes text with voice and saves the audio at dest.
func (c *Client) Speech(ctx context.Context, model, text, voice, dest string) error {
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrValidation, "", "fal speech", "text is required", nil)
	}
	input := map[string]any{"text": text}
	if voice != "" {
		input["voice"] = voice
	}
	return c.generate(ctx, model, input, dest, "fal speech", func(r MediaResult) *File { return r.Audio })
}

func (c *Client) generate(ctx context.Context, model string, input any, dest, op string, pick func(MediaResult) *File) error {
	var result MediaResult
	if err := c.Run(ctx, model, input, &result); err != nil {
		return err
	}
	file := pick(result)
	if file == nil || strings.TrimSpace(file.URL) == "" {
		return services.Wrap(services.ErrTransient, "", op, "result has no media url", nil)
	}
	return c.Download(ctx, file.URL, dest)
}
