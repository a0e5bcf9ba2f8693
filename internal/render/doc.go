// Package render assembles the final post from assets and a timing plan.
//
// The Engine dispatches on the variant kind to one Renderer per format:
//
//   - standard: Ken Burns zoom over a still (or short video) with vignette,
//     colour grade, glitch bursts and the quote text
//   - animated and reference_person: a generated clip cropped to 9:16, looped
//     or trimmed to the reel length
//   - flash_reel: one image per flash window with narrated word groups
//   - carousel: a set of still slides
//
// Renderers only build ffmpeg argument lists; the ffmpeg.Runner and Prober
// interfaces are the seams tests replace. Validate probes the result and
// rejects any artifact whose duration or geometry misses the target.
package render
