// Package assets supplies the media each variant needs.
//
// The local pool lives under paths.assets_dir:
//
//	images/<category>/   curated backgrounds, one directory per category
//	images/ai_injected/  generated backgrounds mixed in by weight
//	audio/               background music
//	reference/           photos of the reference person
//	used/<kind>/         files already posted, never selected again
//
// An optional catalog.yaml maps moods to categories and carries subject
// region hints. Clips and narration are generated through fal into the run's
// work directory; every video and audio asset handed out has been probed.
package assets
