// Package timing turns a narrated transcript into the schedule the renderer
// follows: when each word group appears, when the dramatic pause sits and
// which image fills each flash window.
//
// Everything here is deterministic given its inputs (the image shuffle takes
// an injected *rand.Rand), so plans can be asserted exactly in tests.
package timing
