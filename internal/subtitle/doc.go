// Package subtitle defines the transcript model shared by every pipeline
// stage, plus SRT and ASS parsing and rendering.
//
// A Transcript is an ordered list of timed segments. Segments carry the
// original text and, once the translation stage has run, a translated
// counterpart. Rendering applies one of four layouts that choose which of
// the two texts appear and in which order.
package subtitle
