// Package optimizer corrects transcript text with an LLM.
//
// Batches of numbered cues go out as JSON and come back corrected; typos,
// casing, and recognition noise get fixed while timing and cue boundaries
// stay untouched. A cue the model leaves out keeps its original text.
package optimizer
