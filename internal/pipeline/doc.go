// Package pipeline sequences the subtitle-processing stages for one task.
//
// The controller owns the state machine: Pending -> Validating -> Splitting
// -> Optimizing -> Translating -> Saving -> Completed, with Cancelled and
// Failed as absorbing states. Stage execution is strictly sequential; each
// stage fans out internally through the batch dispatcher. The transcript is
// handed to exactly one stage at a time, and the final save only runs after
// every enabled stage succeeded.
package pipeline
