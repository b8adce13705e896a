// Package pipeline drives the checkpoint-gated summarization run for one
// video: extract, chunk, summarize each chunk, concatenate, draft the
// introduction, body, and conclusion, assemble, and render.
//
// Every step records its output in the work directory's checkpoint store.
// Rerunning a crashed or interrupted run replays completed steps from
// checkpoints and recomputes only what never finished, producing the same
// report bytes the uninterrupted run would have produced. Steps are never
// rolled back automatically; stale steps are discarded by explicitly
// invalidating their checkpoints.
package pipeline
