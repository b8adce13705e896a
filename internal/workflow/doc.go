// Package workflow advances queue items through the configured processing
// stages.
//
// The Manager polls the queue and feeds items into registered stage handlers
// (fetcher, summarizer, renderer) while capturing progress and failure
// metadata. Items move pending -> fetching -> fetched -> summarizing ->
// summarized -> rendering -> completed; failures land in failed or review
// depending on the error class. On startup the manager resets items a crashed
// process left mid-stage, and the checkpoint store lets the rerun skip work
// that already finished.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition items; this package is the
// authoritative home for that coordination logic.
package workflow
