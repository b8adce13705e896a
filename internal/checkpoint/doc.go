// Package checkpoint persists pipeline step results keyed by step identity so
// an interrupted run resumes by recomputing only the steps that never
// completed. Records live as individual files inside a run's working
// directory, which makes the directory itself the unit of resumability.
package checkpoint
