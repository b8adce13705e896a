// Package budget partitions a model's context window into per-response byte
// budgets so that concatenating every response at a fan-in point never exceeds
// the usable portion of the window.
package budget
