// Package chunker splits a raw transcript into an ordered sequence of
// overlapping byte-range chunks sized to fit the summarization context window.
package chunker
