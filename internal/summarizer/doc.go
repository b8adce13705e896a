// Package summarizer implements the generation stage: it chunks the fetched
// transcript, summarizes each chunk through the local Ollama model under the
// context-window byte budget, and synthesizes the introduction, body, and
// conclusion sections. Every generation is checkpointed, so an interrupted
// run resumes without repeating finished model calls.
package summarizer
