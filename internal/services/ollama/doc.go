// Package ollama provides a client for a local Ollama server's generate API
// with retry, backoff, and response byte-budget enforcement.
package ollama
