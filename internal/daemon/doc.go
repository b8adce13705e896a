// Package daemon coordinates the long-running sumtube process.
//
// It wires configuration, queue storage, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon exposes queue maintenance helpers, URL ingestion, and stage
// health summaries for the CLI.
//
// Keep orchestration logic here: individual workflow stages live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high-level coordination.
package daemon
