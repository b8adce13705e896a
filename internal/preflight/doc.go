// Package preflight provides readiness checks for the external services and
// filesystem paths the pipeline depends on.
//
// The daemon runs RunAll once at startup and logs the outcome, and the CLI
// status command uses the individual check functions to display service
// health. A failed check never blocks the daemon: transient outages resolve
// on their own and the per-stage health checks catch hard failures per item.
package preflight
