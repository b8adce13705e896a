// Package services provides the shared error taxonomy and context annotations
// used by external-service clients and pipeline stages.
package services
