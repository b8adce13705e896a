// Package config loads, validates, and normalizes sumtube configuration from
// TOML. Validation is all-or-nothing: a document with any invalid value is
// rejected without partially applying the rest.
package config
