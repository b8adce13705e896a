// Package render turns an assembled report document into Markdown and PDF
// output.
package render
