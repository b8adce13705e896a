// Package renderer implements the final workflow stage: it assembles the
// drafted report sections into a document, writes the Markdown companion, and
// renders the PDF report. Assembly freezes the generation timestamp in a
// checkpoint so a resumed render reproduces byte-identical output.
package renderer
