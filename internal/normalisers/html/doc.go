// Package html provides a Normaliser for HTML documents.
// Text is read with the golang.org/x/net/html tokenizer; scripts,
// styles and document head are skipped and block elements become line breaks.
package html
