// Package knowledge indexes the sales technique toolkit and retrieves the
// snippets most relevant to the current conversation. The index is a JSON
// file built from the toolkit's .txt material; ranking is lexical over
// content and curated keywords with importance as tiebreaker.
package knowledge
