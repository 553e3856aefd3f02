// Package models defines core data structures for lots, queries, conversion results and indexed text.
package models

// TextDocument is a converted text file as stored in the keyword index.
type TextDocument struct {
	ID      string `json:"id"`
	LotID   string `json:"lot_id"`
	LotName string `json:"lot_name"`
	// Path is relative to the lot's text directory, slash-separated.
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	// Stamp identifies the indexed version of the file (modification time and size).
	Stamp string `json:"stamp,omitempty"`
}
