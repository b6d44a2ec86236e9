package core

import "strings"

// EntityDocument is the entity type Craft assigns to the block that represents
// a whole document. Every other entity type is a block inside a document.
const EntityDocument = "document"

// Block is a single searchable unit of content read from a space's search index.
//
// Blocks are immutable snapshots: the search index owns the data and a Block is
// only ever re-fetched, never updated in place. A document is itself a Block whose
// EntityType is EntityDocument and whose DocumentID is its own ID.
type Block struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	EntityType string `json:"entityType"`
	DocumentID string `json:"documentId"`
	// SpaceID is not stored in the index; it is attached by the index the row came from.
	SpaceID string `json:"spaceId"`
}

// IsDocument reports whether the block is a document header.
func (b Block) IsDocument() bool { return b.EntityType == EntityDocument }

// Summary returns a one-line version of the block content suitable for list display.
// Content is collapsed to a single line and truncated to max runes when max > 0.
func (b Block) Summary(max int) string {
	text := strings.Join(strings.Fields(b.Content), " ")
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// DocumentGroup is a document header plus the matching blocks that belong to it.
//
// Children keep the order the search index returned them in. When no document-typed
// row was seen for DocumentID the header is a placeholder carrying only DocumentID and
// SpaceID; use Placeholder to detect that case.
type DocumentGroup struct {
	DocumentID string  `json:"documentId"`
	SpaceID    string  `json:"spaceId"`
	Header     Block   `json:"header"`
	Children   []Block `json:"children"`
}

// PlaceholderHeader builds the header used for a document whose own row has not been seen.
func PlaceholderHeader(documentID, spaceID string) Block {
	return Block{DocumentID: documentID, SpaceID: spaceID}
}

// Placeholder reports whether the group's header was never populated by a document row.
func (g DocumentGroup) Placeholder() bool {
	return !g.Header.IsDocument()
}

// Title returns the document title, or "" when the title is unknown.
func (g DocumentGroup) Title() string {
	if g.Placeholder() {
		return ""
	}
	return g.Header.Summary(0)
}
