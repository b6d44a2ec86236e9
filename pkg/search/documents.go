package search

import "github.com/rubiojr/craftsearch/pkg/core"

// GroupByDocument folds a flat, ordered list of blocks into one group per document.
//
// Groups appear in the order their document id is first seen. A document-typed
// block becomes (or replaces) its group's header wherever it appears in the input;
// any other block is appended to its group's children, preserving input order.
// When a child arrives before its document, the group starts with a placeholder
// header that is filled in if the document row shows up later.
func GroupByDocument(blocks []core.Block, spaceID string) []core.DocumentGroup {
	var groups []core.DocumentGroup
	positions := make(map[string]int)

	for _, b := range blocks {
		docID := documentKey(b)
		i, ok := positions[docID]
		if !ok {
			group := core.DocumentGroup{
				DocumentID: docID,
				SpaceID:    spaceID,
				Children:   []core.Block{},
			}
			if b.IsDocument() {
				group.Header = b
			} else {
				group.Header = core.PlaceholderHeader(docID, spaceID)
				group.Children = append(group.Children, b)
			}
			positions[docID] = len(groups)
			groups = append(groups, group)
			continue
		}

		if b.IsDocument() {
			groups[i].Header = b
		} else {
			groups[i].Children = append(groups[i].Children, b)
		}
	}
	return groups
}

// documentKey returns the document a block belongs to. Documents are expected to
// reference themselves; one that does not is keyed by its own id.
func documentKey(b core.Block) string {
	if b.DocumentID == "" && b.IsDocument() {
		return b.ID
	}
	return b.DocumentID
}
