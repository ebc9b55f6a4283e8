package zotero

import "encoding/json"

// Item is a bibliographic record as returned by the API. Retrieved items
// carry the full envelope (key, version, library, links, meta, data); items
// built locally for writes may be bare field maps.
type Item map[string]any

// envelopeKeys are the members of a full API envelope. A map with exactly
// these keys is unwrapped to its data member before cleanup or validation.
var envelopeKeys = []string{"links", "library", "version", "meta", "key", "data"}

// isEnvelope reports whether the item is a full API envelope rather than a
// bare data map.
func (i Item) isEnvelope() bool {
	if len(i) != len(envelopeKeys) {
		return false
	}
	for _, k := range envelopeKeys {
		if _, ok := i[k]; !ok {
			return false
		}
	}
	return true
}

// Data returns the data payload of the item: the "data" member for
// envelopes, the item itself otherwise.
func (i Item) Data() Item {
	if d, ok := i["data"].(map[string]any); ok {
		return Item(d)
	}
	return i
}

// Key returns the item key, looking in the envelope first and then the
// data payload.
func (i Item) Key() string {
	if k, ok := i["key"].(string); ok {
		return k
	}
	if k, ok := i.Data()["key"].(string); ok {
		return k
	}
	return ""
}

// Version returns the item version, or 0 when absent.
func (i Item) Version() int {
	for _, src := range []Item{i, i.Data()} {
		switch v := src["version"].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case json.Number:
			n, _ := v.Int64()
			return int(n)
		}
	}
	return 0
}

// ItemType is one entry of the localised item-type list.
type ItemType struct {
	ItemType  string `json:"itemType"`
	Localized string `json:"localized"`
}

// Field is one entry of the localised field list.
type Field struct {
	Field     string `json:"field"`
	Localized string `json:"localized"`
}

// CreatorType is one entry of the localised creator-type list.
type CreatorType struct {
	CreatorType string `json:"creatorType"`
	Localized   string `json:"localized"`
}

// WriteFailure describes one failed record in a batched write response.
type WriteFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WriteResult is the per-record outcome of a batched create or update.
// Keys are the zero-based batch indexes as decimal strings, matching the
// API's response shape.
type WriteResult struct {
	Success   map[string]string       `json:"success"`
	Unchanged map[string]string       `json:"unchanged"`
	Failed    map[string]WriteFailure `json:"failed"`
}

// Fulltext is the full-text payload of an attachment item. Text documents
// carry indexed/total chars, PDFs indexed/total pages.
type Fulltext struct {
	Content      string `json:"content"`
	IndexedChars int    `json:"indexedChars,omitempty"`
	TotalChars   int    `json:"totalChars,omitempty"`
	IndexedPages int    `json:"indexedPages,omitempty"`
	TotalPages   int    `json:"totalPages,omitempty"`
}

// Group is a group library record.
type Group = Item

// Collection is a collection record. Collections share the item envelope
// shape.
type Collection = Item
