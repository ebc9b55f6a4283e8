package zotero

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nickng/bibtex"
)

// formatKind tags the decoding strategy selected for a response.
type formatKind string

const (
	formatJSON     formatKind = "json"
	formatAtom     formatKind = "atom"
	formatBibTeX   formatKind = "bibtex"
	formatZip      formatKind = "zip"
	formatSnapshot formatKind = "snapshot"
	formatBinary   formatKind = "binary"
)

// contentFormats maps response media types to decoding strategies. Anything
// unlisted is treated as JSON, the common case for the primary REST
// endpoints.
var contentFormats = map[string]formatKind{
	"application/atom+xml": formatAtom,
	"application/x-bibtex": formatBibTeX,
	"application/json":     formatJSON,
	"text/html":            formatSnapshot,
	"application/zip":      formatZip,
	"application/epub+zip": formatZip,

	// recognized binary media types, returned as raw bytes
	"text/plain":               formatBinary,
	"text/markdown":            formatBinary,
	"application/pdf":          formatBinary,
	"application/msword":       formatBinary,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         formatBinary,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   formatBinary,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": formatBinary,
	"audio/mpeg":             formatBinary,
	"video/mp4":              formatBinary,
	"audio/x-wav":            formatBinary,
	"video/x-msvideo":        formatBinary,
	"application/octet-stream": formatBinary,
	"application/x-tex":        formatBinary,
	"application/x-texinfo":    formatBinary,
	"image/jpeg":               formatBinary,
	"image/png":                formatBinary,
	"image/gif":                formatBinary,
	"image/tiff":               formatBinary,
	"application/postscript":   formatBinary,
	"application/rtf":          formatBinary,
}

// decoded is the normalized result of a read call. Exactly one of the value
// fields is populated, per Kind.
type decoded struct {
	Kind    formatKind
	Value   any             // JSON: the parsed document
	Items   []Item          // JSON: set when the document is an object array
	Strings []string        // tags or bibliography/citation entries
	Bytes   []byte          // binary and zip payloads
	BibTeX  *bibtex.BibTex  // parsed BibTeX database
}

// atomFeed is the subset of the Atom feed that carries Zotero payloads.
// Entry content is typed by the zapi namespace extension.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Content struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"content"`
}

// jsonContentTypes are the atom content sub-processors whose entry payload
// is itself JSON; every other bibliography style passes through as a string.
var jsonContentTypes = map[string]bool{
	"json":    true,
	"csljson": true,
}

// decode selects a decoding strategy from the response content type and the
// request's declared format/content intent, and returns a normalized value.
//
// Completing a read always clears the stored default parameters and
// refreshes the pagination link set.
func (c *Client) decode(resp *response) (*decoded, error) {
	// content sub-processor, from the final URL; the API's default
	// content type for atom is a bibliography block
	content := resp.url.Query().Get("content")
	if content == "" {
		content = "bib"
	}

	kind := formatJSON
	if resp.url.Scheme == "file" {
		kind = formatBinary
	} else if ct := resp.header.Get("Content-Type"); ct != "" {
		if k, ok := contentFormats[mediaType(ct)]; ok {
			kind = k
		}
	}

	c.clearParams()
	c.mu.Lock()
	c.links = extractLinks(resp)
	c.mu.Unlock()

	switch kind {
	case formatZip:
		if resp.compressed {
			member, err := firstZipMember(resp.body)
			if err != nil {
				return nil, err
			}
			return &decoded{Kind: kind, Bytes: member}, nil
		}
		return &decoded{Kind: kind, Bytes: resp.body}, nil

	case formatSnapshot:
		// snapshots dump to disk as zip archives
		c.mu.Lock()
		c.snapshot = true
		c.mu.Unlock()
		return &decoded{Kind: kind, Bytes: resp.body}, nil

	case formatBinary:
		return &decoded{Kind: kind, Bytes: resp.body}, nil
	}

	// tag resources decode to a flat list of tag strings regardless of the
	// negotiated content type
	if hasPathSegment(resp.url.Path, "tags") {
		tags, err := decodeTags(resp.body)
		if err != nil {
			return nil, err
		}
		return &decoded{Kind: formatJSON, Strings: tags}, nil
	}

	switch kind {
	case formatAtom:
		return decodeAtom(resp.body, content)

	case formatBibTeX:
		db, err := bibtex.Parse(bytes.NewReader(resp.body))
		if err != nil {
			return nil, fmt.Errorf("zotero: parsing bibtex response: %w", err)
		}
		return &decoded{Kind: kind, BibTeX: db}, nil

	default:
		return decodeJSON(resp.body)
	}
}

// mediaType strips any parameters ("; charset=...") from a Content-Type
// value.
func mediaType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func hasPathSegment(path, segment string) bool {
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// decodeJSON parses the body and, for object arrays, exposes the elements
// as Items.
func decodeJSON(body []byte) (*decoded, error) {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("zotero: parsing JSON response: %w", err)
	}
	d := &decoded{Kind: formatJSON, Value: value}
	if list, ok := value.([]any); ok {
		items := make([]Item, 0, len(list))
		for _, e := range list {
			m, ok := e.(map[string]any)
			if !ok {
				items = nil
				break
			}
			items = append(items, Item(m))
		}
		d.Items = items
	}
	return d, nil
}

// decodeTags extracts tag strings from a tag-resource body. Tag responses
// are JSON arrays of objects carrying a "tag" member.
func decodeTags(body []byte) ([]string, error) {
	var entries []struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("zotero: parsing tag response: %w", err)
	}
	tags := make([]string, len(entries))
	for i, e := range entries {
		tags[i] = e.Tag
	}
	return tags, nil
}

// decodeAtom parses a feed and routes each entry's content block through
// the sub-processor selected by the content parameter: JSON-bearing types
// decode into Items, bibliography styles pass through as strings.
func decodeAtom(body []byte, content string) (*decoded, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("zotero: parsing atom feed: %w", err)
	}
	if jsonContentTypes[content] {
		items := make([]Item, 0, len(feed.Entries))
		for _, entry := range feed.Entries {
			var m map[string]any
			if err := json.Unmarshal([]byte(entry.Content.Value), &m); err != nil {
				return nil, fmt.Errorf("zotero: parsing atom entry content: %w", err)
			}
			items = append(items, Item(m))
		}
		return &decoded{Kind: formatAtom, Items: items}, nil
	}
	entries := make([]string, len(feed.Entries))
	for i, entry := range feed.Entries {
		entries[i] = strings.TrimSpace(entry.Content.Value)
	}
	return &decoded{Kind: formatAtom, Strings: entries}, nil
}

// firstZipMember returns the bytes of the first archive member.
func firstZipMember(body []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("zotero: opening zipped payload: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("zotero: zipped payload has no members")
	}
	f, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("zotero: reading zipped payload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
