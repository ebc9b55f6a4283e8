package zotero

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FulltextFromPDF extracts the plain text of a PDF into a Fulltext payload
// suitable for SetFulltext, with the page and character counts filled in.
// Pages whose text cannot be decoded are skipped; they still count towards
// the total.
func FulltextFromPDF(path string) (*Fulltext, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileDoesNotExist, path, err)
	}
	defer f.Close()

	total := r.NumPage()
	var sb strings.Builder
	indexed := 0
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		indexed++
	}

	// page counts, not character counts, describe PDF indexes
	return &Fulltext{
		Content:      sb.String(),
		IndexedPages: indexed,
		TotalPages:   total,
	}, nil
}
