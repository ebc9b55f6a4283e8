// Package s2 provides a rate-limited client for the Semantic Scholar
// Academic Graph API, used to enrich bibliographic records with citation
// metadata.
package s2

// Paper is a paper record from the Semantic Scholar API.
type Paper struct {
	PaperID      string      `json:"paperId"`
	ExternalIDs  ExternalIDs `json:"externalIds,omitempty"`
	Title        string      `json:"title"`
	Abstract     string      `json:"abstract,omitempty"`
	Authors      []Author    `json:"authors,omitempty"`
	Year         int         `json:"year,omitempty"`
	Venue        string      `json:"venue,omitempty"`
	PubDate      string      `json:"publicationDate,omitempty"` // YYYY-MM-DD
	Citations    int         `json:"citationCount,omitempty"`
	References   int         `json:"referenceCount,omitempty"`
	IsOpenAccess bool        `json:"isOpenAccess,omitempty"`
	Fields       []string    `json:"fieldsOfStudy,omitempty"`
}

// ExternalIDs contains the external identifiers of a paper.
type ExternalIDs struct {
	DOI           string `json:"DOI,omitempty"`
	ArXiv         string `json:"ArXiv,omitempty"`
	PubMed        string `json:"PubMed,omitempty"`
	PubMedCentral string `json:"PubMedCentral,omitempty"`
	CorpusID      int    `json:"CorpusId,omitempty"`
}

// Author is an author record from the Semantic Scholar API.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// CitationResult is one edge in a citations or references listing.
type CitationResult struct {
	CitingPaper *Paper `json:"citingPaper,omitempty"` // citations endpoint
	CitedPaper  *Paper `json:"citedPaper,omitempty"`  // references endpoint
}

// CitationsResponse is a page of citation edges.
type CitationsResponse struct {
	Offset int              `json:"offset"`
	Next   int              `json:"next,omitempty"`
	Data   []CitationResult `json:"data"`
}

// SearchResponse is a page of keyword search results.
type SearchResponse struct {
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Next   int     `json:"next,omitempty"`
	Data   []Paper `json:"data"`
}

// RecommendationsResponse is the response from the recommendations
// endpoint.
type RecommendationsResponse struct {
	RecommendedPapers []Paper `json:"recommendedPapers"`
}
