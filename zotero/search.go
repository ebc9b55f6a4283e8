package zotero

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
)

// SearchCondition is one clause of a saved search.
type SearchCondition struct {
	Condition string `json:"condition"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
}

// searchOperators is the full operator vocabulary. See
// https://github.com/zotero/zotero/blob/master/chrome/content/zotero/xpcom/data/searchConditions.js
var searchOperators = []string{
	"is", "isNot", "beginsWith", "contains", "doesNotContain",
	"isLessThan", "isGreaterThan", "isBefore", "isAfter", "isInTheLast",
	"any", "all", "true", "false",
}

// common groupings of operators
var (
	opsBoolean   = []string{"true", "false"}
	opsJoin      = []string{"any", "all"}
	opsText      = []string{"is", "isNot", "contains", "doesNotContain"}
	opsExact     = []string{"is", "isNot"}
	opsDate      = []string{"is", "isNot", "isBefore", "isInTheLast"}
	opsSubstring = []string{"contains", "doesNotContain"}
	opsNumber    = []string{"is", "isNot", "contains", "doesNotContain", "isLessThan", "isGreaterThan"}
	opsKey       = []string{"is", "isNot", "beginsWith"}
	opsIdentity  = []string{"is"}
)

// baseConditions maps each search condition to its permitted operators.
// Item fields from the schema join the table at runtime under the text
// grouping.
var baseConditions = map[string][]string{
	"deleted":                    opsBoolean,
	"noChildren":                 opsBoolean,
	"unfiled":                    opsBoolean,
	"publications":               opsBoolean,
	"retracted":                  opsBoolean,
	"includeParentsAndChildren":  opsBoolean,
	"includeParents":             opsBoolean,
	"includeChildren":            opsBoolean,
	"recursive":                  opsBoolean,
	"joinMode":                   opsJoin,
	"quicksearch-titleCreatorYear":     opsText,
	"quicksearch-titleCreatorYearNote": opsText,
	"quicksearch-fields":         opsText,
	"quicksearch-everything":     opsText,
	"collectionID":               opsExact,
	"savedSearchID":              opsExact,
	"collection":                 opsExact,
	"savedSearch":                opsExact,
	"dateAdded":                  opsDate,
	"dateModified":               opsDate,
	"itemType":                   opsExact,
	"fileTypeID":                 opsExact,
	"tagID":                      opsExact,
	"tag":                        opsText,
	"note":                       opsSubstring,
	"childNote":                  opsSubstring,
	"creator":                    opsText,
	"lastName":                   opsText,
	"field":                      opsText,
	"datefield":                  opsDate,
	"year":                       opsText,
	"numberfield":                opsNumber,
	"libraryID":                  opsExact,
	"key":                        opsKey,
	"itemID":                     opsExact,
	"annotationText":             opsSubstring,
	"annotationComment":          opsSubstring,
	"fulltextWord":               opsSubstring,
	"fulltextContent":            opsSubstring,
	"tempTable":                  opsIdentity,
}

// aliases folded into the base table without a schema lookup
var (
	numberFieldAliases = []string{"pages", "numPages", "numberOfVolumes", "section", "seriesNumber", "issue"}
	dateFieldAliases   = []string{"accessDate", "date", "dateDue", "accepted"}
)

// schemaExcludedConditions are schema fields that already appear in the
// table under a more specific grouping.
var schemaExcludedConditions = map[string]bool{
	"accessDate":   true,
	"date":         true,
	"pages":        true,
	"section":      true,
	"seriesNumber": true,
	"issue":        true,
}

// SavedSearch validates saved search definitions against the condition and
// operator vocabulary, with per-field conditions seeded from the item field
// schema.
type SavedSearch struct {
	operators  map[string]bool
	conditions map[string][]string
}

// savedSearch builds the validation tables once per client; constructing
// them requires the item field schema, hence the API round trip on first
// use.
func (c *Client) savedSearch(ctx context.Context) (*SavedSearch, error) {
	c.mu.Lock()
	cached := c.search
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	ss := &SavedSearch{
		operators:  make(map[string]bool, len(searchOperators)),
		conditions: make(map[string][]string, len(baseConditions)),
	}
	for _, op := range searchOperators {
		ss.operators[op] = true
	}
	for cond, ops := range baseConditions {
		ss.conditions[cond] = ops
	}
	for _, alias := range numberFieldAliases {
		ss.conditions[alias] = opsNumber
	}
	for _, alias := range dateFieldAliases {
		ss.conditions[alias] = opsDate
	}
	fields, err := c.ItemFields(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if schemaExcludedConditions[f.Field] {
			continue
		}
		if _, ok := ss.conditions[f.Field]; !ok {
			ss.conditions[f.Field] = opsText
		}
	}

	c.mu.Lock()
	c.search = ss
	c.mu.Unlock()
	return ss, nil
}

func (ss *SavedSearch) validate(conditions []SearchCondition) error {
	for _, cond := range conditions {
		if cond.Condition == "" || cond.Operator == "" {
			return fmt.Errorf("%w: conditions must carry condition, operator and value", ErrParamNotPassed)
		}
		if !ss.operators[cond.Operator] {
			return fmt.Errorf("%w: unknown operator: %s", ErrParamNotPassed, cond.Operator)
		}
		permitted, ok := ss.conditions[cond.Condition]
		if !ok {
			return fmt.Errorf("%w: unknown condition: %s", ErrParamNotPassed, cond.Condition)
		}
		if !slices.Contains(permitted, cond.Operator) {
			return fmt.Errorf("%w: the %q operator cannot be used with the %q condition (allowed: %s)",
				ErrParamNotPassed, cond.Operator, cond.Condition, strings.Join(permitted, ", "))
		}
	}
	return nil
}

// ShowOperators lists the saved search operator vocabulary.
func (c *Client) ShowOperators() []string {
	out := make([]string, len(searchOperators))
	copy(out, searchOperators)
	return out
}

// ShowConditions lists the available saved search conditions, schema fields
// included.
func (c *Client) ShowConditions(ctx context.Context) ([]string, error) {
	ss, err := c.savedSearch(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ss.conditions))
	for cond := range ss.conditions {
		out = append(out, cond)
	}
	sort.Strings(out)
	return out, nil
}

// ShowConditionOperators lists the operators permitted for one condition.
func (c *Client) ShowConditionOperators(ctx context.Context, condition string) ([]string, error) {
	ss, err := c.savedSearch(ctx)
	if err != nil {
		return nil, err
	}
	permitted, ok := ss.conditions[condition]
	if !ok {
		return nil, fmt.Errorf("%w: unknown condition: %s", ErrParamNotPassed, condition)
	}
	out := make([]string, len(permitted))
	copy(out, permitted)
	return out, nil
}

// CreateSavedSearch creates a saved search from validated conditions.
func (c *Client) CreateSavedSearch(ctx context.Context, name string, conditions []SearchCondition) (*WriteResult, error) {
	ss, err := c.savedSearch(ctx)
	if err != nil {
		return nil, err
	}
	if err := ss.validate(conditions); err != nil {
		return nil, err
	}
	payload := []Item{{"name": name, "conditions": conditions}}
	headers := map[string]string{"Zotero-Write-Token": writeToken()}
	resp, err := c.write(ctx, http.MethodPost, "/{t}/{u}/searches", nil, headers, payload)
	if err != nil {
		return nil, err
	}
	return decodeWriteResult(resp.body)
}

// DeleteSavedSearches deletes saved searches by key with one call.
func (c *Client) DeleteSavedSearches(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: no search keys provided", ErrParamNotPassed)
	}
	headers := map[string]string{"Zotero-Write-Token": writeToken()}
	query := Params{"searchKey": strings.Join(keys, ",")}
	_, err := c.write(ctx, http.MethodDelete, "/{t}/{u}/searches", query, headers, nil)
	return err
}
