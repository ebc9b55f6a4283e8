package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/scholium/zotero-go/zotero"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// outputError writes an error message to stderr and returns the exit code.
func outputError(code int, format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return code
}

// exitWithError outputs an error and exits with a code derived from its
// kind.
func exitWithError(err error) {
	code := ExitError
	switch {
	case zotero.IsNotFound(err):
		code = ExitNotFound
	case zotero.IsNotAuthorised(err):
		code = ExitAuthError
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", err)
	os.Exit(code)
}

// itemSummary reduces an item to the fields worth showing in listings.
func itemSummary(item zotero.Item) map[string]any {
	data := item.Data()
	summary := map[string]any{
		"key":     item.Key(),
		"version": item.Version(),
	}
	for _, field := range []string{"itemType", "title", "date", "DOI", "name"} {
		if v, ok := data[field]; ok {
			summary[field] = v
		}
	}
	return summary
}

// printItems renders a listing in the selected output mode.
func printItems(items []zotero.Item) error {
	if humanOutput {
		for _, item := range items {
			data := item.Data()
			title, _ := data["title"].(string)
			if title == "" {
				title, _ = data["name"].(string)
			}
			outputHuman("%s  %s\n", item.Key(), truncate(title, 70))
		}
		return nil
	}
	summaries := make([]map[string]any, len(items))
	for i, item := range items {
		summaries[i] = itemSummary(item)
	}
	return outputJSON(summaries)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
