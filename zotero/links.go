package zotero

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// linkPattern matches one RFC 5988 Link header element.
var linkPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="([^"]+)"`)

// extractLinks parses the pagination relations (first/prev/next/last/
// alternate) from the response's Link header into path+query fragments and
// derives a self link from the requested URL.
//
// Returns nil when no Link header is present: the response is a single
// resource, detected by absence rather than an explicit flag. The self link
// never retains the format query key but keeps all other parameters.
func extractLinks(resp *response) map[string]string {
	raw := resp.header.Get("Link")
	if raw == "" {
		return nil
	}
	links := make(map[string]string)
	for _, m := range linkPattern.FindAllStringSubmatch(raw, -1) {
		target, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		links[m[2]] = pathFragment(target)
	}
	self := *resp.url
	query := self.Query()
	query.Del("format")
	self.RawQuery = query.Encode()
	links["self"] = pathFragment(&self)
	return links
}

// pathFragment reduces a URL to its path plus query string.
func pathFragment(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.RawQuery
}

// stripLocal removes the leading API prefix segments from a link path when
// running against the local server, whose link format differs from its
// request-routing format. The segment count is configurable via
// WithLocalPrefix.
func (c *Client) stripLocal(fragment string) string {
	if !c.local {
		return fragment
	}
	path, query, _ := strings.Cut(fragment, "?")
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) > c.localPrefix {
		parts = parts[c.localPrefix:]
	}
	out := "/" + strings.Join(parts, "/")
	if query != "" {
		out += "?" + query
	}
	return out
}

// nextLink returns the current next-page fragment, or "" when the last
// response had no further pages.
func (c *Client) nextLink() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links["next"]
}

// followDecoded issues a request to the next link and decodes the result.
// Returns nil when there is no next page.
func (c *Client) followDecoded(ctx context.Context) (*decoded, error) {
	next := c.nextLink()
	if next == "" {
		return nil, nil
	}
	resp, err := c.retrieveData(ctx, c.stripLocal(next), nil, false)
	if err != nil {
		return nil, err
	}
	return c.decode(resp)
}

// Follow retrieves the next page of the most recent multi-object call.
// Returns nil items when no next link is present.
func (c *Client) Follow(ctx context.Context) ([]Item, error) {
	d, err := c.followDecoded(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	return d.Items, nil
}

// Everything drains all remaining pages of the most recent call,
// accumulating onto first. It follows next links until none remain,
// regardless of any limit the first page was issued with: its purpose is
// exhaustive retrieval.
func (c *Client) Everything(ctx context.Context, first []Item) ([]Item, error) {
	items := append([]Item(nil), first...)
	for c.nextLink() != "" {
		d, err := c.followDecoded(ctx)
		if err != nil {
			return nil, err
		}
		if d == nil {
			break
		}
		items = append(items, d.Items...)
	}
	return items, nil
}

// EverythingStrings is Everything for calls that decode to strings:
// bibliography and citation formats, and tag listings. Feed-shaped results
// append their entry lists rather than concatenating raw pages.
func (c *Client) EverythingStrings(ctx context.Context, first []string) ([]string, error) {
	entries := append([]string(nil), first...)
	for c.nextLink() != "" {
		d, err := c.followDecoded(ctx)
		if err != nil {
			return nil, err
		}
		if d == nil {
			break
		}
		entries = append(entries, d.Strings...)
	}
	return entries, nil
}
