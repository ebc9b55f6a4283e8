package zotero

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Params are query parameters for a single call. Values may be strings,
// ints or bools; a nil value for "limit" omits the parameter entirely
// (see NoLimit).
type Params map[string]any

// clone returns a shallow copy so normalisation never mutates caller maps.
func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// paramString renders a parameter value for the query string.
func paramString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// normalizeParams applies the format/content/limit rules:
//
//   - format defaults to "json"
//   - a content parameter forces format=atom
//   - an unset or zero limit becomes DefaultLimit; NoLimit or nil omits it
//   - format=bib never carries a limit
func normalizeParams(params Params) Params {
	p := params.clone()
	if s, _ := p["format"].(string); s == "" {
		p["format"] = "json"
	}
	if s, _ := p["content"].(string); s != "" {
		p["format"] = "atom"
	}
	switch v, ok := p["limit"]; {
	case !ok, v == 0:
		p["limit"] = DefaultLimit
	case v == NoLimit, v == nil:
		delete(p, "limit")
	}
	if p["format"] == "bib" {
		delete(p, "limit")
	}
	return p
}

// AddParameters stores default query parameters for the next read call,
// applying the format/content/limit rules. Parameters passed to the call
// itself override these per key; the stored set is cleared once the call
// completes.
func (c *Client) AddParameters(params Params) {
	if params == nil {
		params = Params{}
	}
	normalized := normalizeParams(params)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.urlParams == nil {
		c.urlParams = Params{}
	}
	for k, v := range normalized {
		c.urlParams[k] = v
	}
}

// storedParams snapshots the current default parameters. When seed is true
// and none are stored, the format/limit defaults are seeded first.
func (c *Client) storedParams(seed bool) Params {
	c.mu.Lock()
	empty := len(c.urlParams) == 0
	c.mu.Unlock()
	if empty && seed {
		c.AddParameters(nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.urlParams.clone()
}

// clearParams resets the stored default parameters; called after every
// completed read so parameters are single-use.
func (c *Client) clearParams() {
	c.mu.Lock()
	c.urlParams = nil
	c.mu.Unlock()
}

// expandPath substitutes the {t} (library-type segment) and {u} (library id)
// placeholders. Any placeholder left unresolved is an error.
func (c *Client) expandPath(template string) (string, error) {
	path := strings.NewReplacer("{t}", c.libraryType, "{u}", c.libraryID).Replace(template)
	if strings.ContainsAny(path, "{}") {
		return "", fmt.Errorf("%w: unresolved placeholder in %q", ErrParamNotPassed, template)
	}
	return path, nil
}

// buildURL joins the endpoint and a path (which may carry its own query
// string) without doubled or missing slashes.
func buildURL(endpoint, path string) string {
	return strings.TrimSuffix(endpoint, "/") + "/" + strings.TrimPrefix(path, "/")
}

// splitURLParams strips the query string from rawURL and merges it under
// params: parameters carried by a followed pagination link survive unless
// the call sets the same key.
func splitURLParams(rawURL string, params Params) (string, url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrParamNotPassed, err)
	}
	values := url.Values{}
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			values.Set(k, vs[0])
		}
	}
	for k, v := range params {
		if v == nil {
			values.Del(k)
			continue
		}
		values.Set(k, paramString(v))
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), values, nil
}

// headerInt parses an integer header value, returning 0 when absent or
// malformed.
func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return n
}

// hasQueryParam reports whether a path+query fragment carries the named
// query parameter.
func hasQueryParam(fragment, key string) bool {
	i := strings.Index(fragment, "?")
	if i < 0 {
		return false
	}
	values, err := url.ParseQuery(fragment[i+1:])
	if err != nil {
		return false
	}
	return values.Get(key) != ""
}
