package zotero

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// response captures everything downstream components need from a completed
// HTTP call: the error classifier, content negotiator and link walker all
// consult it.
type response struct {
	status     int
	header     http.Header
	body       []byte
	url        *url.URL // final URL as requested, query included
	method     string
	compressed bool // server zipped the payload (marker on a redirect hop)
}

// do performs one HTTP call: waits out any active backoff, dispatches the
// request with the default headers, records any rate-limit hint from the
// response, and classifies the status code.
//
// A 429 carrying a Backoff or Retry-After header is recovered internally:
// the backoff tracker is armed and no error is returned. A 429 without one
// is fatal (ErrTooManyRetries).
func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, headers map[string]string, body io.Reader) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	c.checkBackoff()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotReachURL, err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotReachURL, err)
	}
	for k, v := range c.defaultHeaders() {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("dispatching request", "method", method, "url", u.String())
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotReachURL, err)
	}
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrCouldNotReachURL, err)
	}

	resp := &response{
		status:     httpResp.StatusCode,
		header:     httpResp.Header,
		body:       raw,
		url:        httpResp.Request.URL,
		method:     method,
		compressed: wasCompressed(httpResp),
	}
	c.mu.Lock()
	c.lastResponse = resp
	c.mu.Unlock()

	c.recordBackoff(resp.header)
	if err := c.classify(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// classify maps a completed response to the error taxonomy. Responses below
// 400 pass. See do for the 429 rules.
func (c *Client) classify(resp *response) error {
	if resp.status < 400 {
		return nil
	}
	if resp.status == http.StatusTooManyRequests {
		if backoffDuration(resp.header) > 0 {
			// recordBackoff has already armed the tracker; the caller's
			// next call waits it out. The request itself is not retried.
			return nil
		}
		return c.apiError(resp, ErrTooManyRetries)
	}
	kind, ok := statusErrors[resp.status]
	if !ok {
		kind = ErrHTTP
	}
	return c.apiError(resp, kind)
}

func (c *Client) apiError(resp *response, kind error) error {
	return &APIError{
		Kind:       kind,
		StatusCode: resp.status,
		Method:     resp.method,
		URL:        resp.url.String(),
		Body:       string(resp.body),
	}
}

// wasCompressed walks the redirect chain for the Zotero-File-Compressed
// marker: the API signals on the redirect hop that a plain-text attachment
// was zipped in transit.
func wasCompressed(resp *http.Response) bool {
	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		if req.Response.Header.Get("Zotero-File-Compressed") == "Yes" {
			return true
		}
	}
	return false
}

// retrieveData issues a read request against the resource tree. path may
// carry its own query string (when it comes from a pagination link); those
// parameters survive unless overridden by the stored defaults or params.
// seedDefaults controls whether empty stored parameters are seeded with the
// format/limit defaults; file and template calls skip that.
//
// The locale is attached only when the call is not the continuation of a
// pagination cursor that already carries one.
func (c *Client) retrieveData(ctx context.Context, path string, params Params, seedDefaults bool) (*response, error) {
	full := buildURL(c.endpoint, path)

	c.mu.Lock()
	needsLocale := c.links == nil || !hasQueryParam(c.links["next"], "locale")
	c.mu.Unlock()
	if params == nil {
		params = Params{}
	} else {
		params = params.clone()
	}
	if needsLocale {
		params["locale"] = c.locale
	}

	merged := c.storedParams(seedDefaults)
	for k, v := range params {
		merged[k] = v
	}
	finalURL, values, err := splitURLParams(full, merged)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, finalURL, values, nil, nil)
}
