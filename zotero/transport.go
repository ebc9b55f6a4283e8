package zotero

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strconv"
)

// transport dispatches on URL scheme: http(s) goes to the network transport,
// file:// to the local filesystem transport. This lets the same client serve
// remote libraries and exported local snapshots.
type transport struct {
	network http.RoundTripper
	file    http.RoundTripper
}

func newTransport(network http.RoundTripper) *transport {
	return &transport{network: network, file: fileTransport{}}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "file" {
		return t.file.RoundTrip(req)
	}
	return t.network.RoundTrip(req)
}

// fileTransport serves file:// requests from the local filesystem. Only GET
// and HEAD are supported; write verbs return structured errors the same way
// a server would.
type fileTransport struct{}

func (fileTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != "" && req.URL.Host != "localhost" {
		return fileResponse(req, http.StatusNotImplemented, nil), nil
	}
	switch req.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodPut, http.MethodDelete:
		return fileResponse(req, http.StatusNotImplemented, nil), nil
	default:
		return fileResponse(req, http.StatusMethodNotAllowed, nil), nil
	}
	content, err := os.ReadFile(req.URL.Path)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		return fileResponse(req, http.StatusNotFound, nil), nil
	case os.IsPermission(err):
		return fileResponse(req, http.StatusForbidden, nil), nil
	default:
		return nil, err
	}
	if req.Method == http.MethodHead {
		resp := fileResponse(req, http.StatusOK, nil)
		resp.Header.Set("Content-Length", strconv.Itoa(len(content)))
		return resp, nil
	}
	return fileResponse(req, http.StatusOK, content), nil
}

func fileResponse(req *http.Request, status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Length": []string{strconv.Itoa(len(body))}},
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}
}
