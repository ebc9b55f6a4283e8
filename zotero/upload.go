package zotero

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// UploadResult reports the per-file outcome of an attachment upload batch.
type UploadResult struct {
	Success   []Item
	Failure   []Item
	Unchanged []Item
}

// uploadAuthorization is the server's answer to an upload authorization
// request: either the file is already known (exists), or the storage
// coordinates for the transfer.
type uploadAuthorization struct {
	Exists    int               `json:"exists"`
	URL       string            `json:"url"`
	Params    map[string]string `json:"params"`
	UploadKey string            `json:"uploadKey"`
}

// UploadAttachments registers and uploads attachment items. Each record
// must carry a filename in its data payload; basedir, when non-empty, is
// prepended to resolve the local path. Records carrying a key reattempt the
// upload for an existing attachment item; records without keys are created
// first (under parentID when given). Mixing keyed and unkeyed records in
// one batch is not supported.
//
// Files the server already holds are reported as unchanged. A failure to
// authorize or transfer one file does not abort the rest of the batch.
func (c *Client) UploadAttachments(ctx context.Context, attachments []Item, parentID, basedir string) (*UploadResult, error) {
	if len(attachments) == 0 {
		return nil, fmt.Errorf("%w: no attachments provided", ErrParamNotPassed)
	}

	// every file must exist before anything is sent
	for _, att := range attachments {
		if _, err := os.Stat(c.attachmentPath(att, basedir)); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, c.attachmentPath(att, basedir))
		}
	}

	keyed := 0
	for _, att := range attachments {
		if att.Key() != "" {
			keyed++
		}
	}
	switch keyed {
	case len(attachments):
		// all registered already, go straight to the transfers
	case 0:
		if err := c.registerAttachments(ctx, attachments, parentID, basedir); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: batches may not mix keyed and unkeyed attachments", ErrUnsupportedParams)
	}

	result := &UploadResult{}
	for _, att := range attachments {
		if att.Key() == "" {
			// registration did not yield a key for this record
			result.Failure = append(result.Failure, att)
			continue
		}
		status, err := c.uploadFile(ctx, att, basedir)
		if err != nil {
			c.logger.Warn("attachment upload failed", "key", att.Key(), "error", err)
			result.Failure = append(result.Failure, att)
			continue
		}
		if status == uploadUnchanged {
			result.Unchanged = append(result.Unchanged, att)
		} else {
			result.Success = append(result.Success, att)
		}
	}
	return result, nil
}

func (c *Client) attachmentPath(att Item, basedir string) string {
	filename, _ := att.Data()["filename"].(string)
	if basedir == "" {
		return filename
	}
	return filepath.Join(basedir, filename)
}

// registerAttachments creates the attachment items and writes the assigned
// keys back into the records, matched by batch position.
func (c *Client) registerAttachments(ctx context.Context, attachments []Item, parentID, basedir string) error {
	payload := make([]Item, len(attachments))
	for i, att := range attachments {
		data := c.cleanup(att)
		if ct, ok := data["contentType"].(string); !ok || ct == "" {
			data["contentType"] = detectContentType(c.attachmentPath(att, basedir))
		}
		if parentID != "" {
			data["parentItem"] = parentID
		}
		payload[i] = data
	}
	created, err := c.CreateItems(ctx, payload)
	if err != nil {
		return err
	}
	for idx, key := range created.Success {
		pos, err := strconv.Atoi(idx)
		if err != nil || pos < 0 || pos >= len(attachments) {
			continue
		}
		attachments[pos]["key"] = key
	}
	return nil
}

func detectContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type uploadStatus int

const (
	uploadDone uploadStatus = iota
	uploadUnchanged
)

// uploadFile runs the authorize / transfer / commit sequence for one file.
func (c *Client) uploadFile(ctx context.Context, att Item, basedir string) (uploadStatus, error) {
	path := c.attachmentPath(att, basedir)
	digest, size, err := fileDigest(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrFileDoesNotExist, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrFileDoesNotExist, path)
	}

	auth, err := c.authorizeUpload(ctx, att, digest, size, info.ModTime().UnixMilli(), filepath.Base(path))
	if err != nil {
		return 0, err
	}
	if auth.Exists == 1 {
		return uploadUnchanged, nil
	}
	if err := c.transferUpload(ctx, auth, path); err != nil {
		return 0, err
	}
	if err := c.commitUpload(ctx, att, auth.UploadKey); err != nil {
		return 0, err
	}
	return uploadDone, nil
}

// authorizeUpload asks the API for storage coordinates. A record already
// carrying an md5 presents it as a precondition; a fresh record demands
// that no file exist yet.
func (c *Client) authorizeUpload(ctx context.Context, att Item, digest string, size int64, mtimeMillis int64, baseName string) (*uploadAuthorization, error) {
	form := url.Values{}
	form.Set("md5", digest)
	form.Set("filename", baseName)
	form.Set("filesize", strconv.FormatInt(size, 10))
	form.Set("mtime", strconv.FormatInt(mtimeMillis, 10))
	form.Set("params", "1")
	data := att.Data()
	if ct, ok := data["contentType"].(string); ok && ct != "" {
		form.Set("contentType", ct)
	}
	if cs, ok := data["charset"].(string); ok && cs != "" {
		form.Set("charset", cs)
	}

	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	if existing, ok := data["md5"].(string); ok && existing != "" {
		headers["If-Match"] = existing
	} else {
		headers["If-None-Match"] = "*"
	}

	resp, err := c.postFormResponse(ctx, "/{t}/{u}/items/"+att.Key()+"/file", form, headers)
	if err != nil {
		return nil, err
	}
	return decodeAuthorization(resp.body)
}

func decodeAuthorization(body []byte) (*uploadAuthorization, error) {
	var auth uploadAuthorization
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("zotero: parsing upload authorization: %w", err)
	}
	return &auth, nil
}

// fileDigest returns the hex MD5 and byte size of a file. The storage
// protocol mandates MD5 for content addressing.
func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := md5.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// transferUpload posts the file to the storage host. The request carries no
// API credentials: the signed form fields are the authorization, and the
// key field must lead the body for the storage host to accept it.
func (c *Client) transferUpload(ctx context.Context, auth *uploadAuthorization, path string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	writeField := func(name string) error {
		if v, ok := auth.Params[name]; ok {
			return w.WriteField(name, v)
		}
		return nil
	}
	if err := writeField("key"); err != nil {
		return err
	}
	rest := make([]string, 0, len(auth.Params))
	for name := range auth.Params {
		if name != "key" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		if err := writeField(name); err != nil {
			return err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileDoesNotExist, path)
	}
	defer f.Close()
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.URL, &buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", "zotero-go/"+Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: storage host returned %d: %s", ErrUpload, resp.StatusCode, body)
	}
	return nil
}

// commitUpload tells the API the transfer finished, turning the staged
// upload into the attachment's file.
func (c *Client) commitUpload(ctx context.Context, att Item, uploadKey string) error {
	form := url.Values{}
	form.Set("upload", uploadKey)
	headers := map[string]string{
		"Content-Type":  "application/x-www-form-urlencoded",
		"If-None-Match": "*",
	}
	return c.postForm(ctx, "/{t}/{u}/items/"+att.Key()+"/file", form, headers)
}

// postForm dispatches a form-encoded POST through the shared pipeline.
func (c *Client) postForm(ctx context.Context, template string, form url.Values, headers map[string]string) error {
	_, err := c.postFormResponse(ctx, template, form, headers)
	return err
}

func (c *Client) postFormResponse(ctx context.Context, template string, form url.Values, headers map[string]string) (*response, error) {
	path, err := c.expandPath(template)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, buildURL(c.endpoint, path), nil, headers,
		strings.NewReader(form.Encode()))
}

// AttachmentSimple registers and uploads files as standalone attachments,
// using the stored-file attachment template for each.
func (c *Client) AttachmentSimple(ctx context.Context, files []string) (*UploadResult, error) {
	return c.AttachmentBoth(ctx, nil, files, "")
}

// AttachmentBoth registers and uploads files under an optional parent item,
// pairing each file with a display title. titles may be nil to reuse the
// file's base name.
func (c *Client) AttachmentBoth(ctx context.Context, titles []string, files []string, parentID string) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files provided", ErrParamNotPassed)
	}
	if titles != nil && len(titles) != len(files) {
		return nil, fmt.Errorf("%w: titles and files must pair up", ErrUnsupportedParams)
	}
	tmpl, err := c.ItemTemplate(ctx, "attachment", "imported_file")
	if err != nil {
		return nil, err
	}
	attachments := make([]Item, len(files))
	for i, file := range files {
		att := make(Item, len(tmpl)+2)
		for k, v := range tmpl {
			att[k] = v
		}
		title := filepath.Base(file)
		if titles != nil {
			title = titles[i]
		}
		att["title"] = title
		att["filename"] = file
		attachments[i] = att
	}
	return c.UploadAttachments(ctx, attachments, parentID, "")
}
