package contents

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gallery-go/internal/gallery"
)

const (
	// DefaultGitHubAPIURL is the GitHub REST API endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"
	// DefaultRequestTimeout bounds every HTTP request to the contents API.
	DefaultRequestTimeout = 30 * time.Second

	githubAccept = "application/vnd.github.v3+json"
)

// TokenSource supplies the credential sent with every request.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// requester sends one request to a repository-relative API path, such as
// "/contents/photos", and returns the status code and body.
type requester interface {
	do(ctx context.Context, method, apiPath string, body any) (int, []byte, error)
}

// GitHubStore implements gallery.ContentStore over the GitHub contents API,
// either directly with a personal access token or through a proxy that
// holds the token and accepts a session token instead.
type GitHubStore struct {
	branch string
	req    requester
}

// NewGitHubStore creates a store that talks to the GitHub API directly.
// repo is "owner/name"; an empty branch uses the repository default.
func NewGitHubStore(apiURL, repo, branch string, token TokenSource, timeout time.Duration) *GitHubStore {
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	if token == nil {
		token = StaticToken("")
	}
	return &GitHubStore{
		branch: branch,
		req: &directRequester{
			baseURL:    strings.TrimRight(apiURL, "/") + "/repos/" + repo,
			token:      token,
			httpClient: newHTTPClient(timeout),
		},
	}
}

// NewProxyStore creates a store that sends every request through the proxy
// at endpoint. The proxy owns the repository name and the real token.
func NewProxyStore(endpoint, branch string, token TokenSource, timeout time.Duration) *GitHubStore {
	if token == nil {
		token = StaticToken("")
	}
	return &GitHubStore{
		branch: branch,
		req: &proxyRequester{
			endpoint:   endpoint,
			token:      token,
			httpClient: newHTTPClient(timeout),
		},
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}

// contentItem is an item of the contents API. Directory listings return an
// array of them, single files one object with the content inline.
type contentItem struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	HTMLURL     string `json:"html_url"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type writeResponse struct {
	Content contentItem `json:"content"`
}

type deleteRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch,omitempty"`
}

type commitItem struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
		Committer struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

type blobResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ListDirectory lists dir. Symlinks and submodules are skipped.
func (g *GitHubStore) ListDirectory(ctx context.Context, dir string) ([]gallery.Entry, error) {
	dir, err := cleanPath(dir)
	if err != nil {
		return nil, &gallery.TransportError{Message: err.Error()}
	}

	body, err := g.call(ctx, http.MethodGet, g.contentsPath(dir, true), nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("%s is not a directory", dir)}
	}

	var items []contentItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("failed to parse listing: %v", err)}
	}

	entries := make([]gallery.Entry, 0, len(items))
	for _, item := range items {
		var t gallery.EntryType
		switch item.Type {
		case "file":
			t = gallery.EntryFile
		case "dir":
			t = gallery.EntryDir
		default:
			continue
		}
		entries = append(entries, gallery.Entry{
			Name: item.Name,
			Path: item.Path,
			Type: t,
			Hash: item.SHA,
			Size: item.Size,
			URL:  item.DownloadURL,
		})
	}
	return entries, nil
}

// ReadFile fetches a file. Content the API omits inline (files over 1 MB)
// is fetched through the git blobs API.
func (g *GitHubStore) ReadFile(ctx context.Context, p string) (*gallery.FileContent, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, &gallery.TransportError{Message: err.Error()}
	}

	body, err := g.call(ctx, http.MethodGet, g.contentsPath(p, true), nil)
	if err != nil {
		return nil, err
	}

	var item contentItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("%s is not a file", p)}
	}
	if item.Type != "file" {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("%s is not a file", p)}
	}

	encoded, encoding := item.Content, item.Encoding
	if (encoded == "" && item.Size > 0) || encoding == "none" {
		blob, err := g.readBlob(ctx, item.SHA)
		if err != nil {
			return nil, err
		}
		encoded, encoding = blob.Content, blob.Encoding
	}

	content, err := decodeContent(encoded, encoding)
	if err != nil {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("decoding %s: %v", p, err)}
	}
	return &gallery.FileContent{Path: item.Path, Content: content, Hash: item.SHA}, nil
}

func (g *GitHubStore) readBlob(ctx context.Context, sha string) (*blobResponse, error) {
	body, err := g.call(ctx, http.MethodGet, "/git/blobs/"+url.PathEscape(sha), nil)
	if err != nil {
		return nil, err
	}
	var blob blobResponse
	if err := json.Unmarshal(body, &blob); err != nil {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("failed to parse blob: %v", err)}
	}
	return &blob, nil
}

// WriteFile creates or, with a hash, updates the file at p as one commit.
func (g *GitHubStore) WriteFile(ctx context.Context, p string, content []byte, hash string, message string) (string, error) {
	p, err := cleanPath(p)
	if err != nil || p == "" {
		return "", &gallery.TransportError{Message: fmt.Sprintf("invalid path %q", p)}
	}

	req := writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     hash,
		Branch:  g.branch,
	}
	body, err := g.call(ctx, http.MethodPut, g.contentsPath(p, false), req)
	if err != nil {
		return "", err
	}

	var resp writeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &gallery.TransportError{Message: fmt.Sprintf("failed to parse write response: %v", err)}
	}
	return resp.Content.SHA, nil
}

// DeleteFile deletes the file at p as one commit.
func (g *GitHubStore) DeleteFile(ctx context.Context, p string, hash string, message string) error {
	p, err := cleanPath(p)
	if err != nil || p == "" {
		return &gallery.TransportError{Message: fmt.Sprintf("invalid path %q", p)}
	}

	req := deleteRequest{Message: message, SHA: hash, Branch: g.branch}
	_, err = g.call(ctx, http.MethodDelete, g.contentsPath(p, false), req)
	return err
}

// ListHistory returns the most recent commits touching p, newest first.
// Commit times are committer dates.
func (g *GitHubStore) ListHistory(ctx context.Context, p string, limit int) ([]gallery.HistoryEntry, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, &gallery.TransportError{Message: err.Error()}
	}

	q := url.Values{}
	q.Set("path", p)
	if limit > 0 {
		q.Set("per_page", strconv.Itoa(limit))
	}
	if g.branch != "" {
		q.Set("sha", g.branch)
	}

	body, err := g.call(ctx, http.MethodGet, "/commits?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var commits []commitItem
	if err := json.Unmarshal(body, &commits); err != nil {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("failed to parse commits: %v", err)}
	}

	entries := make([]gallery.HistoryEntry, 0, len(commits))
	for _, c := range commits {
		entries = append(entries, gallery.HistoryEntry{
			Hash:    c.SHA,
			Message: c.Commit.Message,
			Author:  c.Commit.Author.Name,
			Time:    c.Commit.Committer.Date,
		})
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// Verify fetches the repository itself.
func (g *GitHubStore) Verify(ctx context.Context) error {
	_, err := g.call(ctx, http.MethodGet, "", nil)
	return err
}

// contentsPath builds "/contents/<escaped path>", with the branch as ref on
// reads.
func (g *GitHubStore) contentsPath(p string, read bool) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	out := "/contents/" + strings.Join(segs, "/")
	if read && g.branch != "" {
		out += "?ref=" + url.QueryEscape(g.branch)
	}
	return out
}

// call sends a request and maps failure statuses to gallery errors.
func (g *GitHubStore) call(ctx context.Context, method, apiPath string, body any) ([]byte, error) {
	status, data, err := g.req.do(ctx, method, apiPath, body)
	if err != nil {
		return nil, &gallery.TransportError{Message: err.Error()}
	}
	if status >= 200 && status < 300 {
		return data, nil
	}
	return nil, statusError(status, data)
}

// statusError maps a non-2xx status to a gallery error carrying the API
// message.
func statusError(status int, body []byte) error {
	msg := http.StatusText(status)
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, gallery.ErrNotFound)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, gallery.ErrUnauthorized)
	}
	return &gallery.TransportError{Status: status, Message: msg}
}

func decodeContent(encoded, encoding string) ([]byte, error) {
	switch encoding {
	case "base64", "":
		return base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\n", ""))
	case "utf-8":
		return []byte(encoded), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", encoding)
}

// directRequester calls the GitHub API with a personal access token.
type directRequester struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

func (d *directRequester) do(ctx context.Context, method, apiPath string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+apiPath, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", githubAccept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := d.token.Token(); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	return send(d.httpClient, req)
}

// proxyRequest is the envelope the proxy expects. GitHubPath is relative
// to the repository the proxy is configured for.
type proxyRequest struct {
	Method     string `json:"method"`
	GitHubPath string `json:"githubPath"`
	Body       any    `json:"body,omitempty"`
}

// proxyRequester forwards every call through the proxy endpoint with a
// session token.
type proxyRequester struct {
	endpoint   string
	token      TokenSource
	httpClient *http.Client
}

func (p *proxyRequester) do(ctx context.Context, method, apiPath string, body any) (int, []byte, error) {
	payload, err := json.Marshal(proxyRequest{Method: method, GitHubPath: apiPath, Body: body})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := p.token.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return send(p.httpClient, req)
}

func send(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// Compile-time check that GitHubStore implements gallery.ContentStore
var _ gallery.ContentStore = (*GitHubStore)(nil)
