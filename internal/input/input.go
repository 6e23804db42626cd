// Package input resolves the task description a user wants turned into a
// prompt. The text can come from the command line, stdin, a local file
// (plain text, HTML or PDF), or a web page.
package input

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxFileSize     = 10 << 20 // 10MB
	maxURLFetchSize = 5 << 20  // 5MB
	fetchTimeout    = 10 * time.Second
)

// ErrEmptyInput is returned when a source yields no text.
var ErrEmptyInput = errors.New("no input text")

// ErrTooLarge is returned when a source holds more bytes than its limit.
var ErrTooLarge = errors.New("input too large")

// Kind names where a task description comes from.
type Kind string

const (
	KindText  Kind = "text"
	KindStdin Kind = "stdin"
	KindFile  Kind = "file"
	KindURL   Kind = "url"
)

// Source describes one task description. Only the field matching Kind is used.
type Source struct {
	Kind   Kind
	Text   string
	Path   string
	URL    string
	Reader io.Reader
}

// Resolver turns a Source into plain text.
type Resolver struct {
	httpClient *http.Client
}

// NewResolver creates a Resolver. A nil client uses a default one with a
// 10s timeout.
func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Resolver{httpClient: client}
}

// Resolve reads the source and returns its trimmed text. Blank results
// fail with ErrEmptyInput.
func (r *Resolver) Resolve(ctx context.Context, src Source) (string, error) {
	var (
		text string
		err  error
	)

	switch src.Kind {
	case "", KindText:
		text = src.Text
	case KindStdin:
		if src.Reader == nil {
			return "", fmt.Errorf("stdin source has no reader")
		}
		var data []byte
		data, err = readLimited(src.Reader, maxFileSize, "stdin")
		if err == nil {
			text, err = Extract(data, "", "")
		}
	case KindFile:
		text, err = r.readFile(src.Path)
	case KindURL:
		text, err = r.fetch(ctx, src.URL)
	default:
		return "", fmt.Errorf("unknown input kind %q", src.Kind)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	return text, nil
}

func (r *Resolver) readFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := readLimited(f, maxFileSize, path)
	if err != nil {
		return "", err
	}
	return Extract(data, "", filepath.Ext(path))
}

func (r *Resolver) fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}

	body, err := readLimited(resp.Body, maxURLFetchSize, url)
	if err != nil {
		return "", err
	}
	return Extract(body, resp.Header.Get("Content-Type"), filepath.Ext(req.URL.Path))
}

// readLimited reads all of r, failing with ErrTooLarge instead of
// truncating when r holds more than limit bytes.
func readLimited(r io.Reader, limit int64, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", name, ErrTooLarge, limit)
	}
	return data, nil
}

// Extract converts raw content to plain text. The format is picked from
// contentType, then the file extension, then the content itself.
func Extract(data []byte, contentType, ext string) (string, error) {
	switch detect(data, contentType, ext) {
	case formatPDF:
		return pdfText(data)
	case formatHTML:
		return htmlText(bytes.NewReader(data))
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("input is not valid UTF-8 text")
		}
		return string(data), nil
	}
}

type format int

const (
	formatText format = iota
	formatHTML
	formatPDF
)

func detect(data []byte, contentType, ext string) format {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/pdf"):
		return formatPDF
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return formatHTML
	}

	switch strings.ToLower(ext) {
	case ".pdf":
		return formatPDF
	case ".html", ".htm", ".xhtml":
		return formatHTML
	}

	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return formatPDF
	}
	if ct == "" {
		sniffed := http.DetectContentType(data)
		if strings.HasPrefix(sniffed, "text/html") {
			return formatHTML
		}
	}
	return formatText
}
