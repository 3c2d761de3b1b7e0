// Package upload pulls the uploaded document out of a multipart request
// without buffering the whole body.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

var (
	// ErrNotMultipart means the request body is not a multipart envelope.
	ErrNotMultipart = errors.New("upload: request is not multipart")
	// ErrNoFilePart means the envelope carried only plain form fields.
	ErrNoFilePart = errors.New("upload: no file part in request")
	// ErrMalformed means the multipart envelope could not be parsed.
	ErrMalformed = errors.New("upload: malformed multipart body")
)

// Part is the selected file part. Body streams the part content and must be
// consumed before the next read from the request.
type Part struct {
	FieldName   string
	Filename    string
	ContentType string
	Body        io.Reader

	part *multipart.Part
}

// Close releases the underlying multipart part.
func (p *Part) Close() error {
	if p == nil || p.part == nil {
		return nil
	}
	return p.part.Close()
}

// Extractor selects the uploaded file from a request.
type Extractor struct {
	// MaxFormFieldBytes bounds how much of each skipped form field is read.
	MaxFormFieldBytes int64
}

// NewExtractor returns an Extractor with default limits.
func NewExtractor() *Extractor {
	return &Extractor{MaxFormFieldBytes: 1 << 20}
}

// IsMultipart reports whether the request declares a multipart body.
func IsMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// Extract returns the first part that carries a filename, in the order the
// parts were sent. Plain form fields before it are skipped; parts after it are
// never read.
func (e *Extractor) Extract(r *http.Request) (*Part, error) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, ErrNotMultipart
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("%w: missing boundary", ErrMalformed)
	}

	body := &closeWatcher{r: r.Body, delimiter: []byte("--" + boundary + "--")}
	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			if !body.closed {
				return nil, fmt.Errorf("%w: body ended before the close delimiter", ErrMalformed)
			}
			return nil, ErrNoFilePart
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		if part.FileName() == "" {
			if err := e.skip(part); err != nil {
				_ = part.Close()
				return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			_ = part.Close()
			continue
		}

		return &Part{
			FieldName:   part.FormName(),
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
			part:        part,
		}, nil
	}
}

func (e *Extractor) skip(part *multipart.Part) error {
	limit := e.MaxFormFieldBytes
	if limit <= 0 {
		_, err := io.Copy(io.Discard, part)
		return err
	}
	n, err := io.Copy(io.Discard, io.LimitReader(part, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return fmt.Errorf("form field %q exceeds %d bytes", part.FormName(), limit)
	}
	return nil
}

// closeWatcher records whether the multipart close delimiter went past, so a
// body cut short can be told apart from one that simply had no file part.
type closeWatcher struct {
	r         io.Reader
	delimiter []byte
	tail      []byte
	closed    bool
}

func (w *closeWatcher) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if n > 0 && !w.closed {
		window := append(w.tail, p[:n]...)
		if bytes.Contains(window, w.delimiter) {
			w.closed = true
			w.tail = nil
		} else {
			keep := min(len(window), len(w.delimiter)-1)
			w.tail = append(w.tail[:0:0], window[len(window)-keep:]...)
		}
	}
	return n, err
}
