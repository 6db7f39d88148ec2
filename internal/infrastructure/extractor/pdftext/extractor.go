package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

const defaultMaxBytes int64 = 32 << 20

// Extractor parses PDF bytes with ledongthuc/pdf. It serves both the text
// extraction used by LLM providers and the previewer's document handles.
type Extractor struct {
	maxBytes int64
}

func NewExtractor(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) OpenDocument(ctx context.Context, content io.Reader) (ports.DocumentHandle, error) {
	return e.open(ctx, content)
}

// Extract returns the text of every page, pages separated by a blank line.
func (e *Extractor) Extract(ctx context.Context, content io.Reader) (string, error) {
	doc, err := e.open(ctx, content)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPages())
	for page := 1; page <= doc.NumPages(); page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.PageText(page)
		if err != nil {
			return "", err
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf text", errors.New("document has no extractable text"))
	}
	return strings.Join(pages, "\n\n"), nil
}

func (e *Extractor) open(ctx context.Context, content io.Reader) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(content, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return nil, domain.WrapError(domain.ErrFileTooLarge, "open pdf", fmt.Errorf("pdf exceeds %d bytes", e.maxBytes))
	}
	var (
		reader *pdf.Reader
		pages  int
	)
	err = guard("open pdf", func() error {
		r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			return domain.WrapError(domain.ErrInvalidFileType, "open pdf", err)
		}
		reader, pages = r, r.NumPage()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Document{reader: reader, pages: pages, text: make(map[int]string)}, nil
}

// guard turns parser panics on malformed input into ErrInvalidFileType.
// ledongthuc/pdf resolves objects lazily and panics on broken references.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrInvalidFileType, op, fmt.Errorf("malformed pdf: %v", r))
		}
	}()
	return fn()
}

// Document is an open PDF. Page text is extracted on first access and cached.
type Document struct {
	mu     sync.Mutex
	reader *pdf.Reader
	pages  int
	text   map[int]string
}

func (d *Document) NumPages() int {
	return d.pages
}

func (d *Document) PageText(page int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reader == nil {
		return "", errors.New("pdf document is closed")
	}
	if page < 1 || page > d.pages {
		return "", domain.WrapError(domain.ErrInvalidInput, "pdf page text", fmt.Errorf("page %d outside 1..%d", page, d.pages))
	}
	if text, ok := d.text[page]; ok {
		return text, nil
	}

	var text string
	err := guard("pdf page text", func() error {
		p := d.reader.Page(page)
		if p.V.IsNull() {
			return fmt.Errorf("pdf page %d missing", page)
		}
		plain, err := p.GetPlainText(nil)
		if err != nil {
			return fmt.Errorf("extract text of page %d: %w", page, err)
		}
		text = plain
		return nil
	})
	if err != nil {
		return "", err
	}
	d.text[page] = text
	return text, nil
}

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reader = nil
	d.text = nil
	return nil
}
