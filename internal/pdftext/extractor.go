// Package pdftext reads the text layer of a PDF. It never fails: documents
// that cannot be decoded produce empty text.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Strategy is one way of decoding a PDF's text layer.
type Strategy interface {
	Name() string
	Text(content []byte) (string, error)
}

// Extractor tries its strategies in order and returns the first non-blank
// result.
type Extractor struct {
	strategies []Strategy
}

// New returns an extractor over strategies. With none given it uses the
// plain-text layer first and falls back to decoding content streams.
func New(strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = []Strategy{PlainText{}, ContentStream{}}
	}
	return &Extractor{strategies: strategies}
}

// Extract returns the page texts of content joined with newlines, in page
// order. Any decode error, including a panic in a PDF library, yields "".
func (e *Extractor) Extract(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	for _, s := range e.strategies {
		text, err := safeText(s, content)
		if err != nil {
			slog.Debug("Text strategy failed.", "strategy", s.Name(), "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

func safeText(s Strategy, content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%s panicked: %v", s.Name(), r)
		}
	}()
	return s.Text(content)
}

// PlainText reads the text layer with ledongthuc/pdf.
type PlainText struct{}

func (PlainText) Name() string { return "plaintext" }

func (PlainText) Text(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	var pages []string
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", pageNum, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

// ContentStream decodes text-showing operators from pdfcpu page content.
type ContentStream struct{}

func (ContentStream) Name() string { return "contentstream" }

func (ContentStream) Text(content []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}
	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", pageNr, err)
		}
		if text := decodeContent(data); strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}
