// Package merge concatenates an ACUSE and its DEMANDA into one PDF.
package merge

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Merger writes the pages of each input in argument order.
type Merger struct{}

// New returns a Merger.
func New() *Merger {
	return &Merger{}
}

// Merge returns a PDF holding the ACUSE pages followed by the DEMANDA pages.
// Any malformed input fails the whole merge.
func (m *Merger) Merge(acuse, demanda []byte) (merged []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			merged, err = nil, fmt.Errorf("pdfcpu merge panicked: %v", r)
		}
	}()
	if len(acuse) == 0 || len(demanda) == 0 {
		return nil, fmt.Errorf("cannot merge an empty document")
	}

	var out bytes.Buffer
	inputs := []io.ReadSeeker{bytes.NewReader(acuse), bytes.NewReader(demanda)}
	if err := api.MergeRaw(inputs, &out, false, relaxedConfig()); err != nil {
		return nil, fmt.Errorf("failed to merge PDFs: %w", err)
	}
	return out.Bytes(), nil
}

// PageCount returns the number of pages in content.
func PageCount(content []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(content), relaxedConfig())
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}
