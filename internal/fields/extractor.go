// Package fields pulls structured values out of filing text with per-kind
// pattern strategies.
package fields

import (
	"regexp"
	"strings"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// Strategy extracts fields for one document kind.
type Strategy interface {
	Extract(text string) models.ExtractedFields
}

// LayoutStrategy applies a Layout to pre-processed text.
type LayoutStrategy struct {
	Kind   models.DocumentKind
	Layout Layout
}

// Extract always returns a record with Kind set; unmatched fields are empty.
func (s LayoutStrategy) Extract(text string) models.ExtractedFields {
	text = Preprocess(text)
	for _, re := range s.Layout.Boilerplate {
		text = re.ReplaceAllString(text, " ")
	}
	return models.ExtractedFields{
		Kind:          s.Kind,
		RawName:       firstGroup(s.Layout.Name, text),
		OfficeName:    firstGroup(s.Layout.Office, text),
		RegistryFolio: firstGroup(s.Layout.Folio, text),
	}
}

// Extractor dispatches to the strategy registered for a kind.
type Extractor struct {
	strategies map[models.DocumentKind]Strategy
}

// NewExtractor returns an extractor with the ACUSE and DEMANDA layouts.
func NewExtractor() *Extractor {
	return &Extractor{strategies: map[models.DocumentKind]Strategy{
		models.KindAcuse:   LayoutStrategy{Kind: models.KindAcuse, Layout: AcuseLayout},
		models.KindDemanda: LayoutStrategy{Kind: models.KindDemanda, Layout: DemandaLayout},
	}}
}

// Register installs or replaces the strategy for a kind.
func (e *Extractor) Register(kind models.DocumentKind, s Strategy) {
	e.strategies[kind] = s
}

// Extract runs the strategy for kind. Kinds without a strategy yield a
// record with only Kind set.
func (e *Extractor) Extract(kind models.DocumentKind, text string) models.ExtractedFields {
	s, ok := e.strategies[kind]
	if !ok {
		return models.ExtractedFields{Kind: kind}
	}
	return s.Extract(text)
}

// Preprocess repairs word fusions left by the text layer.
func Preprocess(text string) string {
	for _, fw := range fusedWords {
		text = strings.ReplaceAll(text, fw.from, fw.to)
	}
	return caseBoundary.ReplaceAllString(text, "$1 $2")
}

func firstGroup(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
