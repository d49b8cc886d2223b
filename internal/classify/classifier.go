// Package classify decides whether a filing is an ACUSE or a DEMANDA.
package classify

import (
	"strings"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// Rule maps a set of lower-case keywords to a kind. A rule matches when any
// keyword is a substring of the lower-cased text (or file name, when
// MatchFileName is set).
type Rule struct {
	Kind          models.DocumentKind
	Keywords      []string
	MatchFileName bool
}

// DefaultRules is the filing heuristic. Order is precedence.
var DefaultRules = []Rule{
	{Kind: models.KindAcuse, Keywords: []string{"acuse"}, MatchFileName: true},
	{Kind: models.KindDemanda, Keywords: []string{"medios preparatorios", "escrito inicial", "vs"}},
}

// Classifier applies rules in order; the first match wins.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over rules, or DefaultRules when none are given.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the kind of a document from its text and file name.
func (c *Classifier) Classify(text, fileName string) models.DocumentKind {
	lowerText := strings.ToLower(text)
	lowerName := strings.ToLower(fileName)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lowerText, kw) || (r.MatchFileName && strings.Contains(lowerName, kw)) {
				return r.Kind
			}
		}
	}
	return models.KindUnknown
}
