// Package pairing groups classified filings by identity and matches each
// ACUSE with its DEMANDA.
package pairing

import (
	"sort"
	"strings"

	"github.com/Lllllllleong/filingmerger/internal/identity"
	"github.com/Lllllllleong/filingmerger/internal/models"
)

// Candidate is a document that survived text extraction and classification.
type Candidate struct {
	Doc    models.RawDocument
	Fields models.ExtractedFields
}

// Outcome accounts for every candidate exactly once: two per pair, one per
// error entry.
type Outcome struct {
	Pairs  []models.MatchedPair
	Errors []models.ErrorEntry
}

// Complete reports whether f carries every field its kind needs to be paired.
// An ACUSE needs a name, folio and office; a DEMANDA needs a name.
func Complete(f models.ExtractedFields) bool {
	if identity.Normalize(f.RawName) == "" {
		return false
	}
	switch f.Kind {
	case models.KindAcuse:
		return strings.TrimSpace(f.RegistryFolio) != "" && strings.TrimSpace(f.OfficeName) != ""
	case models.KindDemanda:
		return true
	}
	return false
}

type group struct {
	acuses   []Candidate
	demandas []Candidate
}

// Pair gates, groups and matches candidates. Gate failures keep input order
// and come first; pairs and group errors follow ordered by identity, then by
// document name.
func Pair(candidates []Candidate) Outcome {
	var out Outcome
	groups := make(map[string]*group)

	for _, c := range candidates {
		if c.Fields.Kind != models.KindAcuse && c.Fields.Kind != models.KindDemanda {
			out.Errors = append(out.Errors, models.NewErrorEntry(c.Doc.Name, c.Fields, models.ReasonUnclassified))
			continue
		}
		if !Complete(c.Fields) {
			out.Errors = append(out.Errors, models.NewErrorEntry(c.Doc.Name, c.Fields, models.ReasonIncompleteFields))
			continue
		}
		id := identity.Normalize(c.Fields.RawName)
		g, ok := groups[id]
		if !ok {
			g = &group{}
			groups[id] = g
		}
		if c.Fields.Kind == models.KindAcuse {
			g.acuses = append(g.acuses, c)
		} else {
			g.demandas = append(g.demandas, c)
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		g := groups[id]
		sortByName(g.acuses)
		sortByName(g.demandas)

		acuseDup, demandaDup := len(g.acuses) > 1, len(g.demandas) > 1
		switch {
		case acuseDup || demandaDup:
			out.Errors = append(out.Errors, groupErrors(g.acuses, acuseDup, models.ReasonDuplicateAcuse)...)
			out.Errors = append(out.Errors, groupErrors(g.demandas, demandaDup, models.ReasonDuplicateDemanda)...)
		case len(g.acuses) == 1 && len(g.demandas) == 1:
			out.Pairs = append(out.Pairs, newPair(id, g.acuses[0], g.demandas[0]))
		case len(g.acuses) == 1:
			a := g.acuses[0]
			out.Errors = append(out.Errors, models.NewErrorEntry(a.Doc.Name, a.Fields, models.ReasonNoMatchingDemanda))
		case len(g.demandas) == 1:
			d := g.demandas[0]
			out.Errors = append(out.Errors, models.NewErrorEntry(d.Doc.Name, d.Fields, models.ReasonNoMatchingAcuse))
		}
	}
	return out
}

// groupErrors marks every member as a duplicate when dup is set; otherwise a
// lone member is orphaned by its duplicated counterpart.
func groupErrors(members []Candidate, dup bool, dupReason models.ReasonCode) []models.ErrorEntry {
	reason := dupReason
	if !dup {
		reason = models.ReasonOrphanedDuplicate
	}
	entries := make([]models.ErrorEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, models.NewErrorEntry(m.Doc.Name, m.Fields, reason))
	}
	return entries
}

func newPair(id string, acuse, demanda Candidate) models.MatchedPair {
	return models.MatchedPair{
		Identity: id,
		Name:     identity.RestoreEnye(strings.Join(strings.Fields(demanda.Fields.RawName), " ")),
		Folio:    strings.TrimSpace(acuse.Fields.RegistryFolio),
		Office:   strings.TrimSpace(acuse.Fields.OfficeName),
		Acuse:    acuse.Doc,
		Demanda:  demanda.Doc,
	}
}

func sortByName(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Doc.Name != cs[j].Doc.Name {
			return cs[i].Doc.Name < cs[j].Doc.Name
		}
		return cs[i].Doc.ID < cs[j].Doc.ID
	})
}
