package pairing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

func acuse(file, name, folio, office string) Candidate {
	return Candidate{
		Doc:    models.RawDocument{ID: "id-" + file, Name: file},
		Fields: models.ExtractedFields{Kind: models.KindAcuse, RawName: name, RegistryFolio: folio, OfficeName: office},
	}
}

func demanda(file, name string) Candidate {
	return Candidate{
		Doc:    models.RawDocument{ID: "id-" + file, Name: file},
		Fields: models.ExtractedFields{Kind: models.KindDemanda, RawName: name},
	}
}

func reasons(entries []models.ErrorEntry) map[string]models.ReasonCode {
	m := make(map[string]models.ReasonCode, len(entries))
	for _, e := range entries {
		m[e.DocumentName] = e.Reason
	}
	return m
}

func TestPairMatches(t *testing.T) {
	out := Pair([]Candidate{
		demanda("d.pdf", "Juan  Pérez"),
		acuse("a.pdf", "JUAN PEREZ", "123/2024", "Oficina Central"),
	})

	require.Len(t, out.Pairs, 1)
	assert.Empty(t, out.Errors)
	p := out.Pairs[0]
	assert.Equal(t, "JUAN PEREZ", p.Identity)
	assert.Equal(t, "Juan Pérez", p.Name)
	assert.Equal(t, "123/2024", p.Folio)
	assert.Equal(t, "Oficina Central", p.Office)
	assert.Equal(t, "a.pdf", p.Acuse.Name)
	assert.Equal(t, "d.pdf", p.Demanda.Name)
}

func TestPairDanglingEnye(t *testing.T) {
	out := Pair([]Candidate{
		acuse("a.pdf", "JOSE MUn OZ", "9/2024", "Oficina Central"),
		demanda("d.pdf", "JOSE MUn  OZ"),
	})

	require.Len(t, out.Pairs, 1)
	assert.Empty(t, out.Errors)
	assert.Equal(t, "JOSE MUNOZ", out.Pairs[0].Identity)
	assert.Equal(t, "JOSE MUÑOZ", out.Pairs[0].Name)
}

func TestPairUnmatchedDemanda(t *testing.T) {
	out := Pair([]Candidate{demanda("maria.pdf", "MARIA LOPEZ")})

	assert.Empty(t, out.Pairs)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, models.ReasonNoMatchingAcuse, out.Errors[0].Reason)
	assert.Equal(t, "no matching ACUSE", out.Errors[0].Reason.Text())
	assert.Equal(t, "maria.pdf", out.Errors[0].DocumentName)
}

func TestPairUnmatchedAcuse(t *testing.T) {
	out := Pair([]Candidate{acuse("a.pdf", "ANA", "1/2", "Oficina")})
	require.Len(t, out.Errors, 1)
	assert.Equal(t, models.ReasonNoMatchingDemanda, out.Errors[0].Reason)
}

func TestPairDuplicates(t *testing.T) {
	out := Pair([]Candidate{
		acuse("a1.pdf", "ANA RUIZ", "1/2024", "Oficina"),
		acuse("a2.pdf", "Ana Ruíz", "2/2024", "Oficina"),
		demanda("d.pdf", "ANA RUIZ"),
		acuse("b.pdf", "BETO", "3/2024", "Oficina"),
		demanda("b-d.pdf", "BETO"),
	})

	require.Len(t, out.Pairs, 1)
	assert.Equal(t, "BETO", out.Pairs[0].Identity)
	assert.Equal(t, map[string]models.ReasonCode{
		"a1.pdf": models.ReasonDuplicateAcuse,
		"a2.pdf": models.ReasonDuplicateAcuse,
		"d.pdf":  models.ReasonOrphanedDuplicate,
	}, reasons(out.Errors))
}

func TestPairDuplicatesOnBothSides(t *testing.T) {
	out := Pair([]Candidate{
		demanda("d1.pdf", "ANA"),
		demanda("d2.pdf", "ANA"),
		acuse("a1.pdf", "ANA", "1/2", "Oficina"),
		acuse("a2.pdf", "ANA", "1/2", "Oficina"),
	})

	assert.Empty(t, out.Pairs)
	assert.Equal(t, map[string]models.ReasonCode{
		"a1.pdf": models.ReasonDuplicateAcuse,
		"a2.pdf": models.ReasonDuplicateAcuse,
		"d1.pdf": models.ReasonDuplicateDemanda,
		"d2.pdf": models.ReasonDuplicateDemanda,
	}, reasons(out.Errors))
}

func TestPairGate(t *testing.T) {
	out := Pair([]Candidate{
		acuse("no-folio.pdf", "JUAN", "", "Oficina"),
		acuse("no-office.pdf", "JUAN", "1/2", ""),
		acuse("no-name.pdf", "", "1/2", "Oficina"),
		demanda("blank.pdf", "   "),
		demanda("juan.pdf", "JUAN"),
		{Doc: models.RawDocument{Name: "x.pdf"}, Fields: models.ExtractedFields{Kind: models.KindUnknown}},
	})

	assert.Empty(t, out.Pairs)
	assert.Equal(t, map[string]models.ReasonCode{
		"no-folio.pdf":  models.ReasonIncompleteFields,
		"no-office.pdf": models.ReasonIncompleteFields,
		"no-name.pdf":   models.ReasonIncompleteFields,
		"blank.pdf":     models.ReasonIncompleteFields,
		"x.pdf":         models.ReasonUnclassified,
		"juan.pdf":      models.ReasonNoMatchingAcuse,
	}, reasons(out.Errors))
}

func TestPairAccountsForEveryDocument(t *testing.T) {
	var in []Candidate
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("CLIENTE %d", i%13)
		switch i % 4 {
		case 0, 1:
			in = append(in, acuse(fmt.Sprintf("a%02d.pdf", i), name, "1/2024", "Oficina"))
		case 2:
			in = append(in, demanda(fmt.Sprintf("d%02d.pdf", i), name))
		case 3:
			in = append(in, acuse(fmt.Sprintf("p%02d.pdf", i), name, "", ""))
		}
	}

	out := Pair(in)

	seen := make(map[string]int)
	for _, p := range out.Pairs {
		seen[p.Acuse.Name]++
		seen[p.Demanda.Name]++
	}
	for _, e := range out.Errors {
		seen[e.DocumentName]++
	}
	assert.Len(t, seen, len(in))
	for name, n := range seen {
		assert.Equal(t, 1, n, name)
	}
	assert.Equal(t, len(in), 2*len(out.Pairs)+len(out.Errors))
}

func TestPairDeterministicOrder(t *testing.T) {
	in := []Candidate{
		acuse("z.pdf", "ZOE", "1/2", "O"), demanda("zd.pdf", "ZOE"),
		acuse("a.pdf", "ANA", "1/2", "O"), demanda("ad.pdf", "ANA"),
		demanda("m.pdf", "MARIO"),
	}
	first := Pair(in)
	reversed := make([]Candidate, len(in))
	for i := range in {
		reversed[len(in)-1-i] = in[i]
	}
	second := Pair(reversed)

	assert.Equal(t, first, second)
	require.Len(t, first.Pairs, 2)
	assert.Equal(t, "ANA", first.Pairs[0].Identity)
	assert.Equal(t, "ZOE", first.Pairs[1].Identity)
}

func TestComplete(t *testing.T) {
	assert.True(t, Complete(models.ExtractedFields{Kind: models.KindDemanda, RawName: "X"}))
	assert.False(t, Complete(models.ExtractedFields{Kind: models.KindAcuse, RawName: "X", RegistryFolio: "1/2"}))
	assert.False(t, Complete(models.ExtractedFields{Kind: models.KindUnknown, RawName: "X"}))
}
