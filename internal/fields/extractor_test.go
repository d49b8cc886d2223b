package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

const acuseText = "PODER JUDICIAL Acuse de envío de escrito " +
	"Oficina de Correspondencia Común de los Juzgados de Distrito en Materia Civil " +
	"Folio de registro: 123/2024 Documentos: BAZ VS JUAN PEREZ ANEXOS.pdf"

func TestExtractAcuse(t *testing.T) {
	got := NewExtractor().Extract(models.KindAcuse, acuseText)

	assert.Equal(t, models.KindAcuse, got.Kind)
	assert.Equal(t, "JUAN PEREZ", got.RawName)
	assert.Equal(t, "123/2024", got.RegistryFolio)
	assert.Equal(t, "Oficina de Correspondencia Común de los Juzgados de Distrito en Materia Civil", got.OfficeName)
}

func TestExtractAcuseFusedText(t *testing.T) {
	text := "OficinadeCorrespondencia Común en Materia Civil" +
		"Foliode registro: 77/2023\nBAZ VS MARÍA LÓPEZ.pdf"
	got := NewExtractor().Extract(models.KindAcuse, text)

	assert.Equal(t, "MARÍA LÓPEZ", got.RawName)
	assert.Equal(t, "77/2023", got.RegistryFolio)
	assert.Equal(t, "Oficina de Correspondencia Común en Materia Civil", got.OfficeName)
}

func TestExtractAcusePartial(t *testing.T) {
	got := NewExtractor().Extract(models.KindAcuse, "BAZ VS ANA RUIZ ANEXOS.pdf")

	assert.Equal(t, "ANA RUIZ", got.RawName)
	assert.Empty(t, got.RegistryFolio)
	assert.Empty(t, got.OfficeName)
}

func TestExtractAcuseNameAtEndOfText(t *testing.T) {
	got := NewExtractor().Extract(models.KindAcuse, "Folio de registro: 1/2 BAZ VS PEDRO PÁRAMO")
	assert.Equal(t, "PEDRO PÁRAMO", got.RawName)
}

func TestExtractDanglingEnye(t *testing.T) {
	e := NewExtractor()

	a := e.Extract(models.KindAcuse, "Folio de registro: 9/2024 BAZ VS JOSE MUn OZ ANEXOS.pdf")
	assert.Equal(t, "JOSE MUn OZ", a.RawName)

	d := e.Extract(models.KindDemanda, "BANCO AZTECA S.A. VS JOSE MUn OZ MEDIOS PREPARATORIOS A JUICIO")
	assert.Equal(t, "JOSE MUn OZ", d.RawName)

	// A trailing lower-case word is not part of the name.
	d = e.Extract(models.KindDemanda, "BANCO AZTECA VS ANA RUIZ\nno consta")
	assert.Equal(t, "ANA RUIZ", d.RawName)
}

func TestExtractDemanda(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"medios preparatorios", "BANCO AZTECA S.A. VS JUAN PEREZ MEDIOS PREPARATORIOS A JUICIO", "JUAN PEREZ"},
		{"escrito inicial", "BANCO AZTECA VS MARIA LOPEZ ESCRITO INICIAL DE DEMANDA", "MARIA LOPEZ"},
		{"older header", "BAZ VS JOSÉ HERNÁNDEZ C. JUEZ DE DISTRITO", "JOSÉ HERNÁNDEZ"},
		{"line end", "BANCO AZTECA VS ANA RUIZ\nPresente.", "ANA RUIZ"},
		{"no vs", "ESCRITO INICIAL", ""},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(models.KindDemanda, tt.text)
			assert.Equal(t, models.KindDemanda, got.Kind)
			assert.Equal(t, tt.want, got.RawName)
			assert.Empty(t, got.RegistryFolio)
			assert.Empty(t, got.OfficeName)
		})
	}
}

func TestExtractDemandaStripsAcuseBlock(t *testing.T) {
	text := "Acuse de envío de escrito BAZ VS OTRO NOMBRE ANEXOS.pdf " +
		"BANCO AZTECA VS JUAN PEREZ MEDIOS PREPARATORIOS"
	got := NewExtractor().Extract(models.KindDemanda, text)
	assert.Equal(t, "JUAN PEREZ", got.RawName)
}

func TestExtractUnknownKind(t *testing.T) {
	got := NewExtractor().Extract(models.KindUnknown, acuseText)
	assert.Equal(t, models.ExtractedFields{Kind: models.KindUnknown}, got)
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, "Oficina de Correspondencia", Preprocess("OficinadeCorrespondencia"))
	assert.Equal(t, "Folio de registro", Preprocess("Foliode registro"))
	assert.Equal(t, "Común Folio", Preprocess("ComúnFolio"))
	assert.Equal(t, "JUAN PEREZ", Preprocess("JUAN PEREZ"))
}
