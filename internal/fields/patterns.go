package fields

import "regexp"

// nameChars is the alphabet of a name as it appears in the filings.
const nameChars = `A-ZÁÉÍÓÚÑÜ`

// nameTail continues a name. A lower-case "n" followed by a blank is how the
// text layer renders "Ñ" in some filings; identity.RestoreEnye repairs it.
const nameTail = `(?:[` + nameChars + `. ]|n[ \t])*?`

// Layout holds the patterns for one institutional document layout. Each
// pattern's first capture group is the field value; a nil pattern disables
// the field.
type Layout struct {
	Name   *regexp.Regexp
	Office *regexp.Regexp
	Folio  *regexp.Regexp
	// Boilerplate blocks are deleted from the text before any field is read.
	Boilerplate []*regexp.Regexp
}

// AcuseLayout reads the court correspondence-office receipt.
var AcuseLayout = Layout{
	Name: regexp.MustCompile(
		`BAZ\s*VS\s*([` + nameChars + `]` + nameTail + `)(?:\s*ANEXOS|\s*\.pdf|[ \t]*\r?\n|\s*$)`),
	Office: regexp.MustCompile(
		`(Oficina\s*de\s*Correspondencia\s*Común[\p{L}\p{N}_\s,]*?)\s*(?:Folio|$)`),
	Folio: regexp.MustCompile(
		`Folio\s*de\s*registro:\s*(\d+/\d+)`),
}

// DemandaLayout reads the petition itself.
var DemandaLayout = Layout{
	Name: regexp.MustCompile(
		`\bVS\s+([` + nameChars + `]` + nameTail + `)` +
			`(?:\s+(?:MEDIOS PREPARATORIOS|ESCRITO INICIAL|C\.\s*JUEZ|QUEJOSO|TERCERO|PRUEBAS|JUICIO|AMPARO)|[ \t]*\r?\n|\s*$)`),
	Boilerplate: []*regexp.Regexp{
		regexp.MustCompile(`(?s)Acuse de envío de escrito.*?(?:Evidencia criptográfica|Cadena de firma|Firma electrónica|ANEXOS\.pdf)`),
	},
}

// fusedWords are concatenations the text layer produces with no space.
var fusedWords = []struct{ from, to string }{
	{"Oficinade", "Oficina de"},
	{"Foliode", "Folio de"},
	{"deregistro", "de registro"},
	{"CorrespondenciaComún", "Correspondencia Común"},
	{"deCorrespondencia", "de Correspondencia"},
}

// caseBoundary finds a lower-case letter glued to an upper-case one.
var caseBoundary = regexp.MustCompile(`([a-záéíóúñü])([A-ZÁÉÍÓÚÑÜ])`)
