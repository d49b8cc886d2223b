package models

import "fmt"

// DocumentKind is the classification of a filing PDF.
type DocumentKind string

const (
	KindAcuse   DocumentKind = "ACUSE"
	KindDemanda DocumentKind = "DEMANDA"
	KindUnknown DocumentKind = "UNKNOWN"
)

// RawDocument is a fetched PDF. Content is never mutated after fetch.
type RawDocument struct {
	ID       string
	Name     string
	Content  []byte
	FileHash string
}

// ExtractedFields is the record produced by the field extractor.
// Fields that did not match are empty strings.
type ExtractedFields struct {
	Kind          DocumentKind `json:"kind"`
	RawName       string       `json:"rawName"`
	OfficeName    string       `json:"officeName"`
	RegistryFolio string       `json:"registryFolio"`
}

// MatchedPair is one ACUSE and one DEMANDA that resolved to the same identity.
type MatchedPair struct {
	Identity string
	// Name is the DEMANDA rendering of the name.
	Name    string
	Folio   string
	Office  string
	Acuse   RawDocument
	Demanda RawDocument
}

// ArtifactName is the base name of the merged output for a pair.
func ArtifactName(clientID, name string) string {
	if clientID == "" {
		return name
	}
	return fmt.Sprintf("%s %s", clientID, name)
}

// ReasonCode identifies why a document did not make it into a merged pair.
type ReasonCode string

const (
	ReasonExtractionFailed  ReasonCode = "EXTRACTION_FAILED"
	ReasonUnclassified      ReasonCode = "UNCLASSIFIED"
	ReasonIncompleteFields  ReasonCode = "INCOMPLETE_FIELDS"
	ReasonDuplicateAcuse    ReasonCode = "DUPLICATE_ACUSE"
	ReasonDuplicateDemanda  ReasonCode = "DUPLICATE_DEMANDA"
	ReasonOrphanedDuplicate ReasonCode = "ORPHANED_BY_DUPLICATE"
	ReasonNoMatchingAcuse   ReasonCode = "NO_MATCHING_ACUSE"
	ReasonNoMatchingDemanda ReasonCode = "NO_MATCHING_DEMANDA"
	ReasonMergeFailed       ReasonCode = "MERGE_FAILED"
	ReasonClientNotFound    ReasonCode = "CLIENT_NOT_FOUND"
	ReasonDownloadFailed    ReasonCode = "DOWNLOAD_FAILED"
	ReasonUploadFailed      ReasonCode = "UPLOAD_FAILED"
	ReasonSheetUpdateFailed ReasonCode = "SHEET_UPDATE_FAILED"
	ReasonUnexpected        ReasonCode = "UNEXPECTED_ERROR"
)

var reasonText = map[ReasonCode]string{
	ReasonExtractionFailed:  "could not extract text",
	ReasonUnclassified:      "could not classify",
	ReasonIncompleteFields:  "missing required fields",
	ReasonDuplicateAcuse:    "duplicate ACUSE for the same name",
	ReasonDuplicateDemanda:  "duplicate DEMANDA for the same name",
	ReasonOrphanedDuplicate: "counterpart is duplicated",
	ReasonNoMatchingAcuse:   "no matching ACUSE",
	ReasonNoMatchingDemanda: "no matching DEMANDA",
	ReasonMergeFailed:       "failed to merge PDFs",
	ReasonClientNotFound:    "client not found in sheet",
	ReasonDownloadFailed:    "failed to download document",
	ReasonUploadFailed:      "failed to upload merged document",
	ReasonSheetUpdateFailed: "failed to update sheet",
	ReasonUnexpected:        "unexpected error",
}

// Text is the human-readable form of the reason.
func (c ReasonCode) Text() string {
	if s, ok := reasonText[c]; ok {
		return s
	}
	return string(c)
}

// ErrorEntry explains why a document was not merged.
type ErrorEntry struct {
	DocumentName string     `json:"documentName"`
	ClientName   string     `json:"clientName,omitempty"`
	Folio        string     `json:"folio,omitempty"`
	Office       string     `json:"office,omitempty"`
	Reason       ReasonCode `json:"reason"`
	Detail       string     `json:"detail,omitempty"`
}

// NewErrorEntry builds an entry carrying whatever fields are known for the document.
func NewErrorEntry(doc string, f ExtractedFields, reason ReasonCode) ErrorEntry {
	return ErrorEntry{
		DocumentName: doc,
		ClientName:   f.RawName,
		Folio:        f.RegistryFolio,
		Office:       f.OfficeName,
		Reason:       reason,
	}
}

// Message renders the entry for the Result payload.
func (e ErrorEntry) Message() string {
	msg := e.Reason.Text()
	if e.ClientName != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.ClientName)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

// FileRef identifies a stored file or folder.
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
}

// MimePDF is the content type of every fetched and produced document.
const MimePDF = "application/pdf"
