package eol

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/martinsuchenak/lifecycled/internal/model"
)

// ErrInvalidDocument is returned for EOL documents that cannot be decoded
var ErrInvalidDocument = errors.New("invalid EOL document")

//go:embed fallback_eol.json
var fallbackJSON []byte

// Document is the on-disk and on-the-wire form of an EOL table
type Document struct {
	LastUpdated string                     `json:"last_updated,omitempty"`
	Records     map[string]model.EOLRecord `json:"records"`
}

// DefaultTable returns the built-in EOL table used when no table has been
// loaded into storage.
func DefaultTable() *Table {
	doc, err := DecodeDocument(fallbackJSON)
	if err != nil {
		panic(fmt.Sprintf("eol: embedded fallback table is invalid: %v", err))
	}
	return NewTable(doc.Records)
}

// DefaultLastUpdated returns the date the built-in table was last refreshed
func DefaultLastUpdated() string {
	doc, err := DecodeDocument(fallbackJSON)
	if err != nil {
		return ""
	}
	return doc.LastUpdated
}

// DecodeDocument parses an EOL document. A bare object of key -> record is
// accepted as well as the {"last_updated", "records"} envelope.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err == nil && doc.Records != nil {
		return &doc, nil
	}
	records := make(map[string]model.EOLRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &Document{Records: records}, nil
}

// ReadDocument decodes an EOL document from r
func ReadDocument(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read EOL document: %w", err)
	}
	return DecodeDocument(data)
}
