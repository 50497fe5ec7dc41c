package exam

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"
)

var errEmptyDocument = errors.New("empty document")

// Parse decodes a stored or submitted exam document. Unknown fields and type
// mismatches are structural errors.
func Parse(raw []byte) (*Exam, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &StructuralError{Err: errEmptyDocument}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var doc Exam
	if err := dec.Decode(&doc); err != nil {
		return nil, &StructuralError{Err: err}
	}
	if dec.More() {
		return nil, &StructuralError{Err: errors.New("trailing data after document")}
	}
	return &doc, nil
}

// Marshal encodes a document for storage.
func Marshal(doc *Exam) ([]byte, error) {
	return json.Marshal(doc)
}

// ValidateDocument parses raw and validates the result. A structural failure
// returns a nil Exam and a *StructuralError; rule failures return the
// normalized Exam and a *ValidationError.
func ValidateDocument(raw []byte) (*Exam, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Validate(doc)
}
