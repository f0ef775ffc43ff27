package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/metadata/pkg/errmodel"
)

const documentURL = "mem://document.json"

// compileDocument compiles a registry document. The self-describing
// meta-schema is not fetched; documents are checked against the draft
// the compiler defaults to, and the "self" keyword is ignored as unknown.
func compileDocument(doc []byte) (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	if m, ok := parsed.(map[string]any); ok {
		delete(m, "$schema")
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(documentURL, parsed); err != nil {
		return nil, err
	}
	return c.Compile(documentURL)
}

// CheckDocument reports whether doc is a usable JSON schema.
func CheckDocument(doc json.RawMessage) error {
	if _, err := compileDocument(doc); err != nil {
		return errmodel.Validation("invalid_document", fmt.Sprintf("document is not a valid JSON schema: %v", err), nil)
	}
	return nil
}

// ValidateInstance validates instance against doc.
func ValidateInstance(doc json.RawMessage, instance []byte) error {
	sch, err := compileDocument(doc)
	if err != nil {
		return errmodel.Validation("invalid_document", fmt.Sprintf("document is not a valid JSON schema: %v", err), nil)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(instance))
	if err != nil {
		return errmodel.Validation("invalid_instance", fmt.Sprintf("instance is not valid JSON: %v", err), nil)
	}
	if err := sch.Validate(v); err != nil {
		return errmodel.Validation("invalid_instance", err.Error(), nil)
	}
	return nil
}
