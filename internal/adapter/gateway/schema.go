package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"filedeck/internal/domain"
)

// Request body schemas. Unknown properties are ignored.
var schemaSources = map[string]string{
	"list": `{
		"type": "object",
		"required": ["dir_path"],
		"properties": {"dir_path": {"type": "string"}}
	}`,
	"preview": `{
		"type": "object",
		"required": ["file_path"],
		"properties": {"file_path": {"type": "string"}}
	}`,
	"move": `{
		"type": "object",
		"required": ["src_path", "dest_dir"],
		"properties": {
			"src_path": {"type": "string"},
			"dest_dir": {"type": "string"}
		}
	}`,
	"rename": `{
		"type": "object",
		"required": ["src_path", "new_name"],
		"properties": {
			"src_path": {"type": "string"},
			"new_name": {"type": "string"}
		}
	}`,
	"config_get": `{
		"type": "object",
		"properties": {"path": {"type": ["string", "null"]}}
	}`,
	"config_set": `{
		"type": "object",
		"required": ["config"],
		"properties": {
			"config": {"type": "object"},
			"path": {"type": ["string", "null"]}
		}
	}`,
}

// schemas holds the compiled request schemas keyed by name.
type schemas map[string]*jsonschema.Schema

func compileSchemas() (schemas, error) {
	out := make(schemas, len(schemaSources))
	for name, src := range schemaSources {
		compiler := jsonschema.NewCompiler()
		url := name + ".json"
		if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("add schema %q: %w", name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
		out[name] = compiled
	}
	return out, nil
}

// decode validates raw against the named schema and unmarshals it into dst.
// Malformed or invalid bodies are reported as ErrInvalidInput.
func (s schemas) decode(name string, raw []byte, dst any) error {
	op := "Gateway.decode(" + name + ")"
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "request body is required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "malformed JSON: "+err.Error())
	}
	if err := s[name].Validate(v); err != nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, validationMessage(err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
	}
	return nil
}

// validationMessage flattens a schema validation error into one line naming
// the first failing location.
func validationMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("invalid request body at %s: %s", loc, leaf.Message)
}
