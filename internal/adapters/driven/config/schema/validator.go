package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// Ensure Validator implements the interface.
var _ driven.ConfigValidator = (*Validator)(nil)

//go:embed config.schema.json
var schemaJSON []byte

const schemaURL = "https://libris.local/config.schema.json"

// Validator checks configuration trees against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse config schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add config schema: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns an error wrapping domain.ErrConfigInvalid listing every
// violation found in config.
func (v *Validator) Validate(config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	// Round-trip through JSON so TOML values (int64, time) arrive in the
	// shapes the validator understands.
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("%w: encode config: %w", domain.ErrConfigInvalid, err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: decode config: %w", domain.ErrConfigInvalid, err)
	}

	err = v.schema.Validate(instance)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
	}
	problems := collectViolations(verr)
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", domain.ErrConfigInvalid, strings.Join(problems, "; "))
}

// collectViolations flattens the error tree into "path: message" lines,
// keeping only leaves.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		path := strings.Join(verr.InstanceLocation, ".")
		if path == "" {
			path = "(root)"
		}
		return []string{path + ": " + leafMessage(verr)}
	}

	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}

// leafMessage strips the location prefix the library adds to Error().
func leafMessage(verr *jsonschema.ValidationError) string {
	msg := verr.Error()
	lines := strings.Split(msg, "\n")
	last := strings.TrimPrefix(strings.TrimSpace(lines[len(lines)-1]), "- ")
	if strings.HasPrefix(last, "at '") {
		if i := strings.Index(last, "': "); i >= 0 {
			return last[i+3:]
		}
	}
	return last
}
