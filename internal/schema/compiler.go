// Package schema turns element constraints into JSON Schema and checks form
// values against it.
package schema

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"clinicdocs/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

type Compiler struct {
	cache *expirable.LRU[string, *js.Schema]
}

// Violation is one failed constraint of one field
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewCompilerWithCache creates a new compiler with cache
func NewCompilerWithCache(maxSize int) *Compiler {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &Compiler{
		cache: expirable.NewLRU[string, *js.Schema](maxSize, nil, time.Hour),
	}
}

func (c *Compiler) key(schema map[string]any) (string, []byte, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), b, nil
}

// Prepare compiles and caches a schema
func (c *Compiler) Prepare(ctx context.Context, schema map[string]any) (*js.Schema, error) {
	key, schemaBytes, err := c.key(schema)
	if err != nil {
		return nil, err
	}
	if compiled, ok := c.cache.Get(key); ok {
		return compiled, nil
	}

	// js.Compiler is not safe for concurrent use, so each compile gets its own
	compiler := js.NewCompiler()
	compiler.Draft = js.Draft2020
	compiler.AssertFormat = true

	resourceURL := fmt.Sprintf("mem://schema/%s.json", key[:16])
	if err := compiler.AddResource(resourceURL, bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}

	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	c.cache.Add(key, compiled)
	return compiled, nil
}

// Validate validates a value against a schema
func (c *Compiler) Validate(ctx context.Context, schema map[string]any, value map[string]any) error {
	compiled, err := c.Prepare(ctx, schema)
	if err != nil {
		return err
	}

	// round trip so numbers and nested values have their decoded JSON shape
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	var valueRaw any
	if err := json.Unmarshal(valueBytes, &valueRaw); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	if err := compiled.Validate(valueRaw); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// CheckValues validates the non-empty values of the data elements of s
// against their constraints. Required-ness is not checked here. At most one
// violation is reported per field, in schema order.
func (c *Compiler) CheckValues(ctx context.Context, s model.Schema, values model.FormData) ([]Violation, error) {
	present := map[string]any{}
	for k, v := range values {
		if !model.IsEmpty(v) {
			present[k] = v
		}
	}

	err := c.Validate(ctx, FormSchema(s), present)
	if err == nil {
		return nil, nil
	}

	var ve *js.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}

	byField := map[string]string{}
	for _, leaf := range leaves(ve) {
		field := fieldOf(leaf.InstanceLocation)
		if field == "" {
			continue
		}
		if _, seen := byField[field]; !seen {
			byField[field] = leaf.Message
		}
	}

	var out []Violation
	for _, el := range s.Elements {
		msg, ok := byField[el.Name]
		if !ok || el.Name == "" {
			continue
		}
		if el.Validation != nil && el.Validation.Message != "" {
			msg = el.Validation.Message
		}
		out = append(out, Violation{Field: el.Name, Message: msg})
		delete(byField, el.Name)
	}
	// anything left belongs to no element; keep it so nothing is swallowed
	rest := make([]string, 0, len(byField))
	for f := range byField {
		rest = append(rest, f)
	}
	sort.Strings(rest)
	for _, f := range rest {
		out = append(out, Violation{Field: f, Message: byField[f]})
	}
	return out, nil
}

func leaves(ve *js.ValidationError) []*js.ValidationError {
	if len(ve.Causes) == 0 {
		return []*js.ValidationError{ve}
	}
	var out []*js.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, leaves(cause)...)
	}
	return out
}

// fieldOf returns the top-level property of a JSON pointer
func fieldOf(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	p = strings.ReplaceAll(p, "~1", "/")
	return strings.ReplaceAll(p, "~0", "~")
}
