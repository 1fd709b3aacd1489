// Package schema validates JSON documents against JSON Schemas advertised by
// the peer.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compile parses and compiles a JSON Schema document.
func Compile(schemaJSON json.RawMessage) (*jsonschema.Schema, error) {
	if len(schemaJSON) == 0 {
		return nil, errors.New("empty schema")
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("schema resource: %w", err)
	}
	s, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// Validate checks raw against schemaJSON. An empty schema accepts anything.
func Validate(schemaJSON json.RawMessage, raw json.RawMessage) error {
	if len(schemaJSON) == 0 {
		return nil
	}
	s, err := Compile(schemaJSON)
	if err != nil {
		return err
	}
	return validateDoc(s, raw)
}

func validateDoc(s *jsonschema.Schema, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return s.Validate(doc)
}

// Cache holds compiled schemas keyed by name (tool name for tool input
// schemas). Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{schemas: make(map[string]*jsonschema.Schema)}
}

// Put compiles and stores schemaJSON under name, replacing any previous entry.
func (c *Cache) Put(name string, schemaJSON json.RawMessage) error {
	s, err := Compile(schemaJSON)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.schemas[name] = s
	c.mu.Unlock()
	return nil
}

// Validate checks raw against the schema stored under name. The second
// return value is false when no schema is known for name.
func (c *Cache) Validate(name string, raw json.RawMessage) (bool, error) {
	c.mu.RLock()
	s, ok := c.schemas[name]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, validateDoc(s, raw)
}
