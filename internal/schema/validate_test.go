package schema

import (
	"encoding/json"
	"testing"
)

const echoSchema = `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate(json.RawMessage(echoSchema), json.RawMessage(`{"text":"hi"}`)); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := Validate(json.RawMessage(echoSchema), json.RawMessage(`{"text":1}`)); err == nil {
		t.Fatalf("expected type error")
	}
	if err := Validate(json.RawMessage(echoSchema), nil); err == nil {
		t.Fatalf("expected missing required property error")
	}
	if err := Validate(nil, json.RawMessage(`{"anything":true}`)); err != nil {
		t.Fatalf("empty schema accepts anything: %v", err)
	}
}

func TestCache(t *testing.T) {
	t.Parallel()

	c := NewCache()
	if known, err := c.Validate("echo", json.RawMessage(`{}`)); known || err != nil {
		t.Fatalf("unknown name: known=%v err=%v", known, err)
	}
	if err := c.Put("echo", json.RawMessage(echoSchema)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if known, err := c.Validate("echo", json.RawMessage(`{"text":"x"}`)); !known || err != nil {
		t.Fatalf("valid args: known=%v err=%v", known, err)
	}
	if known, err := c.Validate("echo", json.RawMessage(`{}`)); !known || err == nil {
		t.Fatalf("invalid args: known=%v err=%v", known, err)
	}
	if err := c.Put("bad", json.RawMessage(`{"type":`)); err == nil {
		t.Fatalf("expected compile error")
	}
}
