package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"skillset/internal/permission"
	"skillset/internal/preset"
)

var ErrMalformedSettings = errors.New("SET_MALFORMED: settings document is malformed")

const permissionsKey = "permissions"

// object is a JSON object that remembers key order and keeps every value as
// raw JSON, so subtrees it does not understand round-trip unchanged.
type object struct {
	keys   []string
	values map[string]json.RawMessage
}

func newObject() *object {
	return &object{values: map[string]json.RawMessage{}}
}

func parseObject(data []byte) (*object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}
	obj := newObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		obj.set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}
	return obj, nil
}

func (o *object) get(key string) (json.RawMessage, bool) {
	raw, ok := o.values[key]
	return raw, ok
}

// set replaces the value of key, appending key when it is new.
func (o *object) set(key string, raw json.RawMessage) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

func (o *object) marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := json.Compact(&buf, o.values[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeString encodes s without HTML escaping so patterns such as
// "Bash(a && b)" stay readable.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode appends '\n'
	return nil
}

func marshalStrings(items []string) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, item); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Document is a parsed settings file: an ordered tree of raw JSON with a
// typed view over permissions.allow, permissions.deny and permissions.ask.
type Document struct {
	root  *object
	perms *object
	lists map[preset.Effect][]string
	dirty map[preset.Effect]bool
}

// Change is one pattern whose effect an apply sets. Old is empty when the
// pattern was absent.
type Change struct {
	Pattern string        `json:"pattern"`
	Old     preset.Effect `json:"old,omitempty"`
	New     preset.Effect `json:"new"`
}

type Diff []Change

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		root:  newObject(),
		lists: map[preset.Effect][]string{},
		dirty: map[preset.Effect]bool{},
	}
}

// Parse reads a settings document. Whitespace-only input is an empty
// document. Anything that is not a JSON object with a well-formed
// permissions section fails with ErrMalformedSettings.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}
	if err := validate(data); err != nil {
		return nil, err
	}
	root, err := parseObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSettings, err)
	}
	doc := NewDocument()
	doc.root = root
	raw, ok := root.get(permissionsKey)
	if !ok {
		return doc, nil
	}
	perms, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: permissions: %v", ErrMalformedSettings, err)
	}
	doc.perms = perms
	owner := map[string]preset.Effect{}
	for _, effect := range preset.Effects {
		raw, ok := perms.get(string(effect))
		if !ok {
			continue
		}
		var items []string
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: permissions.%s: %v", ErrMalformedSettings, effect, err)
		}
		for _, p := range items {
			if prev, seen := owner[p]; seen && prev != effect {
				return nil, fmt.Errorf("%w: pattern %q listed under both %s and %s", ErrMalformedSettings, p, prev, effect)
			}
			owner[p] = effect
		}
		doc.lists[effect] = items
	}
	return doc, nil
}

// Effect returns the effect the document assigns to pattern.
func (d *Document) Effect(pattern string) (preset.Effect, bool) {
	for _, effect := range preset.Effects {
		for _, p := range d.lists[effect] {
			if p == pattern {
				return effect, true
			}
		}
	}
	return "", false
}

// Rules returns the permissions view as rules: allow, then deny, then ask,
// each in file order.
func (d *Document) Rules() []preset.Rule {
	var out []preset.Rule
	seen := map[string]struct{}{}
	for _, effect := range preset.Effects {
		for _, p := range d.lists[effect] {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, preset.Rule{Pattern: p, Effect: effect})
		}
	}
	return out
}

// Has reports whether the document has a top-level key.
func (d *Document) Has(key string) bool {
	_, ok := d.root.get(key)
	return ok
}

// Merge applies set to the permissions view. Patterns not in set, and every
// key outside the three effect lists, are left as they are. A pattern whose
// effect changes moves to the end of its new list.
func (d *Document) Merge(set *permission.Set) Diff {
	var diff Diff
	for _, rule := range set.Rules() {
		old, had := d.Effect(rule.Pattern)
		if had && old == rule.Effect {
			continue
		}
		if had {
			d.lists[old] = without(d.lists[old], rule.Pattern)
			d.dirty[old] = true
		}
		d.lists[rule.Effect] = append(d.lists[rule.Effect], rule.Pattern)
		d.dirty[rule.Effect] = true
		diff = append(diff, Change{Pattern: rule.Pattern, Old: old, New: rule.Effect})
	}
	return diff
}

func without(items []string, drop string) []string {
	out := items[:0:0]
	for _, it := range items {
		if it != drop {
			out = append(out, it)
		}
	}
	return out
}

// Bytes serializes the document as two-space indented JSON with a trailing
// newline. Only the effect lists touched by Merge are re-encoded.
func (d *Document) Bytes() ([]byte, error) {
	for _, effect := range preset.Effects {
		if !d.dirty[effect] {
			continue
		}
		if d.perms == nil {
			d.perms = newObject()
		}
		raw, err := marshalStrings(d.lists[effect])
		if err != nil {
			return nil, err
		}
		d.perms.set(string(effect), raw)
	}
	if d.perms != nil {
		raw, err := d.perms.marshal()
		if err != nil {
			return nil, err
		}
		d.root.set(permissionsKey, raw)
	}
	compact, err := d.root.marshal()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func (d Diff) String() string {
	var b strings.Builder
	for _, c := range d {
		old := string(c.Old)
		if old == "" {
			old = "(absent)"
		}
		fmt.Fprintf(&b, "%s: %s -> %s\n", c.Pattern, old, c.New)
	}
	return b.String()
}
