// Package jsontree provides a typed representation of decoded JSON
// documents and a bounded-depth key search over them.
//
// Probe channels use it to dig article-body-shaped fields out of
// hydration payloads and guessed API responses without relying on
// reflection over map[string]any.
package jsontree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
)

// Kind discriminates the Value union.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Member is one key/value pair of an object. Members preserve the
// source document's insertion order so traversal is stable.
type Member struct {
	Key   string
	Value *Value
}

// Value is a tagged-union node of a decoded JSON tree.
type Value struct {
	Kind    Kind
	Bool    bool
	Number  json.Number
	Str     string
	Items   []*Value // KindArray
	Members []Member // KindObject
}

// DefaultMaxDepth is the bound applied by Find when the caller passes a
// non-positive depth.
const DefaultMaxDepth = 5

// Parse decodes a JSON document into a Value tree. Numbers are kept as
// json.Number so large ids survive untouched.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	// A trailing second document means this was not a single JSON value.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("jsontree: trailing data after document")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("jsontree: %w", err)
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return &Value{Kind: KindNull}, nil
	case bool:
		return &Value{Kind: KindBool, Bool: t}, nil
	case json.Number:
		return &Value{Kind: KindNumber, Number: t}, nil
	case string:
		return &Value{Kind: KindString, Str: t}, nil
	case json.Delim:
		switch t {
		case '{':
			obj := &Value{Kind: KindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("jsontree: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("jsontree: object key is %T", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Members = append(obj.Members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, fmt.Errorf("jsontree: %w", err)
			}
			return obj, nil
		case '[':
			arr := &Value{Kind: KindArray}
			for dec.More() {
				item, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, fmt.Errorf("jsontree: %w", err)
			}
			return arr, nil
		}
	}
	return nil, fmt.Errorf("jsontree: unexpected token %v", tok)
}

// Find performs a depth-first search for the first member whose key
// matches pattern, visiting object members and array items in document
// order. maxDepth is an absolute recursion bound counted from the root;
// subtrees below it are not explored, so a deep match simply comes back
// as not found. Non-positive maxDepth means DefaultMaxDepth.
//
// The bound is a depth counter, not a visited set: Parse only produces
// trees, so cycles cannot occur here.
func Find(v *Value, pattern *regexp.Regexp, maxDepth int) (*Value, bool) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return find(v, pattern, maxDepth)
}

func find(v *Value, pattern *regexp.Regexp, depth int) (*Value, bool) {
	if v == nil || depth <= 0 {
		return nil, false
	}
	switch v.Kind {
	case KindObject:
		for _, m := range v.Members {
			if pattern.MatchString(m.Key) {
				return m.Value, true
			}
		}
		for _, m := range v.Members {
			if hit, ok := find(m.Value, pattern, depth-1); ok {
				return hit, true
			}
		}
	case KindArray:
		for _, item := range v.Items {
			if hit, ok := find(item, pattern, depth-1); ok {
				return hit, true
			}
		}
	}
	return nil, false
}

// Text flattens a value into plain text: strings come back verbatim,
// arrays of strings are joined with blank lines (common shape for
// paragraph lists in hydration payloads), anything else is empty.
func (v *Value) Text() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindString:
		return v.Str
	case KindArray:
		var buf bytes.Buffer
		for _, item := range v.Items {
			if item.Kind != KindString || item.Str == "" {
				continue
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(item.Str)
		}
		return buf.String()
	}
	return ""
}

// TopLevelKeys returns the keys of a root object in insertion order.
// Non-objects return nil. Used by the interception channel to record
// response shape without storing bodies.
func (v *Value) TopLevelKeys() []string {
	if v == nil || v.Kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.Members))
	for i, m := range v.Members {
		keys[i] = m.Key
	}
	return keys
}
