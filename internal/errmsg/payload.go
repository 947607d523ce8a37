// Package errmsg turns the API's loosely shaped JSON error bodies into a
// single human readable message.
//
// Error bodies come in three shapes: a bare string, a {"detail": ...}
// object, or field keyed arrays of messages ({"name": ["already exists"]}).
// Payload models all of them as a tagged variant that keeps object key
// order, so "first message" means the same thing the server meant.
package errmsg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// MaxDepth bounds every recursive walk over a payload.
const MaxDepth = 8

type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Payload is one JSON value. Only the fields matching Kind are set.
type Payload struct {
	Kind Kind
	Str  string // KindString, and the literal text of KindNumber/KindBool
	List []Payload
	Keys []string // KindMap, in document order
	Map  map[string]Payload
}

// Parse decodes data into a Payload. Empty input yields a null payload.
func Parse(data []byte) (Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Payload{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	p, err := decodeValue(dec, 0)
	if err != nil {
		return Payload{}, fmt.Errorf("parsing error payload: %w", err)
	}
	return p, nil
}

// String wraps s as a payload.
func String(s string) Payload {
	return Payload{Kind: KindString, Str: s}
}

func decodeValue(dec *json.Decoder, depth int) (Payload, error) {
	tok, err := dec.Token()
	if err != nil {
		return Payload{}, err
	}
	switch v := tok.(type) {
	case nil:
		return Payload{}, nil
	case string:
		return String(v), nil
	case json.Number:
		return Payload{Kind: KindNumber, Str: v.String()}, nil
	case bool:
		return Payload{Kind: KindBool, Str: strconv.FormatBool(v)}, nil
	case json.Delim:
		if depth >= MaxDepth*4 {
			return Payload{}, fmt.Errorf("payload nested deeper than %d", MaxDepth*4)
		}
		switch v {
		case '[':
			p := Payload{Kind: KindList}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Payload{}, err
				}
				p.List = append(p.List, item)
			}
			_, err := dec.Token() // ]
			return p, err
		case '{':
			p := Payload{Kind: KindMap, Map: make(map[string]Payload)}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Payload{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Payload{}, fmt.Errorf("unexpected object key %v", kt)
				}
				val, err := decodeValue(dec, depth+1)
				if err != nil {
					return Payload{}, err
				}
				if _, dup := p.Map[key]; !dup {
					p.Keys = append(p.Keys, key)
				}
				p.Map[key] = val
			}
			_, err := dec.Token() // }
			return p, err
		}
	}
	return Payload{}, io.ErrUnexpectedEOF
}

// Field returns the value stored under key when p is an object.
func (p Payload) Field(key string) (Payload, bool) {
	if p.Kind != KindMap {
		return Payload{}, false
	}
	v, ok := p.Map[key]
	return v, ok
}

// IsNull reports whether p is JSON null or absent.
func (p Payload) IsNull() bool {
	return p.Kind == KindNull
}

func (p Payload) scalar() (string, bool) {
	switch p.Kind {
	case KindString, KindNumber, KindBool:
		return p.Str, true
	}
	return "", false
}

// First returns the first message found in p.
//
// Objects are walked key by key in document order: a non-empty list yields
// its first element, a string yields itself, a nested object or list is
// searched recursively. Lists are walked the same way by index. The walk
// stops at MaxDepth.
func First(p Payload) (string, bool) {
	return first(p, 0)
}

func first(p Payload, depth int) (string, bool) {
	if depth > MaxDepth {
		return "", false
	}
	switch p.Kind {
	case KindString:
		return p.Str, true
	case KindMap:
		for _, k := range p.Keys {
			if msg, ok := firstOfValue(p.Map[k], depth); ok {
				return msg, true
			}
		}
	case KindList:
		for _, v := range p.List {
			if msg, ok := firstOfValue(v, depth); ok {
				return msg, true
			}
		}
	}
	return "", false
}

func firstOfValue(v Payload, depth int) (string, bool) {
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindList:
		if len(v.List) == 0 {
			return "", false
		}
		if s, ok := v.List[0].scalar(); ok {
			return s, true
		}
		return first(v.List[0], depth+1)
	case KindMap:
		return first(v, depth+1)
	}
	return "", false
}
