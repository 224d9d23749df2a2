package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
)

// maxDepth bounds nesting while decoding text frames.
const maxDepth = 256

// object is a JSON object that remembers key order. hint carries an event
// name found next to the object in a ["name", {...}] frame.
type object struct {
	keys []string
	vals map[string]any
	hint string
}

func (o *object) get(key string) (any, bool) {
	v, ok := o.vals[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// decodeRoot turns a raw inbound message into a traversable value.
func decodeRoot(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrMalformedInput)
	case string:
		return decodeText([]byte(v))
	case []byte:
		return decodeText(v)
	case json.RawMessage:
		return decodeText(v)
	case *object:
		return v, nil
	case map[string]any, []any:
		// Caller-built values may nest typed containers such as
		// []map[string]any. Re-encoding flattens them; cyclic values fail
		// to encode and are walked as they are.
		if b, err := json.Marshal(v); err == nil {
			if out, err := decodeJSON(b); err == nil {
				return out, nil
			}
		}
		return v, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return decodeText(b)
}

// decodeText parses b as JSON, retrying once without a leading numeric
// transport tag such as the "42" in `42["event",{...}]`.
func decodeText(b []byte) (any, error) {
	b = bytes.TrimSpace(b)
	v, err := decodeJSON(b)
	if err == nil {
		return v, nil
	}
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i > 0 && i < len(b) {
		if v, err2 := decodeJSON(b[i:]); err2 == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
}

var errTrailingData = errors.New("trailing data after JSON value")

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (any, error) {
	if depth > maxDepth {
		return nil, errors.New("nesting too deep")
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		obj := &object{vals: map[string]any{}}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v", kt)
			}
			v, err := decodeValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			if _, dup := obj.vals[key]; !dup {
				obj.keys = append(obj.keys, key)
			}
			obj.vals[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", d)
}

// asObject adapts decoded objects and caller-built maps. Map keys are
// visited in sorted order since Go maps carry none.
func asObject(v any) (*object, bool) {
	switch o := v.(type) {
	case *object:
		return o, true
	case map[string]any:
		keys := make([]string, 0, len(o))
		for k := range o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return &object{keys: keys, vals: o}, true
	}
	return nil, false
}

type identity struct {
	ptr uintptr
	n   int
}

// identityOf keys containers by address so cyclic input is visited once.
func identityOf(v any) (identity, bool) {
	switch c := v.(type) {
	case *object:
		return identity{ptr: reflect.ValueOf(c).Pointer(), n: -1}, true
	case map[string]any:
		return identity{ptr: reflect.ValueOf(c).Pointer(), n: -2}, true
	case []any:
		if len(c) == 0 {
			return identity{}, false
		}
		return identity{ptr: reflect.ValueOf(c).Pointer(), n: len(c)}, true
	}
	return identity{}, false
}

func typeOf(o *object, aliases []string) string {
	for _, k := range aliases {
		if s, ok := o.vals[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.ToUpper(strings.TrimSpace(s))
		}
	}
	return strings.ToUpper(o.hint)
}
