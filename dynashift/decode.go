// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DecodeItem parses a PutItem request body produced by EncodeItem back
// into its table name and Item.  It is the inverse of the encoder and
// can be used to inspect or verify previously encoded output.
func DecodeItem(body []byte) (tableName string, item Item, err error) {
	var req struct {
		TableName string
		Item      map[string]json.RawMessage
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return "", nil, fmt.Errorf("dynashift: malformed request body: %w", err)
	}

	item = make(Item, len(req.Item))
	for name, raw := range req.Item {
		v, err := decodeAttribute(raw)
		if err != nil {
			return "", nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		item[name] = v
	}
	return req.TableName, item, nil
}

// decodeAttribute parses one encoded attribute.  Exactly one tag key
// must be present.
func decodeAttribute(raw json.RawMessage) (Value, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return Value{}, err
	}
	if len(tagged) != 1 {
		return Value{}, fmt.Errorf("dynashift: attribute must carry exactly one type tag, found %d", len(tagged))
	}

	for tag, payload := range tagged {
		switch tag {
		case "NULL":
			return NullValue(), nil

		case "S":
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return Value{}, err
			}
			return StringValue(s), nil

		case "N":
			var n string
			if err := json.Unmarshal(payload, &n); err != nil {
				return Value{}, err
			}
			return NumberValue(n), nil

		case "BOOL":
			var b bool
			if err := json.Unmarshal(payload, &b); err != nil {
				return Value{}, err
			}
			return BoolValue(b), nil

		case "B":
			var b64 string
			if err := json.Unmarshal(payload, &b64); err != nil {
				return Value{}, err
			}
			data, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return Value{}, fmt.Errorf("dynashift: bad binary payload: %w", err)
			}
			return BinaryValue(data), nil

		case "L":
			var rawElems []json.RawMessage
			if err := json.Unmarshal(payload, &rawElems); err != nil {
				return Value{}, err
			}
			elems := make([]Value, 0, len(rawElems))
			for i, re := range rawElems {
				ev, err := decodeAttribute(re)
				if err != nil {
					return Value{}, fmt.Errorf("list element %d: %w", i, err)
				}
				elems = append(elems, ev)
			}
			return ListValue(elems...), nil

		case "M":
			var rawMap map[string]json.RawMessage
			if err := json.Unmarshal(payload, &rawMap); err != nil {
				return Value{}, err
			}
			m := make(map[string]Value, len(rawMap))
			for name, re := range rawMap {
				ev, err := decodeAttribute(re)
				if err != nil {
					return Value{}, fmt.Errorf("map key %q: %w", name, err)
				}
				m[name] = ev
			}
			return MapValue(m), nil

		default:
			return Value{}, fmt.Errorf("dynashift: unknown type tag %q", tag)
		}
	}
	panic("unreachable")
}
