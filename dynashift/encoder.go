// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// DefaultMaxDepth bounds Value nesting accepted by an Encoder that does
// not set its own limit.
const DefaultMaxDepth = 32

// ErrEncodingTooDeep is returned when an item nests lists or maps more
// deeply than the encoder's depth limit allows.
var ErrEncodingTooDeep = errors.New("dynashift: item exceeds maximum encoding depth")

// TypeRegistry maps attribute names to their declared kinds, as pulled
// from a source table's attribute definitions.  Only key attributes are
// normally declared; everything else is inferred from the value itself.
type TypeRegistry map[string]Kind

// RegistryFromTable builds a TypeRegistry from a DescribeTable result.
func RegistryFromTable(desc *dynamodb.TableDescription) TypeRegistry {
	reg := make(TypeRegistry)
	if desc == nil {
		return reg
	}
	for _, def := range desc.AttributeDefinitions {
		if k, ok := kindForTag(aws.StringValue(def.AttributeType)); ok {
			reg[aws.StringValue(def.AttributeName)] = k
		}
	}
	return reg
}

// resolveKind selects the kind a value is encoded as.  A null value is
// always encoded as NULL; otherwise a declared kind takes precedence
// over the kind inferred from the value itself.
func resolveKind(v Value, declared Kind, hasDeclared bool) Kind {
	if v.Kind == KindNull {
		return KindNull
	}
	if hasDeclared {
		return declared
	}
	return v.Kind
}

// Encoder converts Values and Items to the tagged JSON wire form used
// by PutItem.  The zero value is usable; Registry supplies declared
// kinds for top-level attributes.
type Encoder struct {
	Registry TypeRegistry
	MaxDepth int // maximum Value nesting; DefaultMaxDepth if zero
}

type putRequest struct {
	TableName string                 `json:"TableName"`
	Item      map[string]interface{} `json:"Item"`
}

// EncodeItem builds the complete PutItem request body for writing item
// to tableName.
func (e *Encoder) EncodeItem(tableName string, item Item) ([]byte, error) {
	if tableName == "" {
		return nil, errors.New("dynashift: table name must not be empty")
	}
	if item == nil {
		return nil, errors.New("dynashift: item must not be nil")
	}

	attrs := make(map[string]interface{}, len(item))
	for name, v := range item {
		declared, ok := e.Registry[name]
		enc, err := e.encodeValue(v, resolveKind(v, declared, ok), 1)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		attrs[name] = enc
	}
	return json.Marshal(putRequest{TableName: tableName, Item: attrs})
}

// EncodeValue converts a single value to its wire form using the
// value's own kind.  The result always carries exactly one tag key.
func (e *Encoder) EncodeValue(v Value) (interface{}, error) {
	return e.encodeValue(v, resolveKind(v, 0, false), 1)
}

func (e *Encoder) maxDepth() int {
	if e.MaxDepth > 0 {
		return e.MaxDepth
	}
	return DefaultMaxDepth
}

func (e *Encoder) encodeValue(v Value, kind Kind, depth int) (interface{}, error) {
	if depth > e.maxDepth() {
		return nil, ErrEncodingTooDeep
	}

	switch kind {
	case KindNull:
		return map[string]interface{}{"NULL": true}, nil

	case KindString:
		s, err := scalarText(v)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"S": s}, nil

	case KindNumber:
		// numeric text is passed through verbatim; the wire carries
		// numbers as strings so the source representation survives
		if v.Kind != KindNumber && v.Kind != KindString {
			return nil, fmt.Errorf("dynashift: cannot encode %s value as N", v.Kind)
		}
		return map[string]interface{}{"N": v.Str}, nil

	case KindBool:
		if v.Kind != KindBool {
			return nil, fmt.Errorf("dynashift: cannot encode %s value as BOOL", v.Kind)
		}
		return map[string]interface{}{"BOOL": v.Bool}, nil

	case KindBinary:
		if v.Kind != KindBinary {
			return nil, fmt.Errorf("dynashift: cannot encode %s value as B", v.Kind)
		}
		return map[string]interface{}{"B": base64.StdEncoding.EncodeToString(v.Bytes)}, nil

	case KindList:
		if v.Kind != KindList {
			return nil, fmt.Errorf("dynashift: cannot encode %s value as L", v.Kind)
		}
		elems := make([]interface{}, 0, len(v.List))
		for i, el := range v.List {
			// nested elements carry no declared kind
			enc, err := e.encodeValue(el, resolveKind(el, 0, false), depth+1)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			elems = append(elems, enc)
		}
		return map[string]interface{}{"L": elems}, nil

	case KindMap:
		if v.Kind != KindMap {
			return nil, fmt.Errorf("dynashift: cannot encode %s value as M", v.Kind)
		}
		m := make(map[string]interface{}, len(v.Map))
		for name, el := range v.Map {
			enc, err := e.encodeValue(el, resolveKind(el, 0, false), depth+1)
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", name, err)
			}
			m[name] = enc
		}
		return map[string]interface{}{"M": m}, nil
	}
	return nil, &UnsupportedTypeError{Value: kind}
}

// scalarText renders a scalar value as the string payload for an S tag.
func scalarText(v Value) (string, error) {
	switch v.Kind {
	case KindString, KindNumber:
		return v.Str, nil
	case KindBool:
		return strconv.FormatBool(v.Bool), nil
	default:
		return "", fmt.Errorf("dynashift: cannot encode %s value as S", v.Kind)
	}
}
