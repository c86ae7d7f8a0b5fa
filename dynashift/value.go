// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// Kind identifies the type of a Value.  Its string form is the single
// tag key used in the wire representation of an encoded attribute.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindBinary
	KindList
	KindMap
)

var kindTags = [...]string{"NULL", "S", "N", "BOOL", "B", "L", "M"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindTags) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindTags[k]
}

// kindForTag maps a wire tag or DescribeTable attribute type ("S", "N",
// etc) to its Kind.
func kindForTag(tag string) (Kind, bool) {
	for k, t := range kindTags {
		if t == tag {
			return Kind(k), true
		}
	}
	return 0, false
}

// Value holds the content of one attribute at any nesting depth.  It is
// a tagged variant: Kind selects which payload field is meaningful.
// Numbers are carried as their exact decimal text in Str so that no
// precision is lost round-tripping through the encoder.
type Value struct {
	Kind  Kind
	Str   string // payload for KindString; decimal text for KindNumber
	Bool  bool
	Bytes []byte
	List  []Value
	Map   map[string]Value
}

// Item is one table record: a mapping from attribute name to Value.
type Item map[string]Value

func NullValue() Value               { return Value{Kind: KindNull} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }
func NumberValue(n string) Value     { return Value{Kind: KindNumber, Str: n} }
func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func BinaryValue(b []byte) Value     { return Value{Kind: KindBinary, Bytes: b} }
func ListValue(elems ...Value) Value { return Value{Kind: KindList, List: elems} }

func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// UnsupportedTypeError is returned when a runtime value matches none of
// the supported kinds.
type UnsupportedTypeError struct {
	Value interface{}
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("dynashift: unsupported value type %T", e.Value)
}

// FromNative infers a Value from a loosely typed runtime value, such as
// those produced by decoding untyped JSON.  Use json.Number decoding to
// keep numeric text exact.  Values of any other type fail with
// UnsupportedTypeError.
func FromNative(v interface{}) (Value, error) {
	switch v := v.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return v, nil
	case string:
		return StringValue(v), nil
	case bool:
		return BoolValue(v), nil
	case []byte:
		return BinaryValue(v), nil
	case json.Number:
		return NumberValue(v.String()), nil
	case int:
		return NumberValue(strconv.Itoa(v)), nil
	case int64:
		return NumberValue(strconv.FormatInt(v, 10)), nil
	case float64:
		return NumberValue(strconv.FormatFloat(v, 'g', -1, 64)), nil
	case []interface{}:
		elems := make([]Value, 0, len(v))
		for _, el := range v {
			ev, err := FromNative(el)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, ev)
		}
		return ListValue(elems...), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(v))
		for name, el := range v {
			ev, err := FromNative(el)
			if err != nil {
				return Value{}, err
			}
			m[name] = ev
		}
		return MapValue(m), nil
	default:
		return Value{}, &UnsupportedTypeError{Value: v}
	}
}

// FromAttributeValue converts a scanned DynamoDB attribute to a Value.
// Set types (SS, NS, BS) have no equivalent in the Value domain and are
// converted to lists of their element type.
func FromAttributeValue(av *dynamodb.AttributeValue) (Value, error) {
	switch {
	case av == nil || aws.BoolValue(av.NULL):
		return NullValue(), nil

	case av.S != nil:
		return StringValue(*av.S), nil

	case av.N != nil:
		return NumberValue(*av.N), nil

	case av.BOOL != nil:
		return BoolValue(*av.BOOL), nil

	case av.B != nil:
		return BinaryValue(av.B), nil

	case av.L != nil:
		elems := make([]Value, 0, len(av.L))
		for _, el := range av.L {
			ev, err := FromAttributeValue(el)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, ev)
		}
		return ListValue(elems...), nil

	case av.M != nil:
		m := make(map[string]Value, len(av.M))
		for name, el := range av.M {
			ev, err := FromAttributeValue(el)
			if err != nil {
				return Value{}, err
			}
			m[name] = ev
		}
		return MapValue(m), nil

	case av.SS != nil:
		elems := make([]Value, 0, len(av.SS))
		for _, s := range av.SS {
			elems = append(elems, StringValue(aws.StringValue(s)))
		}
		return ListValue(elems...), nil

	case av.NS != nil:
		elems := make([]Value, 0, len(av.NS))
		for _, n := range av.NS {
			elems = append(elems, NumberValue(aws.StringValue(n)))
		}
		return ListValue(elems...), nil

	case av.BS != nil:
		elems := make([]Value, 0, len(av.BS))
		for _, b := range av.BS {
			elems = append(elems, BinaryValue(b))
		}
		return ListValue(elems...), nil
	}
	return Value{}, &UnsupportedTypeError{Value: av}
}

// FromItem converts a full scanned item to an Item.
func FromItem(raw map[string]*dynamodb.AttributeValue) (Item, error) {
	item := make(Item, len(raw))
	for name, av := range raw {
		v, err := FromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		item[name] = v
	}
	return item, nil
}
