// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

func TestFromNative(t *testing.T) {
	tests := []struct {
		name     string
		in       interface{}
		expected Value
	}{
		{"nil", nil, NullValue()},
		{"string", "foo", StringValue("foo")},
		{"bool", true, BoolValue(true)},
		{"bytes", []byte("bin"), BinaryValue([]byte("bin"))},
		{"json-number", json.Number("123.456"), NumberValue("123.456")},
		{"int", 42, NumberValue("42")},
		{"int64", int64(-7), NumberValue("-7")},
		{"float", 0.5, NumberValue("0.5")},
		{"list", []interface{}{"a", json.Number("1")},
			ListValue(StringValue("a"), NumberValue("1"))},
		{"map", map[string]interface{}{"k": true},
			MapValue(map[string]Value{"k": BoolValue(true)})},
	}
	for _, test := range tests {
		v, err := FromNative(test.in)
		if err != nil {
			t.Errorf("test=%q unexpected error: %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(v, test.expected) {
			t.Errorf("test=%q expected=%#v actual=%#v", test.name, test.expected, v)
		}
	}
}

func TestFromNativeUnsupported(t *testing.T) {
	_, err := FromNative(struct{ X int }{1})
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}

	// unsupported element nested in a map must not leak a partial value
	_, err = FromNative(map[string]interface{}{"bad": make(chan int)})
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnsupportedTypeError for nested value, got %v", err)
	}
}

func TestFromAttributeValue(t *testing.T) {
	tests := []struct {
		name     string
		in       *dynamodb.AttributeValue
		expected Value
	}{
		{"string", &dynamodb.AttributeValue{S: aws.String("foo")}, StringValue("foo")},
		{"number", &dynamodb.AttributeValue{N: aws.String("123.456")}, NumberValue("123.456")},
		{"bool", &dynamodb.AttributeValue{BOOL: aws.Bool(true)}, BoolValue(true)},
		{"null", &dynamodb.AttributeValue{NULL: aws.Bool(true)}, NullValue()},
		{"bytes", &dynamodb.AttributeValue{B: []byte("bin")}, BinaryValue([]byte("bin"))},
		{"list", &dynamodb.AttributeValue{L: []*dynamodb.AttributeValue{
			{S: aws.String("str")},
			{N: aws.String("1")},
		}}, ListValue(StringValue("str"), NumberValue("1"))},
		{"map", &dynamodb.AttributeValue{M: map[string]*dynamodb.AttributeValue{
			"key": {S: aws.String("str")},
		}}, MapValue(map[string]Value{"key": StringValue("str")})},
		// sets have no Value equivalent and become lists
		{"string-set", &dynamodb.AttributeValue{SS: []*string{aws.String("a"), aws.String("b")}},
			ListValue(StringValue("a"), StringValue("b"))},
		{"number-set", &dynamodb.AttributeValue{NS: []*string{aws.String("1"), aws.String("2")}},
			ListValue(NumberValue("1"), NumberValue("2"))},
		{"binary-set", &dynamodb.AttributeValue{BS: [][]byte{[]byte("x")}},
			ListValue(BinaryValue([]byte("x")))},
	}
	for _, test := range tests {
		v, err := FromAttributeValue(test.in)
		if err != nil {
			t.Errorf("test=%q unexpected error: %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(v, test.expected) {
			t.Errorf("test=%q expected=%#v actual=%#v", test.name, test.expected, v)
		}
	}
}

// Encoding an item and decoding the resulting request body must yield
// the original item, including deeply nested list/map combinations.
func TestItemRoundTrip(t *testing.T) {
	item := Item{
		"id":     StringValue("item-1"),
		"count":  NumberValue("99.0001"),
		"active": BoolValue(true),
		"blob":   BinaryValue([]byte{0x00, 0x01, 0xff}),
		"unset":  NullValue(),
		"deep": MapValue(map[string]Value{
			"l1": ListValue(
				MapValue(map[string]Value{
					"l2": ListValue(
						MapValue(map[string]Value{
							"l3": ListValue(NumberValue("3.14"), StringValue("pi")),
						}),
					),
				}),
				NullValue(),
			),
		}),
	}

	var enc Encoder
	body, err := enc.EncodeItem("round-trip", item)
	if err != nil {
		t.Fatal("encode failed", err)
	}

	table, got, err := DecodeItem(body)
	if err != nil {
		t.Fatal("decode failed", err)
	}
	if table != "round-trip" {
		t.Errorf("table name mismatch: %q", table)
	}
	if !reflect.DeepEqual(got, item) {
		t.Errorf("round trip mismatch\nexpected=%#v\nactual=%#v", item, got)
	}
}

func TestDecodeAttributeInvariants(t *testing.T) {
	if _, err := decodeAttribute(json.RawMessage(`{"S":"a","N":"1"}`)); err == nil {
		t.Error("expected error for attribute with two tags")
	}
	if _, err := decodeAttribute(json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for attribute with no tag")
	}
	_, err := decodeAttribute(json.RawMessage(`{"SS":["a"]}`))
	if err == nil || !strings.Contains(err.Error(), "unknown type tag") {
		t.Errorf("expected unknown tag error, got %v", err)
	}
}

func TestKindTags(t *testing.T) {
	for k, tag := range map[Kind]string{
		KindNull:   "NULL",
		KindString: "S",
		KindNumber: "N",
		KindBool:   "BOOL",
		KindBinary: "B",
		KindList:   "L",
		KindMap:    "M",
	} {
		if k.String() != tag {
			t.Errorf("kind %d expected tag %q got %q", int(k), tag, k.String())
		}
		got, ok := kindForTag(tag)
		if !ok || got != k {
			t.Errorf("tag %q expected kind %v got %v ok=%v", tag, k, got, ok)
		}
	}
}
