// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

var encodeTests = []struct {
	name     string
	value    Value
	expected string
}{
	{"null", NullValue(), `{"NULL":true}`},
	{"string", StringValue("foo"), `{"S":"foo"}`},
	{"number", NumberValue("123.456"), `{"N":"123.456"}`},
	{"bool", BoolValue(true), `{"BOOL":true}`},
	{"bytes", BinaryValue([]byte("foo")), `{"B":"Zm9v"}`},
	{"list", ListValue(StringValue("str"), NumberValue("1")), `{"L":[{"S":"str"},{"N":"1"}]}`},
	{"map", MapValue(map[string]Value{
		"key1": StringValue("str"),
		"key2": NumberValue("2"),
	}), `{"M":{"key1":{"S":"str"},"key2":{"N":"2"}}}`},
	{"nested", ListValue(MapValue(map[string]Value{
		"inner": ListValue(BoolValue(false)),
	})), `{"L":[{"M":{"inner":{"L":[{"BOOL":false}]}}}]}`},
}

func TestEncodeValue(t *testing.T) {
	var enc Encoder
	for _, test := range encodeTests {
		out, err := enc.EncodeValue(test.value)
		if err != nil {
			t.Errorf("test=%q unexpected error: %v", test.name, err)
			continue
		}
		data, err := json.Marshal(out)
		if err != nil {
			t.Errorf("test=%q marshal error: %v", test.name, err)
			continue
		}
		if string(data) != test.expected {
			t.Errorf("test=%q expected=%s actual=%s", test.name, test.expected, data)
		}
	}
}

func TestEncodeItemShape(t *testing.T) {
	enc := &Encoder{}
	body, err := enc.EncodeItem("target-table", Item{"id": StringValue("1")})
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	expected := `{"TableName":"target-table","Item":{"id":{"S":"1"}}}`
	if string(body) != expected {
		t.Errorf("expected=%s actual=%s", expected, body)
	}
}

// A declared numeric type must win over the value's own string kind.
func TestDeclaredTypePrecedence(t *testing.T) {
	enc := &Encoder{Registry: TypeRegistry{"v": KindNumber}}
	body, err := enc.EncodeItem("t", Item{"v": StringValue("42")})
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if !strings.Contains(string(body), `"v":{"N":"42"}`) {
		t.Errorf("expected N tag for declared numeric attribute, got %s", body)
	}
}

// A null value always encodes as NULL, even with a declared type.
func TestNullPrecedence(t *testing.T) {
	enc := &Encoder{Registry: TypeRegistry{"v": KindNumber}}
	body, err := enc.EncodeItem("t", Item{"v": NullValue()})
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if !strings.Contains(string(body), `"v":{"NULL":true}`) {
		t.Errorf("expected NULL tag, got %s", body)
	}
}

func TestDeclaredTypeMismatch(t *testing.T) {
	enc := &Encoder{Registry: TypeRegistry{"v": KindBinary}}
	if _, err := enc.EncodeItem("t", Item{"v": StringValue("not bytes")}); err == nil {
		t.Error("expected error encoding string value as B")
	}
	enc = &Encoder{Registry: TypeRegistry{"v": KindNumber}}
	if _, err := enc.EncodeItem("t", Item{"v": BoolValue(true)}); err == nil {
		t.Error("expected error encoding bool value as N")
	}
}

func TestEncodeItemValidation(t *testing.T) {
	var enc Encoder
	if _, err := enc.EncodeItem("", Item{"v": NullValue()}); err == nil {
		t.Error("expected error for empty table name")
	}
	if _, err := enc.EncodeItem("t", nil); err == nil {
		t.Error("expected error for nil item")
	}
}

func TestEncodeDepthGuard(t *testing.T) {
	v := StringValue("leaf")
	for i := 0; i < DefaultMaxDepth+1; i++ {
		v = ListValue(v)
	}
	var enc Encoder
	if _, err := enc.EncodeItem("t", Item{"v": v}); !errors.Is(err, ErrEncodingTooDeep) {
		t.Errorf("expected ErrEncodingTooDeep, got %v", err)
	}

	// a shallower limit rejects shallower nesting
	shallow := &Encoder{MaxDepth: 2}
	v = ListValue(ListValue(StringValue("leaf")))
	if _, err := shallow.EncodeItem("t", Item{"v": v}); !errors.Is(err, ErrEncodingTooDeep) {
		t.Errorf("expected ErrEncodingTooDeep at MaxDepth=2, got %v", err)
	}
	if _, err := shallow.EncodeItem("t", Item{"v": ListValue(StringValue("leaf"))}); err != nil {
		t.Errorf("unexpected error within depth limit: %v", err)
	}
}
