package value

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseKeepsDecimalPrecision(t *testing.T) {
	v, err := Parse([]byte(`{"amount": 0.1, "big": 12345678901234567890.123456789}`))
	if err != nil {
		t.Fatal(err)
	}
	amount, ok := v.Get("amount").Number()
	if !ok {
		t.Fatal("amount should be a number")
	}
	if !amount.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("invalid amount: %s", amount)
	}
	big := v.Get("big")
	if big.String() != "12345678901234567890.123456789" {
		t.Errorf("big number lost precision: %s", big.String())
	}
}

func TestGetMissingPaths(t *testing.T) {
	v := MustParse(`{"user": {"country_code": "GB", "tags": ["a", "b"]}, "nothing": null}`)

	tests := []struct {
		path string
		kind Kind
	}{
		{"user.country_code", KindString},
		{"user.tags.1", KindString},
		{"user.tags.5", KindMissing},
		{"user.unknown", KindMissing},
		{"unknown.deeper.path", KindMissing},
		{"nothing", KindNull},
		{"nothing.below", KindMissing},
		{"", KindObject},
	}
	for _, test := range tests {
		if got := v.Get(test.path).Kind(); got != test.kind {
			t.Errorf("Get(%q): got kind %s, want %s", test.path, got, test.kind)
		}
	}

	_, err := v.Lookup("user.country_code.first")
	if !errors.Is(err, ErrNotContainer) {
		t.Errorf("Lookup through a string should fail with ErrNotContainer, got %v", err)
	}
}

func TestSetCreatesIntermediateObjects(t *testing.T) {
	v := MustParse(`{"user": {"id": 1}}`)

	old, err := v.Set("vat.region", NewString("GB"))
	if err != nil {
		t.Fatal(err)
	}
	if !old.IsMissing() {
		t.Errorf("previous value should be missing, got %s", old)
	}
	if s, _ := v.Get("vat.region").Str(); s != "GB" {
		t.Errorf("vat.region not set: %s", v)
	}

	old, err = v.Set("user.id", NewInt(2))
	if err != nil {
		t.Fatal(err)
	}
	if !old.Equal(NewInt(1)) {
		t.Errorf("previous value should be 1, got %s", old)
	}
}

func TestSetErrors(t *testing.T) {
	v := MustParse(`{"user": {"name": "bob"}, "items": [{"sku": "A"}]}`)

	if _, err := v.Set("user.name.first", NewString("x")); !errors.Is(err, ErrNotContainer) {
		t.Errorf("expected ErrNotContainer, got %v", err)
	}
	if _, err := v.Set("items.3.sku", NewString("x")); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := v.Set("user..name", NewString("x")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := v.Set("items.0.sku", NewString("B")); err != nil {
		t.Errorf("existing array element should be writable: %v", err)
	}
	if s, _ := v.Get("items.0.sku").Str(); s != "B" {
		t.Errorf("items.0.sku not updated: %s", v)
	}
}

func TestCloneIsDeep(t *testing.T) {
	v := MustParse(`{"cart": {"items": [{"net": "10.00"}]}}`)
	c := v.Clone()
	if _, err := c.Set("cart.items.0.net", NewString("20.00")); err != nil {
		t.Fatal(err)
	}
	if s, _ := v.Get("cart.items.0.net").Str(); s != "10.00" {
		t.Errorf("original was mutated through its clone: %s", v)
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	v := MustParse(`{"b": 1.50, "a": [true, null, "x"], "c": {}}`)
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":[true,null,"x"],"b":1.5,"c":{}}` {
		t.Errorf("unexpected json: %s", b)
	}

	var back Value
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(v) {
		t.Errorf("values differ after json round trip: %s != %s", back, v)
	}
}

func TestStringKeepsOperators(t *testing.T) {
	cases := map[string]string{
		`{">": [{"var": "cart.total"}, 100]}`: `{">":[{"var":"cart.total"},100]}`,
		`{"<=": [1, 2]}`:                      `{"<=":[1,2]}`,
		`"Terms & <conditions>"`:              `"Terms & <conditions>"`,
		`"line\nbreak \"quoted\""`:            `"line\nbreak \"quoted\""`,
	}
	for doc, want := range cases {
		if got := MustParse(doc).String(); got != want {
			t.Errorf("%s: got %s, want %s", doc, got, want)
		}
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Missing, false},
		{NewNull(), false},
		{NewBool(false), false},
		{NewBool(true), true},
		{NewInt(0), false},
		{MustParse(`0.00`), false},
		{MustParse(`-1`), true},
		{NewString(""), false},
		{NewString("0"), true},
		{NewArray(nil), false},
		{MustParse(`[0]`), true},
		{NewObject(nil), true},
	}
	for i, test := range tests {
		if got := test.v.Truthy(); got != test.want {
			t.Errorf("case %d (%s): got %t, want %t", i, test.v, got, test.want)
		}
	}
}

func TestNumeric(t *testing.T) {
	if d, ok := NewString(" 12.50 ").Numeric(); !ok || !d.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("numeric string not parsed: %s %t", d, ok)
	}
	if _, ok := NewString("abc").Numeric(); ok {
		t.Error("abc should not be numeric")
	}
	if _, ok := NewBool(true).Numeric(); ok {
		t.Error("booleans should not be numeric")
	}
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]interface{}{
		"n": 3,
		"f": 0.25,
		"l": []interface{}{"x", json.Number("1.10")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != `{"f":0.25,"l":["x",1.1],"n":3}` {
		t.Errorf("unexpected value: %s", v)
	}

	if _, err := FromInterface(struct{}{}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}
