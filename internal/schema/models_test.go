package schema

import (
	"errors"
	"testing"

	"github.com/acted/rules-engine/pkg/value"
)

var cartSchema = Schema{
	Code:    "cart_v1",
	Version: 1,
	Active:  true,
	Document: value.MustParse(`{
		"type": "object",
		"required": ["cart"],
		"properties": {
			"cart": {
				"type": "object",
				"required": ["total"],
				"additionalProperties": false,
				"properties": {
					"total": {"type": "number", "minimum": 0},
					"currency": {"enum": ["GBP", "EUR"]},
					"items": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {"net": {"type": ["string", "null"]}}
						}
					}
				}
			},
			"user": {"type": ["object", "null"], "properties": {"age": {"type": "integer"}}}
		}
	}`),
}

func TestCompileAndValidate(t *testing.T) {
	compiled, err := Compile(cartSchema)
	if err != nil {
		t.Fatal(err)
	}

	valid := []string{
		`{"cart": {"total": 0}}`,
		`{"cart": {"total": 12.5, "currency": "GBP", "items": [{"net": "10.00"}, {"net": null}]}}`,
		`{"cart": {"total": 1}, "user": null}`,
		`{"cart": {"total": 1}, "user": {"age": 42}}`,
	}
	for _, ctx := range valid {
		if err := compiled.Validate(value.MustParse(ctx)); err != nil {
			t.Errorf("%s: unexpected error %v", ctx, err)
		}
	}

	invalid := []struct {
		ctx  string
		path string
	}{
		{`{}`, "/"},
		{`{"cart": {"total": -1}}`, "/cart/total"},
		{`{"cart": {"total": "12"}}`, "/cart/total"},
		{`{"cart": {"total": 1, "extra": true}}`, "/cart"},
		{`{"cart": {"total": 1, "currency": "USD"}}`, "/cart/currency"},
		{`{"cart": {"total": 1, "items": [{"net": 10}]}}`, "/cart/items/0/net"},
		{`{"cart": {"total": 1}, "user": {"age": 4.5}}`, "/user/age"},
	}
	for _, test := range invalid {
		err := compiled.Validate(value.MustParse(test.ctx))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected a ValidationError, got %v", test.ctx, err)
			continue
		}
		if verr.Code != "cart_v1" {
			t.Errorf("%s: invalid code %s", test.ctx, verr.Code)
		}
		found := false
		for _, v := range verr.Violations {
			if v.Path == test.path {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: no violation on %s in %v", test.ctx, test.path, verr.Violations)
		}
	}
}

func TestCompileInvalidDocument(t *testing.T) {
	_, err := Compile(Schema{Code: "broken", Document: value.MustParse(`{"type": 12}`)})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("expected ErrInvalidSchema, got %v", err)
	}
	_, err = Compile(Schema{Code: "", Document: value.MustParse(`{}`)})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestDeclares(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"cart", true},
		{"cart.total", true},
		{"cart.items.0.net", true},
		{"cart.items.first.net", false},
		{"cart.discount", false},
		{"user.age", true},
		{"user.country_code", false},
		{"vat", false},
	}
	for _, test := range tests {
		if got := cartSchema.Declares(test.path); got != test.want {
			t.Errorf("Declares(%q): got %t, want %t", test.path, got, test.want)
		}
	}
}
