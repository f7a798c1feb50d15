package rule

import (
	"os"
	"path/filepath"
	"testing"
)

const yamlCatalog = `
schemas:
  - fields_code: cart_v1
    active: true
    schema:
      type: object
      properties:
        cart:
          type: object
templates:
  - name: discount_applied
    title: Discount
    body: "You saved {{ cart.discount }}"
    message_type: success
rules:
  - rule_code: apply_discount
    name: 10% over 100
    entry_point: checkout_start
    rules_fields_code: cart_v1
    priority: 10
    active: true
    condition:
      ">": [{var: cart.total}, 100]
    actions:
      - type: update
        target: cart.discount
        operation: function
        functionId: multiply_discount
        parameters:
          base: {var: cart.total}
          multiplier: "0.10"
      - type: display_message
        templateName: discount_applied
        placement: banner
`

func TestParseYAMLCatalog(t *testing.T) {
	c, err := ParseYAMLCatalog([]byte(yamlCatalog))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Schemas) != 1 || c.Schemas[0].Code != "cart_v1" {
		t.Errorf("invalid schemas %+v", c.Schemas)
	}
	if len(c.Templates) != 1 || c.Templates[0].MessageType != "success" {
		t.Errorf("invalid templates %+v", c.Templates)
	}
	if len(c.Rules) != 1 {
		t.Fatalf("invalid rules %+v", c.Rules)
	}
	r := c.Rules[0]
	if ok, err := r.IsValid(); !ok {
		t.Errorf("rule should be valid: %v", err)
	}
	if r.Condition.String() != `{">":[{"var":"cart.total"},100]}` {
		t.Errorf("invalid condition %s", r.Condition)
	}
	u, ok := r.Actions[0].(Update)
	if !ok || u.Parameters.Get("multiplier").String() != `"0.10"` {
		t.Errorf("invalid update %+v", r.Actions[0])
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "pack.json")
	doc := `{"rules": [{"rule_code": "stop_all", "name": "stop", "entry_point": "checkout_start",
		"priority": 1, "active": true, "condition": true, "actions": [{"type": "stop"}]}]}`
	if err := os.WriteFile(jsonPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalogFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Rules) != 1 || c.Rules[0].Actions[0].Type() != TypeStop {
		t.Errorf("invalid catalog %+v", c)
	}

	yamlPath := filepath.Join(dir, "pack.yaml")
	if err := os.WriteFile(yamlPath, []byte(yamlCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	if c, err = LoadCatalogFile(yamlPath); err != nil || len(c.Rules) != 1 {
		t.Errorf("invalid yaml catalog %+v: %v", c, err)
	}

	if _, err := LoadCatalogFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error on a missing file")
	}
	if _, err := ParseYAMLCatalog([]byte("rules: [")); err == nil {
		t.Error("expected an error on malformed yaml")
	}
}
