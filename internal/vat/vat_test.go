package vat

import (
	"context"
	"testing"
	"time"

	"github.com/acted/rules-engine/internal/audit"
	"github.com/acted/rules-engine/internal/dispatcher"
	"github.com/acted/rules-engine/internal/engine"
	"github.com/acted/rules-engine/internal/function"
	"github.com/acted/rules-engine/internal/messagetemplate"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/internal/ruleset"
	"github.com/acted/rules-engine/internal/schema"
	"github.com/acted/rules-engine/pkg/value"
)

var testDate = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testDate }

func testRegistry(t *testing.T) *function.Registry {
	t.Helper()
	lookups := NewMemoryRepository()
	if err := Seed(lookups); err != nil {
		t.Fatal(err)
	}
	reg := function.NewRegistry()
	if err := function.RegisterBuiltins(reg); err != nil {
		t.Fatal(err)
	}
	if err := RegisterFunctions(reg, lookups, testClock); err != nil {
		t.Fatal(err)
	}
	return reg
}

func testEngine(t *testing.T) (*engine.Engine, *audit.MemoryRepository) {
	t.Helper()
	reg := testRegistry(t)
	rules := rule.NewMemoryRepository()
	schemas := schema.NewMemoryRepository()
	templates := messagetemplate.NewMemoryRepository()
	cache := ruleset.NewCache(rules, schemas)
	publisher := ruleset.NewPublisher(rules, schemas, templates, rule.Validator{Functions: reg}, cache, nil)

	catalog, err := Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if err := publisher.PublishCatalog(context.Background(), catalog); err != nil {
		t.Fatal(err)
	}

	records := audit.NewMemoryRepository()
	e := engine.New(cache, dispatcher.New(templates, reg, nil), audit.NewSyncRecorder(records))
	return e, records
}

func TestCatalog(t *testing.T) {
	catalog, err := Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog.Schemas) != 2 {
		t.Errorf("expected 2 schemas, got %d", len(catalog.Schemas))
	}
	perEntryPoint := make(map[string]int)
	for _, r := range catalog.Rules {
		perEntryPoint[r.EntryPoint]++
		if ok, err := r.IsValid(); !ok {
			t.Errorf("rule %s: %v", r.Code, err)
		}
	}
	if perEntryPoint[EntryPointCheckout] != 1 || perEntryPoint[EntryPointPerItem] != 11 {
		t.Errorf("unexpected rules per entry point %v", perEntryPoint)
	}

	// the anchored action list is shared by three rules
	for _, code := range []string{"vat_ie_standard", "vat_eu_standard", "vat_sa_standard"} {
		for _, r := range catalog.Rules {
			if r.Code == code && (len(r.Actions) != 3 || !r.StopProcessing) {
				t.Errorf("rule %s has actions %v", code, r.Actions)
			}
		}
	}

	// the catalog passes save-time validation
	testEngine(t)
}

func TestScenarios(t *testing.T) {
	e, _ := testEngine(t)

	tests := []struct {
		name  string
		input string
		fired string
		vat   string
		gross string
	}{
		{
			name:  "UK digital item",
			input: `{"cart_item": {"id": "L1", "product_type": "Digital", "net_amount": "50.00"}, "user": {"country_code": "GB"}, "vat": {"region": "UK", "rate": "0.20"}}`,
			fired: "vat_uk_standard",
			vat:   "10.00",
			gross: "60.00",
		},
		{
			name:  "UK printed book",
			input: `{"cart_item": {"id": "L1", "product_type": "Printed", "net_amount": "100.00"}, "user": {"country_code": "GB"}, "vat": {"region": "UK", "rate": "0.20"}}`,
			fired: "vat_uk_zero_rated",
			vat:   "0.00",
			gross: "100.00",
		},
		{
			name:  "IE customer",
			input: `{"cart_item": {"id": "L1", "product_type": "Digital", "net_amount": "100.00"}, "user": {"country_code": "IE"}, "vat": {"region": "IE", "rate": "0.23"}}`,
			fired: "vat_ie_standard",
			vat:   "23.00",
			gross: "123.00",
		},
		{
			name:  "half cent rounds up",
			input: `{"cart_item": {"id": "L1", "product_type": "Digital", "net_amount": "0.50"}, "user": {"country_code": "IE"}, "vat": {"region": "IE", "rate": "0.23"}}`,
			fired: "vat_ie_standard",
			vat:   "0.12",
			gross: "0.62",
		},
	}

	for _, tt := range tests {
		res := e.Execute(context.Background(), EntryPointPerItem, value.MustParse(tt.input))
		if !res.Success || res.Blocked {
			t.Errorf("%s: success=%v blocked=%v %s", tt.name, res.Success, res.Blocked, res.ErrorMessage)
			continue
		}
		if fired := res.Fired(); len(fired) != 1 || fired[0] != tt.fired {
			t.Errorf("%s: fired %v, want [%s]", tt.name, fired, tt.fired)
		}
		if got := res.Context.Get("cart_item.vat_amount"); !got.Equal(value.NewString(tt.vat)) {
			t.Errorf("%s: vat_amount %s, want %s", tt.name, got, tt.vat)
		}
		if got := res.Context.Get("cart_item.gross_amount"); !got.Equal(value.NewString(tt.gross)) {
			t.Errorf("%s: gross_amount %s, want %s", tt.name, got, tt.gross)
		}
	}
}

func TestUnknownCountryIsRestOfWorld(t *testing.T) {
	e, _ := testEngine(t)

	master := e.Execute(context.Background(), EntryPointCheckout, value.MustParse(`{"user": {"country_code": "XX"}}`))
	if fired := master.Fired(); len(fired) != 1 || fired[0] != "calculate_vat_master" {
		t.Fatalf("fired %v", fired)
	}
	if got := master.Context.Get("vat.region"); !got.Equal(value.NewString(RegionROW)) {
		t.Fatalf("vat.region is %s", got)
	}

	rated := e.Execute(context.Background(), EntryPointPerItem, master.Context)
	if fired := rated.Fired(); len(fired) != 1 || fired[0] != "vat_region_rate_row" {
		t.Fatalf("regional stage fired %v", fired)
	}

	line := rated.Context.Clone()
	line.Set("cart_item", value.MustParse(`{"id": "L1", "product_type": "Digital", "net_amount": "100.00"}`))
	res := e.Execute(context.Background(), EntryPointPerItem, line)
	if fired := res.Fired(); len(fired) != 1 || fired[0] != "vat_row_zero" {
		t.Fatalf("product stage fired %v", fired)
	}
	if got := res.Context.Get("cart_item.vat_amount"); !got.Equal(value.NewString("0.00")) {
		t.Errorf("vat_amount %s", got)
	}
}

func TestProductRulesWaitForTheRate(t *testing.T) {
	e, _ := testEngine(t)

	// no rate yet: only the regional rule may fire
	res := e.Execute(context.Background(), EntryPointPerItem, value.MustParse(
		`{"cart_item": {"id": "L1", "product_type": "Digital", "net_amount": "10.00"}, "user": {"country_code": "FR"}, "vat": {"region": "EU", "rate": null}}`))
	if fired := res.Fired(); len(fired) != 1 || fired[0] != "vat_region_rate_eu" {
		t.Fatalf("fired %v", fired)
	}
	if got := res.Context.Get("vat.rate"); !got.Equal(value.NewString("0.20")) {
		t.Errorf("vat.rate %s", got)
	}
	if !res.Context.Get("cart_item.vat_amount").IsMissing() {
		t.Error("no product rule may fire before the rate is known")
	}
}

func TestSchemaRejectsMalformedLine(t *testing.T) {
	e, records := testEngine(t)

	res := e.Execute(context.Background(), EntryPointPerItem, value.MustParse(
		`{"cart_item": {"id": "L1", "product_type": "Digital", "net_amount": 50}, "vat": {"region": "UK", "rate": "0.20"}}`))
	if res.Success {
		t.Error("a numeric net_amount must fail schema validation")
	}
	if len(res.Fired()) != 0 {
		t.Errorf("fired %v", res.Fired())
	}
	for _, exec := range res.RulesExecuted {
		if exec.Status != engine.StatusSkipped || exec.Error == nil || exec.Error.Kind != engine.ErrorSchemaValidation {
			t.Errorf("rule %s: %+v", exec.RuleCode, exec)
		}
	}
	if n := len(records.All()); n != 1 {
		t.Errorf("expected 1 audit row, got %d", n)
	}
}
