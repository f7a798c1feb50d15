package vat

import (
	"context"
	"errors"
	"fmt"

	"github.com/acted/rules-engine/internal/engine"
	"github.com/acted/rules-engine/internal/function"
	"github.com/acted/rules-engine/pkg/value"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrRegionUnresolved is returned when checkout_start did not set vat.region
	ErrRegionUnresolved = errors.New("vat region could not be resolved")
	// ErrStateMachine is returned when an entry point did not fire exactly one rule of the expected stage
	ErrStateMachine = errors.New("vat rules did not complete the expected stages")
	// ErrInvalidCart is returned when cart.items is not a list of objects
	ErrInvalidCart = errors.New("invalid cart")
	// ErrInvalidAmount is returned when a line net_amount is not a decimal string
	ErrInvalidAmount = errors.New("invalid net amount")
)

// Executor runs an entry point. *engine.Engine is the production implementation.
type Executor interface {
	Execute(ctx context.Context, entryPoint string, input value.Value) *engine.Result
}

// Line is the VAT breakdown of one cart item
type Line struct {
	ItemID      value.Value     `json:"id"`
	ProductType string          `json:"product_type"`
	Net         decimal.Decimal `json:"net_amount"`
	VAT         decimal.Decimal `json:"vat_amount"`
	Gross       decimal.Decimal `json:"gross_amount"`
	RegionRule  string          `json:"region_rule"`
	ProductRule string          `json:"product_rule"`
	ExecutionID string          `json:"execution_id"`
}

// Summary is the cart-level VAT result
type Summary struct {
	Region       string          `json:"region"`
	Rate         decimal.Decimal `json:"rate"`
	TotalNet     decimal.Decimal `json:"total_net"`
	TotalVAT     decimal.Decimal `json:"total_vat"`
	TotalGross   decimal.Decimal `json:"total_gross"`
	Lines        []Line          `json:"lines"`
	Blocked      bool            `json:"blocked"`
	ExecutionIDs []string        `json:"execution_ids"`
}

// Calculator computes the VAT of a whole cart with the VAT entry points
type Calculator struct {
	Executor Executor
}

// NewCalculator returns a new Calculator
func NewCalculator(executor Executor) *Calculator {
	return &Calculator{Executor: executor}
}

// Calculate resolves the region at checkout_start, resolves the regional rate once,
// then runs calculate_vat_per_item once per cart line in cart order.
// It returns the updated context, with cart.items amounts, cart totals and cart.vat filled.
func (c *Calculator) Calculate(ctx context.Context, input value.Value) (value.Value, Summary, error) {
	summary := Summary{Lines: make([]Line, 0)}

	items, err := cartItems(input)
	if err != nil {
		return value.Missing, summary, err
	}

	master := c.Executor.Execute(ctx, EntryPointCheckout, input)
	summary.ExecutionIDs = append(summary.ExecutionIDs, master.ExecutionID)
	summary.Blocked = master.Blocked
	region, ok := master.Context.Get("vat.region").Str()
	if !ok || region == "" {
		return value.Missing, summary, fmt.Errorf("%w: %s", ErrRegionUnresolved, describe(master))
	}
	summary.Region = region

	// regional stage, the rate is always resolved from the region
	rateCtx := master.Context.Clone()
	if _, err := rateCtx.Set("vat.rate", value.NewNull()); err != nil {
		return value.Missing, summary, err
	}
	rated := c.Executor.Execute(ctx, EntryPointPerItem, rateCtx)
	summary.ExecutionIDs = append(summary.ExecutionIDs, rated.ExecutionID)
	regionRule, err := singleFired(rated, false)
	if err != nil {
		return value.Missing, summary, fmt.Errorf("regional stage: %w", err)
	}
	rate, ok := rated.Context.Get("vat.rate").Numeric()
	if !ok {
		return value.Missing, summary, fmt.Errorf("%w: rule %s did not set vat.rate", ErrStateMachine, regionRule)
	}
	summary.Rate = rate

	out := rated.Context.Clone()
	updated := make([]value.Value, 0, len(items))
	for i, item := range items {
		lineCtx := rated.Context.Clone()
		if _, err := lineCtx.Set("cart_item", item); err != nil {
			return value.Missing, summary, err
		}
		res := c.Executor.Execute(ctx, EntryPointPerItem, lineCtx)
		summary.ExecutionIDs = append(summary.ExecutionIDs, res.ExecutionID)
		productRule, err := singleFired(res, true)
		if err != nil {
			return value.Missing, summary, fmt.Errorf("line %d: %w", i, err)
		}

		line, err := newLine(res.Context.Get("cart_item"), i)
		if err != nil {
			return value.Missing, summary, err
		}
		line.RegionRule = regionRule
		line.ProductRule = productRule
		line.ExecutionID = res.ExecutionID
		summary.Lines = append(summary.Lines, line)
		summary.TotalNet = summary.TotalNet.Add(line.Net)
		summary.TotalVAT = summary.TotalVAT.Add(line.VAT)
		summary.TotalGross = summary.TotalGross.Add(line.Gross)

		priced := res.Context.Get("cart_item").Clone()
		priced.Set("vat_amount", function.Money(line.VAT))
		priced.Set("gross_amount", function.Money(line.Gross))
		updated = append(updated, priced)
	}

	if err := write(&out, summary, updated); err != nil {
		return value.Missing, summary, err
	}
	zap.L().Debug("Cart VAT calculated", zap.String("region", summary.Region), zap.String("rate", summary.Rate.String()),
		zap.Int("lines", len(summary.Lines)), zap.String("totalGross", summary.TotalGross.StringFixed(function.MoneyPlaces)))
	return out, summary, nil
}

func cartItems(input value.Value) ([]value.Value, error) {
	raw := input.Get("cart.items")
	if raw.IsNull() {
		return nil, nil
	}
	items, ok := raw.Array()
	if !ok {
		return nil, fmt.Errorf("%w: cart.items must be a list, got %s", ErrInvalidCart, raw.Kind())
	}
	for i, item := range items {
		if item.Kind() != value.KindObject {
			return nil, fmt.Errorf("%w: cart.items.%d must be an object", ErrInvalidCart, i)
		}
		net := item.Get("net_amount")
		if _, ok := net.Str(); !ok {
			return nil, fmt.Errorf("%w: cart.items.%d.net_amount must be a decimal string", ErrInvalidAmount, i)
		}
		if _, ok := net.Numeric(); !ok {
			return nil, fmt.Errorf("%w: cart.items.%d.net_amount %s", ErrInvalidAmount, i, net)
		}
	}
	return items, nil
}

// singleFired checks that exactly one rule fired and returns its code.
// The product stage must end on a stop_processing rule, the regional stage must not.
func singleFired(res *engine.Result, product bool) (string, error) {
	if !res.Success {
		return "", fmt.Errorf("%w: %s", ErrStateMachine, describe(res))
	}
	var fired []engine.RuleExecution
	for _, exec := range res.RulesExecuted {
		if exec.ConditionResult {
			fired = append(fired, exec)
		}
	}
	if len(fired) != 1 {
		return "", fmt.Errorf("%w: %d rules fired %v", ErrStateMachine, len(fired), res.Fired())
	}
	if fired[0].StopProcessing != product {
		return "", fmt.Errorf("%w: unexpected rule %s", ErrStateMachine, fired[0].RuleCode)
	}
	if product && res.Context.Get("cart_item.vat_amount").IsNull() {
		return "", fmt.Errorf("%w: rule %s did not set cart_item.vat_amount", ErrStateMachine, fired[0].RuleCode)
	}
	return fired[0].RuleCode, nil
}

func newLine(item value.Value, i int) (Line, error) {
	line := Line{ItemID: item.Get("id")}
	line.ProductType, _ = item.Get("product_type").Str()

	var ok bool
	if line.Net, ok = item.Get("net_amount").Numeric(); !ok {
		return Line{}, fmt.Errorf("%w: cart.items.%d", ErrInvalidAmount, i)
	}
	if line.VAT, ok = item.Get("vat_amount").Numeric(); !ok {
		return Line{}, fmt.Errorf("%w: line %d vat_amount %s", ErrStateMachine, i, item.Get("vat_amount"))
	}
	line.VAT = function.RoundMoney(line.VAT)
	line.Gross = function.RoundMoney(line.Net.Add(line.VAT))
	if gross, ok := item.Get("gross_amount").Numeric(); ok && !gross.Equal(line.Gross) {
		return Line{}, fmt.Errorf("%w: line %d gross %s is not net + vat %s", ErrStateMachine, i, gross, line.Gross)
	}
	return line, nil
}

func write(out *value.Value, s Summary, items []value.Value) error {
	lines := make([]value.Value, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, value.NewObject(map[string]value.Value{
			"id":           l.ItemID,
			"product_type": value.NewString(l.ProductType),
			"net_amount":   function.Money(l.Net),
			"vat_amount":   function.Money(l.VAT),
			"gross_amount": function.Money(l.Gross),
			"region_rule":  value.NewString(l.RegionRule),
			"product_rule": value.NewString(l.ProductRule),
		}))
	}
	fields := map[string]value.Value{
		"cart.items":       value.NewArray(items),
		"cart.total_net":   function.Money(s.TotalNet),
		"cart.total_vat":   function.Money(s.TotalVAT),
		"cart.total_gross": function.Money(s.TotalGross),
		"cart.vat": value.NewObject(map[string]value.Value{
			"region":      value.NewString(s.Region),
			"rate":        function.Rate(s.Rate),
			"total_net":   function.Money(s.TotalNet),
			"total_vat":   function.Money(s.TotalVAT),
			"total_gross": function.Money(s.TotalGross),
			"lines":       value.NewArray(lines),
		}),
	}
	for _, path := range []string{"cart.items", "cart.total_net", "cart.total_vat", "cart.total_gross", "cart.vat"} {
		if _, err := out.Set(path, fields[path]); err != nil {
			return err
		}
	}
	return nil
}

func describe(res *engine.Result) string {
	if res.ErrorMessage != "" {
		return res.ErrorMessage
	}
	return fmt.Sprintf("rules fired %v", res.Fired())
}
