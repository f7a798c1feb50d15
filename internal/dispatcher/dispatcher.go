package dispatcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/acted/rules-engine/internal/function"
	"github.com/acted/rules-engine/internal/messagetemplate"
	"github.com/acted/rules-engine/internal/predicate"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/pkg/value"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Outcome is the result of the dispatch of one rule action list
type Outcome struct {
	// ActionsCompleted lists the type of every action that succeeded, in order
	ActionsCompleted []string
	Errors           []ActionError
	Blocked          bool
	Stopped          bool

	TemplateRenderTime  time.Duration
	ActionExecutionTime time.Duration
}

// Dispatcher executes rule actions against a context.
// It only mutates the context and the effect lists it is given.
type Dispatcher struct {
	Templates messagetemplate.Repository
	Functions *function.Registry
	Evaluator *predicate.Evaluator
}

// New returns a new Dispatcher
func New(templates messagetemplate.Repository, functions *function.Registry, evaluator *predicate.Evaluator) *Dispatcher {
	if evaluator == nil {
		evaluator = predicate.Default
	}
	return &Dispatcher{Templates: templates, Functions: functions, Evaluator: evaluator}
}

// Dispatch walks the action list of r in order. A failed action is recorded and the
// remaining actions still run. A stop action ends the list.
func (d *Dispatcher) Dispatch(r rule.Rule, ctx *value.Value, effects *Effects) Outcome {
	start := time.Now()
	out := Outcome{ActionsCompleted: make([]string, 0, len(r.Actions))}

	for i, action := range r.Actions {
		err := d.dispatch(r, action, ctx, effects, &out)
		if err != nil {
			aerr := toActionError(i, err)
			out.Errors = append(out.Errors, aerr)
			zap.L().Warn("Action execution failed", zap.String("rule", r.Code), zap.Int("actionIndex", i),
				zap.String("errorCode", aerr.Code), zap.String("message", aerr.Message))
			continue
		}
		out.ActionsCompleted = append(out.ActionsCompleted, string(action.Type()))
		if out.Stopped {
			break
		}
	}

	out.ActionExecutionTime = time.Since(start) - out.TemplateRenderTime
	return out
}

func (d *Dispatcher) dispatch(r rule.Rule, action rule.Action, ctx *value.Value, effects *Effects, out *Outcome) error {
	switch a := action.(type) {
	case rule.DisplayMessage:
		content, err := d.render(a.TemplateName, *ctx, out)
		if err != nil {
			return err
		}
		effects.Messages = append(effects.Messages, Message{
			Kind:         KindMessage,
			RuleCode:     r.Code,
			TemplateName: a.TemplateName,
			Placement:    a.Placement,
			Priority:     a.Priority,
			Dismissible:  a.Dismissible,
			Content:      content,
		})

	case rule.DisplayModal:
		content, err := d.render(a.TemplateName, *ctx, out)
		if err != nil {
			return err
		}
		effects.Messages = append(effects.Messages, Message{
			Kind:         KindModal,
			RuleCode:     r.Code,
			TemplateName: a.TemplateName,
			Size:         a.Size,
			Blocking:     a.Blocking,
			Backdrop:     a.Backdrop,
			Dismissible:  a.Dismissible,
			Content:      content,
		})

	case rule.UserAcknowledge:
		if Acknowledged(*ctx, a.AckKey) {
			return nil
		}
		ack := Acknowledgment{RuleCode: r.Code, AckKey: a.AckKey, Scope: a.Scope, Required: a.Required, TemplateName: a.TemplateName}
		var renderErr error
		if a.TemplateName != "" {
			ack.Content, renderErr = d.render(a.TemplateName, *ctx, out)
		}
		if a.Required {
			effects.RequiredAcknowledgments = append(effects.RequiredAcknowledgments, ack)
			out.Blocked = true
		} else {
			effects.PreferencePrompts = append(effects.PreferencePrompts, ack)
		}
		return renderErr

	case rule.UserPreference:
		if Acknowledged(*ctx, a.AckKey) {
			return nil
		}
		pref := Acknowledgment{RuleCode: r.Code, AckKey: a.AckKey, Scope: a.Scope, TemplateName: a.TemplateName}
		var renderErr error
		if a.TemplateName != "" {
			pref.Content, renderErr = d.render(a.TemplateName, *ctx, out)
		}
		effects.PreferencePrompts = append(effects.PreferencePrompts, pref)
		return renderErr

	case rule.Update:
		update, err := d.update(a, ctx)
		if err != nil {
			return err
		}
		update.RuleCode = r.Code
		effects.ContextUpdates = append(effects.ContextUpdates, update)

	case rule.Stop:
		out.Stopped = true

	default:
		return ActionError{Code: CodeUnsupportedAction, Message: fmt.Sprintf("%T", action)}
	}
	return nil
}

// Acknowledged reports whether context.acknowledgments holds an accepted decision for key,
// either as true or as an object with "accepted": true
func Acknowledged(ctx value.Value, key string) bool {
	acks, ok := ctx.Get("acknowledgments").Object()
	if !ok {
		return false
	}
	decision, ok := acks[key]
	if !ok {
		return false
	}
	if b, ok := decision.Bool(); ok {
		return b
	}
	if fields, ok := decision.Object(); ok {
		accepted, ok := fields["accepted"].Bool()
		return ok && accepted
	}
	return false
}

func (d *Dispatcher) render(name string, ctx value.Value, out *Outcome) (*messagetemplate.Rendered, error) {
	start := time.Now()
	defer func() { out.TemplateRenderTime += time.Since(start) }()

	if d.Templates == nil {
		return nil, ActionError{Code: CodeTemplateNotFound, Message: name}
	}
	t, found, err := d.Templates.Get(name)
	if err != nil {
		return nil, ActionError{Code: CodeTemplateNotFound, Message: fmt.Sprintf("%s: %s", name, err)}
	}
	if !found {
		return nil, ActionError{Code: CodeTemplateNotFound, Message: name}
	}
	rendered, err := t.Render(ctx)
	if err != nil {
		return nil, ActionError{Code: CodeTemplateRenderFailed, Message: err.Error()}
	}
	return &rendered, nil
}

func (d *Dispatcher) update(a rule.Update, ctx *value.Value) (ContextUpdate, error) {
	if !value.ValidPath(a.Target) {
		return ContextUpdate{}, ActionError{Code: CodeInvalidTarget, Message: fmt.Sprintf("%q", a.Target)}
	}
	current, err := ctx.Lookup(a.Target)
	if err != nil {
		return ContextUpdate{}, ActionError{Code: CodeInvalidTarget, Message: fmt.Sprintf("%s: %s", a.Target, err)}
	}

	var next value.Value
	switch a.Operation {
	case rule.OperationSet:
		next, err = d.evaluate(a.Value, *ctx)
	case rule.OperationIncrement:
		next, err = d.add(current, a.Value, *ctx, false)
	case rule.OperationDecrement:
		next, err = d.add(current, a.Value, *ctx, true)
	case rule.OperationAppend:
		next, err = d.append(current, a.Value, *ctx)
	case rule.OperationFunction:
		next, err = d.call(a, *ctx)
	default:
		err = ActionError{Code: CodeInvalidValue, Message: fmt.Sprintf("unknown operation %q", a.Operation)}
	}
	if err != nil {
		return ContextUpdate{}, err
	}

	// a var operand shares storage with the context it was read from
	next = next.Clone()
	old, err := ctx.Set(a.Target, next)
	if err != nil {
		return ContextUpdate{}, ActionError{Code: CodeInvalidTarget, Message: fmt.Sprintf("%s: %s", a.Target, err)}
	}
	return ContextUpdate{Path: a.Target, OldValue: old, NewValue: next.Clone()}, nil
}

func (d *Dispatcher) evaluate(node value.Value, ctx value.Value) (value.Value, error) {
	v, err := d.Evaluator.Evaluate(node, ctx)
	if err != nil {
		return value.Value{}, ActionError{Code: CodeInvalidValue, Message: err.Error()}
	}
	return v, nil
}

// add keeps the representation of the current value: a numeric string stays a string
// with as many fractional digits as its most precise operand
func (d *Dispatcher) add(current value.Value, node value.Value, ctx value.Value, subtract bool) (value.Value, error) {
	delta, err := d.evaluate(node, ctx)
	if err != nil {
		return value.Value{}, err
	}
	var base decimal.Decimal
	if !current.IsNull() {
		n, ok := current.Numeric()
		if !ok {
			return value.Value{}, ActionError{Code: CodeInvalidValue, Message: fmt.Sprintf("current value %s is not numeric", current)}
		}
		base = n
	}
	step, ok := delta.Numeric()
	if !ok {
		return value.Value{}, ActionError{Code: CodeInvalidValue, Message: fmt.Sprintf("%s is not numeric", delta)}
	}
	if subtract {
		step = step.Neg()
	}
	sum := base.Add(step)

	if current.Kind() == value.KindString || (current.IsNull() && delta.Kind() == value.KindString) {
		return value.NewString(sum.StringFixed(places(base, step))), nil
	}
	return value.NewNumber(sum), nil
}

func places(ds ...decimal.Decimal) int32 {
	var p int32
	for _, d := range ds {
		if -d.Exponent() > p {
			p = -d.Exponent()
		}
	}
	return p
}

func (d *Dispatcher) append(current value.Value, node value.Value, ctx value.Value) (value.Value, error) {
	item, err := d.evaluate(node, ctx)
	if err != nil {
		return value.Value{}, err
	}
	if current.IsNull() {
		return value.NewArray([]value.Value{item}), nil
	}
	items, ok := current.Array()
	if !ok {
		return value.Value{}, ActionError{Code: CodeInvalidTarget, Message: fmt.Sprintf("cannot append to a %s", current.Kind())}
	}
	next := make([]value.Value, 0, len(items)+1)
	for _, v := range items {
		next = append(next, v.Clone())
	}
	return value.NewArray(append(next, item)), nil
}

// call evaluates every parameter against the context before invoking the function
func (d *Dispatcher) call(a rule.Update, ctx value.Value) (value.Value, error) {
	if d.Functions == nil || !d.Functions.Has(a.FunctionID) {
		return value.Value{}, ActionError{Code: CodeUnknownFunction, Message: a.FunctionID}
	}

	var args value.Value
	switch a.Parameters.Kind() {
	case value.KindObject:
		fields, _ := a.Parameters.Object()
		evaluated := make(map[string]value.Value, len(fields))
		for name, node := range fields {
			v, err := d.evaluate(node, ctx)
			if err != nil {
				return value.Value{}, err
			}
			evaluated[name] = v
		}
		args = value.NewObject(evaluated)
	case value.KindArray:
		items, _ := a.Parameters.Array()
		evaluated := make([]value.Value, 0, len(items))
		for _, node := range items {
			v, err := d.evaluate(node, ctx)
			if err != nil {
				return value.Value{}, err
			}
			evaluated = append(evaluated, v)
		}
		args = value.NewArray(evaluated)
	default:
		args = value.NewNull()
	}

	result, err := d.Functions.Call(a.FunctionID, args)
	if errors.Is(err, function.ErrUnknownFunction) {
		return value.Value{}, ActionError{Code: CodeUnknownFunction, Message: a.FunctionID}
	}
	if err != nil {
		return value.Value{}, ActionError{Code: CodeFunctionFailed, Message: err.Error()}
	}
	return result, nil
}

func toActionError(index int, err error) ActionError {
	var aerr ActionError
	if !errors.As(err, &aerr) {
		aerr = ActionError{Code: CodeFunctionFailed, Message: err.Error()}
	}
	aerr.ActionIndex = index
	return aerr
}
