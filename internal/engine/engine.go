package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acted/rules-engine/internal/audit"
	"github.com/acted/rules-engine/internal/dispatcher"
	"github.com/acted/rules-engine/internal/metrics"
	"github.com/acted/rules-engine/internal/predicate"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/internal/ruleset"
	"github.com/acted/rules-engine/internal/schema"
	"github.com/acted/rules-engine/pkg/value"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source provides the rule set snapshot of an entry point
type Source interface {
	Get(entryPoint string) (ruleset.Snapshot, error)
}

// Engine runs the active rules of an entry point against a context
type Engine struct {
	source     Source
	dispatcher *dispatcher.Dispatcher
	evaluator  *predicate.Evaluator
	recorder   audit.Recorder
	timeout    time.Duration
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithTimeout bounds every execution which has no earlier deadline
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.timeout = timeout }
}

// WithEvaluator replaces the default predicate evaluator
func WithEvaluator(evaluator *predicate.Evaluator) Option {
	return func(e *Engine) { e.evaluator = evaluator }
}

// WithClock replaces the clock used for created_at
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns a new Engine
func New(source Source, d *dispatcher.Dispatcher, recorder audit.Recorder, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		dispatcher: d,
		evaluator:  predicate.Default,
		recorder:   recorder,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher != nil && e.dispatcher.Evaluator == nil {
		e.dispatcher.Evaluator = e.evaluator
	}
	return e
}

var (
	_globalEngineMu sync.RWMutex
	_globalEngine   *Engine
)

// E is used to access the global engine singleton
func E() *Engine {
	_globalEngineMu.RLock()
	defer _globalEngineMu.RUnlock()

	engine := _globalEngine
	return engine
}

// ReplaceGlobals affect a new engine to the global engine singleton
func ReplaceGlobals(engine *Engine) func() {
	_globalEngineMu.Lock()
	defer _globalEngineMu.Unlock()

	prev := _globalEngine
	_globalEngine = engine
	return func() { ReplaceGlobals(prev) }
}

// Execute runs the active rules of entryPoint, in order, against a copy of input.
// It never panics and never returns an error: every failure is reported in the result
// and in the execution record handed to the recorder.
func (e *Engine) Execute(ctx context.Context, entryPoint string, input value.Value) (res *Result) {
	start := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}
	res = newResult(uuid.NewString(), entryPoint, e.now().UTC())
	snapshot := input.Clone()
	working := input.Clone()
	if working.IsNull() {
		working = value.NewObject(nil)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("Rule engine execution panicked", zap.String("entryPoint", entryPoint),
				zap.String("executionID", res.ExecutionID), zap.Any("panic", p), zap.Stack("stack"))
			res.Success = false
			res.ErrorKind = ErrorInternal
			res.ErrorMessage = fmt.Sprint(p)
		}
		res.Context = working
		e.finish(res, snapshot, time.Since(start))
	}()

	e.run(ctx, res, &working)
	return res
}

func (e *Engine) run(ctx context.Context, res *Result, working *value.Value) {
	if e.source == nil {
		e.fail(res, ErrorCacheLoad, &ruleset.CacheLoadError{EntryPoint: res.EntryPoint, Err: ruleset.ErrNoRepository})
		return
	}
	snap, err := e.source.Get(res.EntryPoint)
	if err != nil {
		e.fail(res, ErrorCacheLoad, err)
		return
	}

	effects := dispatcher.NewEffects()
	defer collect(res, effects)
	for i, r := range snap.Rules {
		if err := ctx.Err(); err != nil {
			res.Truncated = true
			e.fail(res, ErrorDeadlineExceeded, fmt.Errorf("%w after %d of %d rules", err, i, len(snap.Rules)))
			break
		}

		exec := RuleExecution{
			RuleCode:         r.Code,
			RuleVersion:      r.Version,
			Priority:         r.Priority,
			StopProcessing:   r.StopProcessing,
			ActionsCompleted: make([]string, 0),
		}

		if r.FieldsCode != "" {
			if rerr := validate(snap.Schemas[r.FieldsCode], r.FieldsCode, *working); rerr != nil {
				exec.Status = StatusSkipped
				exec.Error = rerr
				zap.L().Warn("Rule skipped, context does not match its schema", zap.String("entryPoint", res.EntryPoint),
					zap.String("rule", r.Code), zap.String("schema", r.FieldsCode), zap.String("error", rerr.Message))
				res.RulesExecuted = append(res.RulesExecuted, exec)
				continue
			}
		}

		t0 := time.Now()
		matched, err := e.evaluator.Match(r.Condition, *working)
		exec.conditionTime = time.Since(t0)
		if err != nil {
			exec.Status = StatusFailed
			exec.Error = &RuleError{Kind: ErrorConditionEvaluation, Message: err.Error()}
			zap.L().Warn("Rule condition evaluation failed", zap.String("entryPoint", res.EntryPoint),
				zap.String("rule", r.Code), zap.Error(err))
			res.RulesExecuted = append(res.RulesExecuted, exec)
			continue
		}
		if !matched {
			exec.Status = StatusNotMatched
			res.RulesExecuted = append(res.RulesExecuted, exec)
			continue
		}

		exec.ConditionResult = true
		exec.Status = StatusFired
		metrics.RulesFired.WithLabelValues(res.EntryPoint, r.Code).Inc()

		outcome, perr := e.dispatch(r, working, effects)
		if perr != nil {
			exec.Status = StatusFailed
			exec.Error = &RuleError{Kind: ErrorInternal, Message: perr.Error()}
			res.ErrorKind = ErrorInternal
			res.ErrorMessage = perr.Error()
			res.RulesExecuted = append(res.RulesExecuted, exec)
			continue
		}
		exec.ActionsCompleted = outcome.ActionsCompleted
		exec.renderTime = outcome.TemplateRenderTime
		exec.actionTime = outcome.ActionExecutionTime
		if len(outcome.Errors) > 0 {
			exec.Error = &RuleError{
				Kind:    ErrorActionExecution,
				Message: fmt.Sprintf("%d of %d actions failed", len(outcome.Errors), len(r.Actions)),
				Actions: outcome.Errors,
			}
		}
		res.RulesExecuted = append(res.RulesExecuted, exec)

		if r.StopProcessing {
			break
		}
	}
}

// dispatch runs the actions of a fired rule, converting a panic into an error of that rule
func (e *Engine) dispatch(r rule.Rule, working *value.Value, effects *dispatcher.Effects) (outcome dispatcher.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("Rule actions panicked", zap.String("rule", r.Code), zap.Any("panic", p), zap.Stack("stack"))
			err = fmt.Errorf("%v", p)
		}
	}()
	return e.dispatcher.Dispatch(r, working, effects), nil
}

// collect copies the effects gathered so far into the result, including after a panic
func collect(res *Result, effects *dispatcher.Effects) {
	res.Messages = effects.Messages
	res.RequiredAcknowledgments = effects.RequiredAcknowledgments
	res.PreferencePrompts = effects.PreferencePrompts
	res.Mutations = effects.ContextUpdates
	for _, u := range effects.ContextUpdates {
		res.ContextUpdates[u.Path] = u.NewValue
	}
}

func validate(cs *schema.Compiled, code string, ctx value.Value) *RuleError {
	if cs == nil {
		return &RuleError{Kind: ErrorSchemaValidation, Message: fmt.Sprintf("%s: %s", schema.ErrUnknownSchema, code)}
	}
	err := cs.Validate(ctx)
	if err == nil {
		return nil
	}
	rerr := &RuleError{Kind: ErrorSchemaValidation, Message: err.Error()}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		rerr.Violations = verr.Violations
	}
	return rerr
}

func (e *Engine) fail(res *Result, kind ErrorKind, err error) {
	res.Success = false
	res.ErrorKind = kind
	res.ErrorMessage = err.Error()
	zap.L().Error("Rule engine execution failed", zap.String("entryPoint", res.EntryPoint),
		zap.String("executionID", res.ExecutionID), zap.String("kind", string(kind)), zap.Error(err))
}

func (e *Engine) finish(res *Result, input value.Value, elapsed time.Duration) {
	failed := 0
	for _, exec := range res.RulesExecuted {
		if exec.Error != nil {
			failed++
		}
	}
	if failed > 0 {
		res.Success = false
		if res.ErrorMessage == "" {
			res.ErrorMessage = fmt.Sprintf("%d rules reported an error", failed)
		}
	}
	res.Blocked = len(res.RequiredAcknowledgments) > 0
	res.Proceed = !res.Blocked
	res.ExecutionTimeMs = milliseconds(elapsed)

	outcome := metrics.OutcomeProceed
	switch {
	case !res.Success:
		outcome = metrics.OutcomeFailed
	case res.Blocked:
		outcome = metrics.OutcomeBlocked
	}
	metrics.Executions.WithLabelValues(res.EntryPoint, outcome).Inc()
	metrics.ExecutionDuration.WithLabelValues(res.EntryPoint).Observe(elapsed.Seconds())

	if e.recorder != nil {
		e.recorder.Record(newRecord(res, input))
	}
}

func newRecord(res *Result, input value.Value) audit.Record {
	rec := audit.Record{
		ExecutionID:     res.ExecutionID,
		EntryPoint:      res.EntryPoint,
		InputContext:    input,
		OutputData:      res.encode(),
		ActionsExecuted: make([]audit.RuleEntry, 0, len(res.RulesExecuted)),
		DurationMs:      res.ExecutionTimeMs,
		Success:         res.Success,
		Truncated:       res.Truncated,
		ErrorMessage:    res.ErrorMessage,
		CreatedAt:       res.CreatedAt,
	}

	var conditionTime, renderTime, actionTime time.Duration
	for _, exec := range res.RulesExecuted {
		rec.ActionsExecuted = append(rec.ActionsExecuted, audit.RuleEntry{
			RuleCode:         exec.RuleCode,
			RuleVersion:      exec.RuleVersion,
			Priority:         exec.Priority,
			ConditionResult:  exec.ConditionResult,
			ActionsCompleted: exec.ActionsCompleted,
			StopProcessing:   exec.StopProcessing,
			Status:           exec.Status,
		})
		conditionTime += exec.conditionTime
		renderTime += exec.renderTime
		actionTime += exec.actionTime

		if exec.ConditionResult {
			rec.RuleCode = exec.RuleCode
			rec.RuleVersion = exec.RuleVersion
			rec.ConditionResult = true
		}
		if exec.Error == nil {
			continue
		}
		if len(exec.Error.Actions) == 0 {
			rec.ErrorDetails = append(rec.ErrorDetails, audit.ErrorDetail{
				RuleCode: exec.RuleCode, Kind: string(exec.Error.Kind), Message: exec.Error.Message,
			})
		}
		for _, aerr := range exec.Error.Actions {
			index := aerr.ActionIndex
			rec.ErrorDetails = append(rec.ErrorDetails, audit.ErrorDetail{
				RuleCode:    exec.RuleCode,
				Kind:        string(exec.Error.Kind),
				ActionIndex: &index,
				ErrorCode:   aerr.Code,
				Message:     aerr.Message,
			})
		}
	}
	if res.ErrorKind != "" {
		rec.ErrorDetails = append(rec.ErrorDetails, audit.ErrorDetail{Kind: string(res.ErrorKind), Message: res.ErrorMessage})
	}

	rec.ConditionEvaluationTimeMs = milliseconds(conditionTime)
	rec.TemplateRenderTimeMs = milliseconds(renderTime)
	rec.ActionExecutionTimeMs = milliseconds(actionTime)
	return rec
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
