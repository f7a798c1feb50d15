package engine

import (
	"encoding/json"
	"time"

	"github.com/acted/rules-engine/internal/dispatcher"
	"github.com/acted/rules-engine/internal/schema"
	"github.com/acted/rules-engine/pkg/value"
)

// ErrorKind classifies the errors an execution converts into data
type ErrorKind string

// Error kinds
const (
	ErrorSchemaValidation    ErrorKind = "schema_validation"
	ErrorConditionEvaluation ErrorKind = "condition_evaluation"
	ErrorActionExecution     ErrorKind = "action_execution"
	ErrorCacheLoad           ErrorKind = "cache_load"
	ErrorDeadlineExceeded    ErrorKind = "deadline_exceeded"
	ErrorInternal            ErrorKind = "internal"
)

// Rule statuses
const (
	StatusFired      = "fired"
	StatusNotMatched = "not_matched"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// RuleError is the error recorded on a rule entry
type RuleError struct {
	Kind       ErrorKind                `json:"kind"`
	Message    string                   `json:"message"`
	Violations []schema.Violation       `json:"violations,omitempty"`
	Actions    []dispatcher.ActionError `json:"actions,omitempty"`
}

// RuleExecution is the trace of one rule of the snapshot
type RuleExecution struct {
	RuleCode         string     `json:"rule_id"`
	RuleVersion      int64      `json:"rule_version"`
	Priority         int        `json:"priority"`
	ConditionResult  bool       `json:"condition_result"`
	ActionsCompleted []string   `json:"actions_completed"`
	StopProcessing   bool       `json:"stop_processing"`
	Status           string     `json:"status"`
	Error            *RuleError `json:"error,omitempty"`

	conditionTime time.Duration
	renderTime    time.Duration
	actionTime    time.Duration
}

// Result is the aggregated outcome of an execution
type Result struct {
	ExecutionID string `json:"execution_id"`
	EntryPoint  string `json:"entry_point"`
	Success     bool   `json:"success"`
	Blocked     bool   `json:"blocked"`
	Proceed     bool   `json:"proceed"`

	RequiredAcknowledgments []dispatcher.Acknowledgment `json:"required_acknowledgments"`
	PreferencePrompts       []dispatcher.Acknowledgment `json:"preference_prompts"`
	Messages                []dispatcher.Message        `json:"messages"`
	// ContextUpdates maps every updated path to its final value
	ContextUpdates map[string]value.Value `json:"context_updates"`
	// Mutations lists every update in execution order
	Mutations     []dispatcher.ContextUpdate `json:"context_mutations"`
	RulesExecuted []RuleExecution            `json:"rules_executed"`

	// Context is the context after every update
	Context value.Value `json:"-"`

	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Truncated    bool      `json:"truncated,omitempty"`

	ExecutionTimeMs float64   `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

func newResult(id string, entryPoint string, createdAt time.Time) *Result {
	return &Result{
		ExecutionID:             id,
		EntryPoint:              entryPoint,
		Success:                 true,
		Proceed:                 true,
		RequiredAcknowledgments: make([]dispatcher.Acknowledgment, 0),
		PreferencePrompts:       make([]dispatcher.Acknowledgment, 0),
		Messages:                make([]dispatcher.Message, 0),
		ContextUpdates:          make(map[string]value.Value),
		Mutations:               make([]dispatcher.ContextUpdate, 0),
		RulesExecuted:           make([]RuleExecution, 0),
		CreatedAt:               createdAt,
	}
}

// Fired returns the codes of the rules whose condition matched, in execution order
func (r *Result) Fired() []string {
	fired := make([]string, 0)
	for _, e := range r.RulesExecuted {
		if e.ConditionResult {
			fired = append(fired, e.RuleCode)
		}
	}
	return fired
}

// encode returns the JSON form stored as audit output data
func (r *Result) encode() json.RawMessage {
	b, err := json.Marshal(r)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return b
}
