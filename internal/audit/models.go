package audit

import (
	"encoding/json"
	"time"

	"github.com/acted/rules-engine/pkg/value"
)

// RuleEntry is the trace of one rule evaluated during an execution
type RuleEntry struct {
	RuleCode         string   `json:"rule_id"`
	RuleVersion      int64    `json:"rule_version"`
	Priority         int      `json:"priority"`
	ConditionResult  bool     `json:"condition_result"`
	ActionsCompleted []string `json:"actions_completed"`
	StopProcessing   bool     `json:"stop_processing"`
	Status           string   `json:"status"`
}

// ErrorDetail is a structured error raised during an execution
type ErrorDetail struct {
	RuleCode    string `json:"rule_code,omitempty"`
	Kind        string `json:"kind"`
	ActionIndex *int   `json:"action_index,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	Message     string `json:"message"`
}

// Record is the audit row of one engine execution. It is created once and never updated.
type Record struct {
	ExecutionID     string      `json:"execution_id"`
	EntryPoint      string      `json:"entry_point"`
	RuleCode        string      `json:"rule_code"`
	RuleVersion     int64       `json:"rule_version"`
	ConditionResult bool        `json:"condition_result"`
	InputContext    value.Value `json:"input_context"`
	// OutputData is the JSON encoded execution result
	OutputData      json.RawMessage `json:"output_data"`
	ActionsExecuted []RuleEntry     `json:"actions_executed"`

	DurationMs                float64 `json:"duration_ms"`
	ConditionEvaluationTimeMs float64 `json:"condition_evaluation_time_ms"`
	TemplateRenderTimeMs      float64 `json:"template_render_time_ms"`
	ActionExecutionTimeMs     float64 `json:"action_execution_time_ms"`

	Success      bool          `json:"success"`
	Truncated    bool          `json:"truncated"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorDetails []ErrorDetail `json:"error_details,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
