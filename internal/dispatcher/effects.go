package dispatcher

import (
	"github.com/acted/rules-engine/internal/messagetemplate"
	"github.com/acted/rules-engine/pkg/value"
)

// Message kinds
const (
	KindMessage = "message"
	KindModal   = "modal"
)

// Error codes of failed actions
const (
	CodeTemplateNotFound     = "template_not_found"
	CodeTemplateRenderFailed = "template_render_failed"
	CodeUnknownFunction      = "unknown_function"
	CodeFunctionFailed       = "function_failed"
	CodeInvalidTarget        = "invalid_target"
	CodeInvalidValue         = "invalid_value"
	CodeUnsupportedAction    = "unsupported_action"
)

// ActionError describes an action that could not be executed
type ActionError struct {
	ActionIndex int    `json:"action_index"`
	Code        string `json:"error_code"`
	Message     string `json:"message"`
}

func (e ActionError) Error() string {
	return e.Code + ": " + e.Message
}

// Message is a message or modal effect
type Message struct {
	Kind         string                    `json:"kind"`
	RuleCode     string                    `json:"rule_code"`
	TemplateName string                    `json:"templateName"`
	Placement    string                    `json:"placement,omitempty"`
	Priority     string                    `json:"priority,omitempty"`
	Dismissible  bool                      `json:"dismissible"`
	Size         string                    `json:"size,omitempty"`
	Blocking     bool                      `json:"blocking,omitempty"`
	Backdrop     string                    `json:"backdrop,omitempty"`
	Content      *messagetemplate.Rendered `json:"content,omitempty"`
}

// Acknowledgment is a required acknowledgment or a preference prompt
type Acknowledgment struct {
	RuleCode     string                    `json:"rule_code"`
	AckKey       string                    `json:"ackKey"`
	Scope        string                    `json:"scope"`
	Required     bool                      `json:"required"`
	TemplateName string                    `json:"templateName,omitempty"`
	Content      *messagetemplate.Rendered `json:"content,omitempty"`
}

// ContextUpdate records one mutation of the context
type ContextUpdate struct {
	RuleCode string      `json:"rule_code"`
	Path     string      `json:"path"`
	OldValue value.Value `json:"old_value"`
	NewValue value.Value `json:"new_value"`
}

// Effects are accumulated across the rules of one execution
type Effects struct {
	Messages                []Message        `json:"messages"`
	RequiredAcknowledgments []Acknowledgment `json:"required_acknowledgments"`
	PreferencePrompts       []Acknowledgment `json:"preference_prompts"`
	ContextUpdates          []ContextUpdate  `json:"context_updates"`
}

// NewEffects returns empty effect lists, encoded as [] rather than null
func NewEffects() *Effects {
	return &Effects{
		Messages:                make([]Message, 0),
		RequiredAcknowledgments: make([]Acknowledgment, 0),
		PreferencePrompts:       make([]Acknowledgment, 0),
		ContextUpdates:          make([]ContextUpdate, 0),
	}
}

// Blocked is true when at least one required acknowledgment is missing
func (e *Effects) Blocked() bool {
	return len(e.RequiredAcknowledgments) > 0
}
