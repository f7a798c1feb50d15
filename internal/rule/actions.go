package rule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/acted/rules-engine/pkg/value"
)

// ActionType is the discriminant of an action document
type ActionType string

// Supported action types
const (
	TypeDisplayMessage  ActionType = "display_message"
	TypeDisplayModal    ActionType = "display_modal"
	TypeUserAcknowledge ActionType = "user_acknowledge"
	TypeUserPreference  ActionType = "user_preference"
	TypeUpdate          ActionType = "update"
	TypeStop            ActionType = "stop"
)

// Acknowledgment scopes
const (
	ScopePerUser    = "per_user"
	ScopePerOrder   = "per_order"
	ScopePerSession = "per_session"
)

// Update operations
const (
	OperationSet       = "set"
	OperationIncrement = "increment"
	OperationDecrement = "decrement"
	OperationAppend    = "append"
	OperationFunction  = "function"
)

// ErrUnknownActionType is returned when decoding an action with an unsupported type tag
var ErrUnknownActionType = errors.New("unknown action type")

// Action is one of DisplayMessage, DisplayModal, UserAcknowledge, UserPreference, Update or Stop
type Action interface {
	Type() ActionType
	Validate() error
}

// DisplayMessage emits a non blocking message referencing a template
type DisplayMessage struct {
	TemplateName string `json:"templateName"`
	Placement    string `json:"placement"`
	Priority     string `json:"priority,omitempty"`
	Dismissible  bool   `json:"dismissible,omitempty"`
}

func (a DisplayMessage) Type() ActionType { return TypeDisplayMessage }

func (a DisplayMessage) Validate() error {
	if a.TemplateName == "" {
		return errors.New("display_message: missing templateName")
	}
	return nil
}

// DisplayModal emits a modal referencing a template. Blocking is a UI hint only.
type DisplayModal struct {
	TemplateName string `json:"templateName"`
	Size         string `json:"size,omitempty"`
	Blocking     bool   `json:"blocking,omitempty"`
	Backdrop     string `json:"backdrop,omitempty"`
	Dismissible  bool   `json:"dismissible,omitempty"`
}

func (a DisplayModal) Type() ActionType { return TypeDisplayModal }

func (a DisplayModal) Validate() error {
	if a.TemplateName == "" {
		return errors.New("display_modal: missing templateName")
	}
	return nil
}

// UserAcknowledge requires the caller to accept ackKey; unaccepted keys block the outcome
type UserAcknowledge struct {
	AckKey       string `json:"ackKey"`
	Scope        string `json:"scope,omitempty"`
	TemplateName string `json:"templateName,omitempty"`
	Required     bool   `json:"required"`
}

func (a UserAcknowledge) Type() ActionType { return TypeUserAcknowledge }

func (a UserAcknowledge) Validate() error {
	return validateAck("user_acknowledge", a.AckKey, a.Scope)
}

// UserPreference is a non blocking acknowledgment prompt
type UserPreference struct {
	AckKey       string `json:"ackKey"`
	Scope        string `json:"scope,omitempty"`
	TemplateName string `json:"templateName,omitempty"`
}

func (a UserPreference) Type() ActionType { return TypeUserPreference }

func (a UserPreference) Validate() error {
	return validateAck("user_preference", a.AckKey, a.Scope)
}

func validateAck(kind, key, scope string) error {
	if key == "" {
		return fmt.Errorf("%s: missing ackKey", kind)
	}
	switch scope {
	case "", ScopePerUser, ScopePerOrder, ScopePerSession:
		return nil
	default:
		return fmt.Errorf("%s: invalid scope %q", kind, scope)
	}
}

// Update mutates the context at Target. Value and Parameters are predicate nodes
// evaluated against the current context.
type Update struct {
	Target     string      `json:"target"`
	Operation  string      `json:"operation"`
	Value      value.Value `json:"value,omitempty"`
	FunctionID string      `json:"functionId,omitempty"`
	Parameters value.Value `json:"parameters,omitempty"`
}

func (a Update) Type() ActionType { return TypeUpdate }

// MarshalJSON omits absent value and parameters
func (a Update) MarshalJSON() ([]byte, error) {
	type encoded struct {
		Target     string       `json:"target"`
		Operation  string       `json:"operation"`
		Value      *value.Value `json:"value,omitempty"`
		FunctionID string       `json:"functionId,omitempty"`
		Parameters *value.Value `json:"parameters,omitempty"`
	}
	out := encoded{Target: a.Target, Operation: a.Operation, FunctionID: a.FunctionID}
	if !a.Value.IsMissing() {
		out.Value = &a.Value
	}
	if !a.Parameters.IsMissing() {
		out.Parameters = &a.Parameters
	}
	return json.Marshal(out)
}

func (a Update) Validate() error {
	if !value.ValidPath(a.Target) {
		return fmt.Errorf("update: invalid target path %q", a.Target)
	}
	switch a.Operation {
	case OperationSet, OperationIncrement, OperationDecrement, OperationAppend:
		if a.Value.IsMissing() {
			return fmt.Errorf("update: operation %s on %s requires a value", a.Operation, a.Target)
		}
	case OperationFunction:
		if a.FunctionID == "" {
			return fmt.Errorf("update: function operation on %s requires a functionId", a.Target)
		}
		switch a.Parameters.Kind() {
		case value.KindMissing, value.KindNull, value.KindObject, value.KindArray:
		default:
			return fmt.Errorf("update: parameters of %s must be an object or an array", a.FunctionID)
		}
	default:
		return fmt.Errorf("update: unknown operation %q", a.Operation)
	}
	return nil
}

// Stop short-circuits the remaining actions of the rule
type Stop struct{}

func (a Stop) Type() ActionType { return TypeStop }

func (a Stop) Validate() error { return nil }

// ActionList is an ordered list of actions, decoded on the "type" tag
type ActionList []Action

// UnmarshalJSON decodes every action; an unknown type is an error
func (l *ActionList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(ActionList, 0, len(raws))
	for i, raw := range raws {
		action, err := decodeAction(raw)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, action)
	}
	*l = out
	return nil
}

func decodeAction(raw json.RawMessage) (Action, error) {
	var head struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case TypeDisplayMessage:
		var a DisplayMessage
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeDisplayModal:
		var a DisplayModal
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeUserAcknowledge:
		var a struct {
			UserAcknowledge
			Required *bool `json:"required"`
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.Required != nil && !*a.Required {
			return UserPreference{AckKey: a.AckKey, Scope: a.Scope, TemplateName: a.TemplateName}, nil
		}
		a.UserAcknowledge.Required = true
		return a.UserAcknowledge, nil
	case TypeUserPreference:
		var a UserPreference
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeUpdate:
		var a Update
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeStop:
		return Stop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, head.Type)
	}
}

// MarshalJSON writes every action with its "type" tag
func (l ActionList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, action := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalAction(action)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalAction encodes a single action with its "type" tag
func MarshalAction(action Action) ([]byte, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(action.Type())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}
