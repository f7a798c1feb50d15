package messagetemplate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/acted/rules-engine/pkg/value"
)

var (
	// ErrTemplateNotFound is returned when an action references an unknown template name
	ErrTemplateNotFound = errors.New("template not found")
	// ErrRenderFailed is returned when a placeholder expression cannot be evaluated
	ErrRenderFailed = errors.New("template render failed")
)

// Message types
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"
)

// Button is an optional call to action rendered with a message
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Template is an inert, named message payload referenced by display actions
type Template struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	MessageType string   `json:"message_type"`
	Buttons     []Button `json:"buttons,omitempty"`
	Variables   []string `json:"variables,omitempty"`
}

// IsValid checks if a template definition is valid and has no missing mandatory fields
func (t Template) IsValid() (bool, error) {
	if t.Name == "" {
		return false, errors.New("missing name")
	}
	switch t.MessageType {
	case "", TypeInfo, TypeSuccess, TypeWarning, TypeError:
	default:
		return false, fmt.Errorf("invalid message_type %q", t.MessageType)
	}
	return true, nil
}

// Rendered is a template with every placeholder replaced
type Rendered struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	MessageType string   `json:"message_type"`
	Buttons     []Button `json:"buttons,omitempty"`
}

var placeholder = regexp.MustCompile(`\{\{\s*(.+?)\s*\}\}`)

// Render replaces {{ expression }} placeholders using the context as parameters
func (t Template) Render(ctx value.Value) (Rendered, error) {
	params := ctx.Interface()
	if params == nil {
		params = map[string]interface{}{}
	}
	out := Rendered{Name: t.Name, MessageType: t.MessageType}
	if out.MessageType == "" {
		out.MessageType = TypeInfo
	}
	var err error
	if out.Title, err = render(t.Title, params); err != nil {
		return Rendered{}, err
	}
	if out.Body, err = render(t.Body, params); err != nil {
		return Rendered{}, err
	}
	for _, b := range t.Buttons {
		label, err := render(b.Label, params)
		if err != nil {
			return Rendered{}, err
		}
		out.Buttons = append(out.Buttons, Button{Label: label, Action: b.Action})
	}
	return out, nil
}

func render(text string, params interface{}) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	var renderErr error
	out := placeholder.ReplaceAllStringFunc(text, func(match string) string {
		if renderErr != nil {
			return match
		}
		expr := placeholder.FindStringSubmatch(match)[1]
		result, err := gval.Evaluate(expr, params)
		if err != nil {
			renderErr = fmt.Errorf("%w: %q: %s", ErrRenderFailed, expr, err)
			return match
		}
		if result == nil {
			return ""
		}
		return fmt.Sprint(result)
	})
	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}
