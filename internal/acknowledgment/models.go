package acknowledgment

import (
	"errors"
	"fmt"
	"time"

	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/pkg/value"
)

// Decision is a user (or anonymous session) decision on an acknowledgment key
type Decision struct {
	ID        int64     `json:"id"`
	AckKey    string    `json:"ackKey"`
	Scope     string    `json:"scope"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Accepted  bool      `json:"accepted"`
	Consumed  bool      `json:"consumed"`
	CreatedAt time.Time `json:"created_at"`
}

// Subject identifies who decided: a user, an anonymous session, or both
type Subject struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// IsValid checks if a decision is valid and has no missing mandatory fields
func (d Decision) IsValid() (bool, error) {
	if d.AckKey == "" {
		return false, errors.New("missing ackKey")
	}
	switch d.Scope {
	case rule.ScopePerUser:
		if d.UserID == "" {
			return false, errors.New("a per_user decision needs a user_id")
		}
	case rule.ScopePerOrder:
		if d.UserID == "" && d.SessionID == "" {
			return false, errors.New("a per_order decision needs a user_id or a session_id")
		}
	case rule.ScopePerSession:
		if d.SessionID == "" {
			return false, errors.New("a per_session decision needs a session_id")
		}
	default:
		return false, fmt.Errorf("invalid scope %q", d.Scope)
	}
	return true, nil
}

// Concerns reports whether the decision applies to the subject
func (d Decision) Concerns(s Subject) bool {
	if d.Consumed {
		return false
	}
	switch d.Scope {
	case rule.ScopePerUser:
		return s.UserID != "" && d.UserID == s.UserID
	case rule.ScopePerSession:
		return s.SessionID != "" && d.SessionID == s.SessionID
	case rule.ScopePerOrder:
		return (s.UserID != "" && d.UserID == s.UserID) || (s.SessionID != "" && d.SessionID == s.SessionID)
	}
	return false
}

// Inject merges decisions into context.acknowledgments as {"accepted": bool, "scope": scope}.
// Entries already supplied by the caller are kept. The latest decision on a key wins.
func Inject(ctx *value.Value, decisions []Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	acks := ctx.Get("acknowledgments")
	supplied, _ := acks.Object()
	merged := make(map[string]value.Value, len(supplied)+len(decisions))
	latest := make(map[string]time.Time, len(decisions))
	for _, d := range decisions {
		if _, ok := supplied[d.AckKey]; ok {
			continue
		}
		if at, seen := latest[d.AckKey]; seen && at.After(d.CreatedAt) {
			continue
		}
		latest[d.AckKey] = d.CreatedAt
		merged[d.AckKey] = value.NewObject(map[string]value.Value{
			"accepted": value.NewBool(d.Accepted),
			"scope":    value.NewString(d.Scope),
		})
	}
	for k, v := range supplied {
		merged[k] = v
	}
	_, err := ctx.Set("acknowledgments", value.NewObject(merged))
	return err
}
