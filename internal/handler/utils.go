package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/acted/rules-engine/internal/acknowledgment"
	"github.com/acted/rules-engine/internal/models"
	"github.com/acted/rules-engine/pkg/value"
)

const maxBodySize = 1 << 20

var errContextNotObject = errors.New("the request body must be a JSON object")

// GetSubjectFromContext returns the caller identity stored by the router
func GetSubjectFromContext(r *http.Request) (acknowledgment.Subject, bool) {
	subject, ok := r.Context().Value(models.ContextKeySubject).(acknowledgment.Subject)
	return subject, ok
}

// decodeContext reads the request body as an engine context, keeping every number exact
func decodeContext(r *http.Request) (value.Value, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return value.Missing, err
	}
	input, err := value.Parse(data)
	if err != nil {
		return value.Missing, err
	}
	if input.Kind() != value.KindObject {
		return value.Missing, errContextNotObject
	}
	return input, nil
}

// subjectOf identifies the caller, the context user.id being used when no gateway header is set
func subjectOf(r *http.Request, input value.Value) acknowledgment.Subject {
	subject, _ := GetSubjectFromContext(r)
	if subject.UserID == "" {
		if id, ok := input.Get("user.id").Str(); ok {
			subject.UserID = id
		}
	}
	return subject
}

// injectAcknowledgments merges the stored decisions of the caller into context.acknowledgments
func injectAcknowledgments(input *value.Value, subject acknowledgment.Subject) error {
	if acknowledgment.R() == nil || (subject.UserID == "" && subject.SessionID == "") {
		return nil
	}
	decisions, err := acknowledgment.R().GetActive(subject)
	if err != nil {
		return err
	}
	return acknowledgment.Inject(input, decisions)
}
