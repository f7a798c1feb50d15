package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/acted/rules-engine/internal/acknowledgment"
	"github.com/acted/rules-engine/pkg/utils/httputil"
	"go.uber.org/zap"
)

// PostAcknowledgment godoc
//
//	@Id				PostAcknowledgment
//
//	@Summary		Store an acknowledgment decision
//	@Description	Store the decision of the caller on an acknowledgment key.
//	@Description	The user and session come from the gateway headers when present.
//	@Tags			Acknowledgments
//	@Accept			json
//	@Produce		json
//	@Param			decision	body	acknowledgment.Decision	true	"Decision"
//	@Success		200	{object}	acknowledgment.Decision	"stored decision"
//	@Failure		400	"bad request - invalid decision"
//	@Failure		500	"internal server error"
//	@Router			/acknowledgments [post]
func PostAcknowledgment(w http.ResponseWriter, r *http.Request) {
	var d acknowledgment.Decision
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		zap.L().Warn("Decode acknowledgment", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDecodeJSONBody, err)
		return
	}

	if subject, ok := GetSubjectFromContext(r); ok {
		if subject.UserID != "" {
			d.UserID = subject.UserID
		}
		if subject.SessionID != "" {
			d.SessionID = subject.SessionID
		}
	}
	d.ID = 0
	d.Consumed = false

	if ok, err := d.IsValid(); !ok {
		zap.L().Warn("Invalid acknowledgment", zap.String("ackKey", d.AckKey), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIResourceInvalid, err)
		return
	}

	if acknowledgment.R() == nil {
		httputil.Error(w, r, httputil.ErrAPIProcessError, errors.New("acknowledgment repository not initialized"))
		return
	}
	id, err := acknowledgment.R().Save(d)
	if err != nil {
		zap.L().Error("Save acknowledgment", zap.String("ackKey", d.AckKey), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBInsertFailed, err)
		return
	}
	d.ID = id

	httputil.JSON(w, r, d)
}

// ConsumeOrderAcknowledgments godoc
//
//	@Id				ConsumeOrderAcknowledgments
//
//	@Summary		Consume the per-order acknowledgments of the caller
//	@Description	Called once the order is placed, so that the next order asks again
//	@Tags			Acknowledgments
//	@Produce		json
//	@Success		200	"number of consumed decisions"
//	@Failure		400	"bad request - no user or session"
//	@Failure		500	"internal server error"
//	@Router			/acknowledgments/consume [post]
func ConsumeOrderAcknowledgments(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubjectFromContext(r)
	if subject.UserID == "" && subject.SessionID == "" {
		httputil.Error(w, r, httputil.ErrAPIMissingParam, errors.New("missing user or session"))
		return
	}

	if acknowledgment.R() == nil {
		httputil.Error(w, r, httputil.ErrAPIProcessError, errors.New("acknowledgment repository not initialized"))
		return
	}
	consumed, err := acknowledgment.R().ConsumeOrder(subject)
	if err != nil {
		zap.L().Error("Consume order acknowledgments", zap.String("user", subject.UserID), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBUpdateFailed, err)
		return
	}

	httputil.JSON(w, r, map[string]interface{}{"consumed": consumed})
}
