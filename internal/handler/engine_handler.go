package handler

import (
	"errors"
	"net/http"

	"github.com/acted/rules-engine/internal/engine"
	"github.com/acted/rules-engine/pkg/utils/httputil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExecuteEntryPoint godoc
//
//	@Id				ExecuteEntryPoint
//
//	@Summary		Run the rules of an entry point
//	@Description	Run every active rule of an entry point against the provided context.
//	@Description	Rule failures are reported in the result, the call itself only fails on invalid input.
//	@Tags			Engine
//	@Accept			json
//	@Produce		json
//	@Param			entryPoint	path	string	true	"Entry point"
//	@Param			context		body	object	true	"Execution context"
//	@Success		200	{object}	engine.Result	"execution result"
//	@Failure		400	"bad request - invalid context"
//	@Failure		503	"rule engine unavailable"
//	@Router			/engine/{entryPoint} [post]
func ExecuteEntryPoint(w http.ResponseWriter, r *http.Request) {
	entryPoint := chi.URLParam(r, "entryPoint")

	input, err := decodeContext(r)
	if err != nil {
		zap.L().Warn("Decode execution context", zap.String("entryPoint", entryPoint), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDecodeJSONBody, err)
		return
	}

	subject := subjectOf(r, input)
	if err := injectAcknowledgments(&input, subject); err != nil {
		zap.L().Error("Get acknowledgments", zap.String("user", subject.UserID), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}

	e := engine.E()
	if e == nil {
		httputil.Error(w, r, httputil.ErrAPIEngineUnavailable, errors.New("rule engine not initialized"))
		return
	}

	res := e.Execute(r.Context(), entryPoint, input)
	if res.ErrorKind == engine.ErrorCacheLoad {
		zap.L().Error("Rule set unavailable", zap.String("entryPoint", entryPoint), zap.String("error", res.ErrorMessage))
	}

	httputil.JSON(w, r, res)
}
