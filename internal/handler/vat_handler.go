package handler

import (
	"errors"
	"net/http"

	"github.com/acted/rules-engine/internal/engine"
	"github.com/acted/rules-engine/internal/vat"
	"github.com/acted/rules-engine/pkg/utils/httputil"
	"github.com/acted/rules-engine/pkg/value"
	"go.uber.org/zap"
)

// CartVAT is the response of a cart VAT calculation
type CartVAT struct {
	Context value.Value `json:"context"`
	VAT     vat.Summary `json:"vat"`
}

// CalculateCartVAT godoc
//
//	@Id				CalculateCartVAT
//
//	@Summary		Compute the VAT of a cart
//	@Description	Resolve the VAT region of the customer, then compute the VAT of every cart line
//	@Tags			VAT
//	@Accept			json
//	@Produce		json
//	@Param			context	body	object	true	"Checkout context with user and cart"
//	@Success		200	{object}	handler.CartVAT	"updated context and VAT breakdown"
//	@Failure		400	"bad request - invalid cart"
//	@Failure		422	"the VAT rules could not price the cart"
//	@Failure		503	"rule engine unavailable"
//	@Router			/vat/cart [post]
func CalculateCartVAT(w http.ResponseWriter, r *http.Request) {
	input, err := decodeContext(r)
	if err != nil {
		zap.L().Warn("Decode checkout context", zap.Error(err))
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

	out, summary, err := vat.NewCalculator(e).Calculate(r.Context(), input)
	switch {
	case errors.Is(err, vat.ErrInvalidCart), errors.Is(err, vat.ErrInvalidAmount):
		zap.L().Warn("Invalid cart", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIResourceInvalid, err)
		return
	case err != nil:
		zap.L().Error("Cart VAT calculation", zap.Strings("executions", summary.ExecutionIDs), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPICalculationFailed, err)
		return
	}

	httputil.JSON(w, r, CartVAT{Context: out, VAT: summary})
}
