package handler

import (
	"net/http"

	"github.com/acted/rules-engine/pkg/utils/httputil"
)

// IsAlive godoc
//
//	@Id				IsAlive
//
//	@Summary		Check if alive
//	@Description	allows to check if the API is alive
//	@Tags			System
//	@Produce		json
//	@Success		200	"Status OK"
//	@Router			/health [get]
func IsAlive(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, r, map[string]interface{}{"alive": true})
}
