package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// APIError wraps all information required to investigate a backend error
// It is mainly used to returns information to the API caller when the status is not 2xx.
type APIError struct {
	RequestID string `json:"requestID"`
	Status    int    `json:"status"`
	ErrType   string `json:"type"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

var (
	// ErrAPIDecodeJSONBody must be used when a JSON decoding error occurs
	ErrAPIDecodeJSONBody = APIError{Status: http.StatusBadRequest, ErrType: "ParsingError", Code: 1000, Message: `Failed to parse the JSON body provided in the request`}
	// ErrAPIEncodeJSONBody must be used when a JSON encoding error occurs (mainly for `json.NewEncoder(w).Encode(myObject)`)
	ErrAPIEncodeJSONBody = APIError{Status: http.StatusBadRequest, ErrType: "ParsingError", Code: 1001, Message: `Failed to encode the JSON response`}

	// ErrAPIMissingParam must be used when a mandatory parameter is missing
	ErrAPIMissingParam = APIError{Status: http.StatusBadRequest, ErrType: "ResourceError", Code: 2000, Message: `Query has missing parameter and cannot be processed`}
	// ErrAPIResourceInvalid must be used when the provided resource is invalid from a "business view" (ie. the JSON is valid, but it's content is not)
	ErrAPIResourceInvalid = APIError{Status: http.StatusBadRequest, ErrType: "ResourceError", Code: 2001, Message: `Provided resource definition can be parsed, but is invalid`}

	// ErrAPIDBSelectFailed must be used when a select query returns an error from the backend storage system
	ErrAPIDBSelectFailed = APIError{Status: http.StatusInternalServerError, ErrType: "ResourceError", Code: 3001, Message: `Failed to execute the query`}
	// ErrAPIDBInsertFailed must be used when an insert query returns an error from the backend storage system
	ErrAPIDBInsertFailed = APIError{Status: http.StatusInternalServerError, ErrType: "ResourceError", Code: 3002, Message: `Failed to create the resource`}
	// ErrAPIDBUpdateFailed must be used when an update query returns an error from the backend storage system
	ErrAPIDBUpdateFailed = APIError{Status: http.StatusInternalServerError, ErrType: "ResourceError", Code: 3003, Message: `Failed to update the resource`}

	// ErrAPIProcessError must be used when an internal error occurred during the stack call
	ErrAPIProcessError = APIError{Status: http.StatusInternalServerError, ErrType: "ProcessError", Code: 5000, Message: `Internal error has occurred during the process`}
	// ErrAPIEngineUnavailable must be used when the rule engine cannot run (not initialized, rule set not loadable)
	ErrAPIEngineUnavailable = APIError{Status: http.StatusServiceUnavailable, ErrType: "ProcessError", Code: 5001, Message: `The rule engine is unavailable, please retry later`}
	// ErrAPICalculationFailed must be used when the rule outcome cannot produce a consistent calculation
	ErrAPICalculationFailed = APIError{Status: http.StatusUnprocessableEntity, ErrType: "ProcessError", Code: 5002, Message: `The calculation could not be completed`}
)

// displayedErrorDetails prints details to the client
var displayedErrorDetails = []APIError{
	ErrAPIResourceInvalid,
	ErrAPICalculationFailed,
}

// OK returns a HTTP status 200 with an empty body
func OK(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// JSON try to encode an interface and returns it in a specific ResponseWriter (or returns an internal server error)
func JSON(w http.ResponseWriter, r *http.Request, data interface{}) {
	OK(w, r)

	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		zap.L().Error("Render JSON encode", zap.Error(err))
		Error(w, r, ErrAPIEncodeJSONBody, err)
		return
	}
}

// Error handles and return an error (JSON format) with corresponding HTTP status
// In case the API is configured with HTTP_SERVER_API_ENABLE_VERBOSE_ERROR = true, the detailed errors will also be sent in the JSON response
func Error(w http.ResponseWriter, r *http.Request, apiError APIError, err error) {
	apiError.RequestID = middleware.GetReqID(r.Context())

	if err != nil {
		if viper.GetBool("HTTP_SERVER_API_ENABLE_VERBOSE_ERROR") {
			apiError.Details = err.Error()
		} else {
			for _, detail := range displayedErrorDetails {
				if detail.Code == apiError.Code {
					apiError.Details = err.Error()
					break
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiError.Status)

	encodeErr := json.NewEncoder(w).Encode(apiError)
	if encodeErr != nil {
		zap.L().Error("Error JSON encode", zap.Error(encodeErr))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}
