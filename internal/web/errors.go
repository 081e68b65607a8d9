package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request id, then
// returned to the client as a message, a suggested action and a stable code
// (see pipeline.Describe).

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/catalog-etl/internal/logging"
	"github.com/JonMunkholm/catalog-etl/internal/pipeline"
)

// errInvalidRequest marks client input that could not be accepted.
var errInvalidRequest = errors.New("invalid request")

var invalidRequestMessage = pipeline.UserMessage{
	Message: "The request could not be understood",
	Action:  "Send a JSON body with an http(s) feed_url and a non-negative chunk_size",
	Code:    "REQ001",
}

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := pipeline.Describe(err)
	if errors.Is(err, errInvalidRequest) {
		userMsg = invalidRequestMessage
	}

	logger := logging.FromContext(r.Context())
	log := logger.Error
	if statusCode < http.StatusInternalServerError {
		log = logger.Warn
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}
