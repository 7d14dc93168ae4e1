package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/treasurehunt/server/internal/geo"
	"github.com/treasurehunt/server/internal/model"
)

// APIError is the error payload of an error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes returned on the wire.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidCoordinates = "INVALID_COORDINATES"
	CodeTreasureNotFound   = "TREASURE_NOT_FOUND"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeTooFar             = "TOO_FAR"
	CodeAlreadyDiscovered  = "ALREADY_DISCOVERED"
	CodeGameInactive       = "GAME_INACTIVE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	CodeStorageFailure     = "STORAGE_FAILURE"
)

// httpError combines an HTTP status with an APIError.
type httpError struct {
	status   int
	apiError APIError
}

func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response mapped from an engine error.
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, geo.ErrInvalidCoordinates):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidCoordinates, "Latitude must be in [-90,90] and longitude in [-180,180]"}}
	case errors.Is(err, model.ErrTreasureNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeTreasureNotFound, "Treasure not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrTooFar):
		return &httpError{http.StatusForbidden, APIError{CodeTooFar, "Too far from treasure to discover it"}}
	case errors.Is(err, model.ErrAlreadyDiscovered):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyDiscovered, "Treasure already discovered by this player"}}
	case errors.Is(err, model.ErrGameInactive):
		return &httpError{http.StatusForbidden, APIError{CodeGameInactive, "The game is not currently active"}}
	case errors.Is(err, model.ErrTimeout):
		return &httpError{http.StatusGatewayTimeout, APIError{CodeGatewayTimeout, "Request timed out"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeStorageFailure, "Internal storage failure"}}
	}
}

// NewInvalidRequestError creates a 400 error with a caller-facing message.
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates a 401 error.
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}
