package common

import (
	"errors"
	"net/http"

	"github.com/jo-hoe/melonripe/internal/backend/database"
	"github.com/jo-hoe/melonripe/internal/backend/imagestore"
	"github.com/jo-hoe/melonripe/internal/backend/inference"
	"github.com/jo-hoe/melonripe/internal/core"
)

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	var connErr *database.ConnectionError
	var writeErr *database.WriteError
	var predictionErr *inference.PredictionError
	var loadErr *inference.ModelLoadError

	switch {
	case errors.Is(err, database.ErrUninitialized), errors.As(err, &connErr), errors.As(err, &loadErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &writeErr):
		return http.StatusInternalServerError
	case errors.As(err, &predictionErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidImage), errors.Is(err, imagestore.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, imagestore.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

