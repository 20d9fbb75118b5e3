package backend

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jo-hoe/melonripe/internal/backend/database"
	"github.com/jo-hoe/melonripe/internal/common"
	"github.com/jo-hoe/melonripe/internal/core"
	"github.com/labstack/echo/v4"
)

const mimePNG = "image/png"

// ClassificationService is the part of core.CoreService the API needs.
type ClassificationService interface {
	Classify(ctx context.Context, image []byte) (*core.Classification, error)
	ClassifyAndRecord(ctx context.Context, image []byte) (*core.Classification, error)
	AddHistory(ctx context.Context, image, result string, accuracy int) (*database.HistoryRecord, error)
	GetHistory(ctx context.Context) ([]*database.HistoryRecord, error)
	DeleteHistory(ctx context.Context, id int64) error
	ClearHistory(ctx context.Context) error
	GetImage(name string) ([]byte, error)
}

type APIService struct {
	service ClassificationService
}

type AddHistoryRequest struct {
	Image    string `json:"image" validate:"required"`
	Result   string `json:"result" validate:"required"`
	Accuracy int    `json:"accuracy" validate:"min=0,max=100"`
}

func NewAPIService(service ClassificationService) *APIService {
	return &APIService{service: service}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	api := e.Group("/api")
	api.POST("/classify", s.classifyHandler)
	api.GET("/history", s.getHistoryHandler)
	api.POST("/history", s.addHistoryHandler)
	api.DELETE("/history/:id", s.deleteHistoryHandler)
	api.DELETE("/history", s.clearHistoryHandler)
	api.GET("/image/:name", s.getImageHandler)
}

func (s *APIService) classifyHandler(ctx echo.Context) error {
	image, filename, err := common.ReadFormFile(ctx, "image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	save, _ := strconv.ParseBool(ctx.QueryParam("save"))
	var result *core.Classification
	if save {
		result, err = s.service.ClassifyAndRecord(ctx.Request().Context(), image)
	} else {
		result, err = s.service.Classify(ctx.Request().Context(), image)
	}
	if err != nil {
		return toHTTPError("classify", err, "filename", filename)
	}

	status := http.StatusOK
	if result.Record != nil {
		status = http.StatusCreated
	}
	return ctx.JSON(status, result)
}

func (s *APIService) getHistoryHandler(ctx echo.Context) error {
	records, err := s.service.GetHistory(ctx.Request().Context())
	if err != nil {
		return toHTTPError("get history", err)
	}
	return ctx.JSON(http.StatusOK, records)
}

func (s *APIService) addHistoryHandler(ctx echo.Context) error {
	var request AddHistoryRequest
	if err := ctx.Bind(&request); err != nil {
		return err
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	record, err := s.service.AddHistory(ctx.Request().Context(), request.Image, request.Result, request.Accuracy)
	if err != nil {
		return toHTTPError("add history", err)
	}
	return ctx.JSON(http.StatusCreated, record)
}

func (s *APIService) deleteHistoryHandler(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "history id must be an integer")
	}
	if err := s.service.DeleteHistory(ctx.Request().Context(), id); err != nil {
		return toHTTPError("delete history", err, "id", id)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) clearHistoryHandler(ctx echo.Context) error {
	if err := s.service.ClearHistory(ctx.Request().Context()); err != nil {
		return toHTTPError("clear history", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) getImageHandler(ctx echo.Context) error {
	image, err := s.service.GetImage(ctx.Param("name"))
	if err != nil {
		return toHTTPError("get image", err, "name", ctx.Param("name"))
	}
	return ctx.Blob(http.StatusOK, mimePNG, image)
}

func toHTTPError(op string, err error, attrs ...any) *echo.HTTPError {
	status := common.StatusFor(err)
	args := append([]any{"op", op, "status", status, "error", err}, attrs...)
	if status >= http.StatusInternalServerError {
		slog.Error("api request failed", args...)
	} else {
		slog.Warn("api request rejected", args...)
	}
	return echo.NewHTTPError(status, err.Error())
}
