package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jo-hoe/melonripe/internal/backend/database"
	"github.com/jo-hoe/melonripe/internal/common"
	"github.com/jo-hoe/melonripe/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName = "index.html"
	PageTitle    = "Melon Ripe"
	mimePNG      = "image/png"
)

// ViewService is the part of core.CoreService the views need.
type ViewService interface {
	ClassifyAndRecord(ctx context.Context, image []byte) (*core.Classification, error)
	GetHistory(ctx context.Context) ([]*database.HistoryRecord, error)
	DeleteHistory(ctx context.Context, id int64) error
	ClearHistory(ctx context.Context) error
	Thumbnail(name string) ([]byte, error)
}

type FrontendService struct {
	service  ViewService
	chrome   core.Chrome
	template *Template
}

type pageData struct {
	Title  string
	Chrome core.Chrome
}

type historyListData struct {
	Records   []*database.HistoryRecord
	Timestamp string
}

// NewFrontendService captures the chrome settings once; they are not re-read per request.
func NewFrontendService(config *core.ServiceConfig, service ViewService) *FrontendService {
	return &FrontendService{
		service:  service,
		chrome:   config.Chrome,
		template: NewTemplate(),
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) error {
	e.Renderer = service.template

	if err := RegisterNavigation(e, NavigationTable, map[string]echo.HandlerFunc{
		HomeRouteName: service.homeHandler,
	}); err != nil {
		return err
	}

	e.POST("/htmx/classify", service.htmxClassifyHandler)
	e.GET("/htmx/history", service.htmxListHistoryHandler)
	e.DELETE("/htmx/history/:id", service.htmxDeleteHistoryHandler)
	e.DELETE("/htmx/history", service.htmxClearHistoryHandler)
	e.GET("/htmx/image/thumb/:name", service.htmxThumbnailHandler)

	e.GET("/icon.svg", service.iconHandler)
	return nil
}

func (service *FrontendService) homeHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, pageData{
		Title:  PageTitle,
		Chrome: service.chrome,
	})
}

func (service *FrontendService) htmxClassifyHandler(ctx echo.Context) error {
	image, filename, err := common.ReadFormFile(ctx, "image")
	if err != nil {
		slog.Error("htmxClassifyHandler: failed to read uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to read uploaded file")
	}

	result, err := service.service.ClassifyAndRecord(ctx.Request().Context(), image)
	if err != nil {
		slog.Error("htmxClassifyHandler: failed to classify uploaded image",
			"error", err, "filename", filename)
		return ctx.String(common.StatusFor(err), "Failed to classify image")
	}

	resultHTML, err := service.template.renderString("classify-result", result)
	if err != nil {
		slog.Error("htmxClassifyHandler: failed to render result", "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to render result")
	}

	listHTML, err := service.buildHistoryListHTML(ctx.Request().Context())
	if err != nil {
		// the record is saved, only the list refresh is missing
		slog.Error("htmxClassifyHandler: failed to list history for OOB update", "error", err)
		return ctx.HTML(http.StatusOK, resultHTML)
	}
	historyOOB := fmt.Sprintf(`<div id="history-list" hx-swap-oob="true">%s</div>`, listHTML)

	return ctx.HTML(http.StatusOK, resultHTML+historyOOB)
}

func (service *FrontendService) htmxListHistoryHandler(ctx echo.Context) error {
	listHTML, err := service.buildHistoryListHTML(ctx.Request().Context())
	if err != nil {
		slog.Error("htmxListHistoryHandler: failed to list history", "error", err)
		return ctx.String(common.StatusFor(err), "Failed to list history")
	}

	service.setNoCache(ctx)
	return ctx.HTML(http.StatusOK, listHTML)
}

func (service *FrontendService) htmxDeleteHistoryHandler(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		slog.Warn("htmxDeleteHistoryHandler: invalid history id",
			"status", http.StatusBadRequest, "id", ctx.Param("id"))
		return ctx.String(http.StatusBadRequest, "Invalid history ID")
	}

	if err := service.service.DeleteHistory(ctx.Request().Context(), id); err != nil {
		slog.Error("htmxDeleteHistoryHandler: failed to delete history",
			"id", id, "error", err)
		return ctx.String(common.StatusFor(err), "Failed to delete history")
	}

	return service.htmxListHistoryHandler(ctx)
}

func (service *FrontendService) htmxClearHistoryHandler(ctx echo.Context) error {
	if err := service.service.ClearHistory(ctx.Request().Context()); err != nil {
		slog.Error("htmxClearHistoryHandler: failed to clear history", "error", err)
		return ctx.String(common.StatusFor(err), "Failed to clear history")
	}

	return service.htmxListHistoryHandler(ctx)
}

func (service *FrontendService) htmxThumbnailHandler(ctx echo.Context) error {
	name := ctx.Param("name")
	thumbnail, err := service.service.Thumbnail(name)
	if err != nil || len(thumbnail) == 0 {
		slog.Warn("htmxThumbnailHandler: thumbnail not available",
			"status", http.StatusNotFound, "name", name, "error", err)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}

	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) buildHistoryListHTML(ctx context.Context) (string, error) {
	records, err := service.service.GetHistory(ctx)
	if err != nil {
		return "", err
	}
	return service.template.renderString("history-list", historyListData{
		Records:   records,
		Timestamp: strconv.FormatInt(time.Now().UnixNano(), 10),
	})
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}
