package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/melonripe/internal/backend/cache"
	"github.com/jo-hoe/melonripe/internal/backend/database"
	"github.com/jo-hoe/melonripe/internal/backend/imageprocessing"
	"github.com/jo-hoe/melonripe/internal/backend/imagestore"
	"github.com/jo-hoe/melonripe/internal/backend/inference"
)

// ErrInvalidImage marks uploads that cannot be turned into a model input.
var ErrInvalidImage = errors.New("invalid image")

// Classification is a prediction enriched for callers. Image and Record are
// only set when the result was recorded.
type Classification struct {
	inference.Prediction
	Accuracy int                     `json:"accuracy"`
	Cached   bool                    `json:"cached"`
	Image    string                  `json:"image,omitempty"`
	Record   *database.HistoryRecord `json:"record,omitempty"`
}

type Dependencies struct {
	History        database.HistoryService
	Model          *inference.Model
	Cache          cache.PredictionCache
	Images         *imagestore.Store
	Commands       []imageprocessing.CommandConfig
	ThumbnailWidth int
}

type CoreService struct {
	history     database.HistoryService
	model       *inference.Model
	cache       cache.PredictionCache
	images      *imagestore.Store
	pipeline    *imageprocessing.CommandInvoker
	thumbnail   *imageprocessing.CommandInvoker
	inputHeight int
	inputWidth  int
	cacheScope  string
}

// NewCoreService wires already opened dependencies. The model must be loaded.
func NewCoreService(deps Dependencies) (*CoreService, error) {
	if deps.History == nil {
		return nil, errors.New("history service is required")
	}
	if deps.Model == nil {
		return nil, errors.New("a loaded model is required")
	}
	if deps.Images == nil {
		return nil, errors.New("image store is required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.NoopCache{}
	}

	height, width, err := imageprocessing.InputSize(deps.Model.InputShape())
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", deps.Model.Name(), err)
	}

	pipeline, err := imageprocessing.NewCommandInvokerFromConfig(imageprocessing.DefaultRegistry, deps.Commands)
	if err != nil {
		return nil, fmt.Errorf("failed to build image pipeline: %w", err)
	}
	thumbnail, err := imageprocessing.NewCommandInvokerFromConfig(imageprocessing.DefaultRegistry, []imageprocessing.CommandConfig{
		{Name: "PixelScaleCommand", Params: map[string]any{"width": deps.ThumbnailWidth}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build thumbnail pipeline: %w", err)
	}

	slog.Info("core service ready",
		"model", deps.Model.Name(),
		"input_height", height,
		"input_width", width,
		"commands", pipeline.Names())

	return &CoreService{
		history:     deps.History,
		model:       deps.Model,
		cache:       deps.Cache,
		images:      deps.Images,
		pipeline:    pipeline,
		thumbnail:   thumbnail,
		inputHeight: height,
		inputWidth:  width,
		cacheScope:  cacheScope(deps.Model, deps.Commands),
	}, nil
}

// Classify predicts the ripeness of an uploaded image without recording it.
func (service *CoreService) Classify(ctx context.Context, image []byte) (*Classification, error) {
	key := cache.Key(image, service.cacheScope)
	if result := service.cached(ctx, key); result != nil {
		return result, nil
	}

	processed, err := service.preprocess(image)
	if err != nil {
		return nil, err
	}
	return service.predict(ctx, key, processed)
}

// ClassifyAndRecord classifies the image, stores the preprocessed PNG and appends
// a history record. The stored image is removed again if the record cannot be written.
func (service *CoreService) ClassifyAndRecord(ctx context.Context, image []byte) (*Classification, error) {
	processed, err := service.preprocess(image)
	if err != nil {
		return nil, err
	}

	key := cache.Key(image, service.cacheScope)
	result := service.cached(ctx, key)
	if result == nil {
		if result, err = service.predict(ctx, key, processed); err != nil {
			return nil, err
		}
	}

	name, err := service.images.Save(processed)
	if err != nil {
		return nil, err
	}
	record, err := service.history.AddHistory(ctx, name, result.Label, result.Accuracy)
	if err != nil {
		if removeErr := service.images.Remove(name); removeErr != nil {
			slog.Warn("failed to remove orphaned image", "image", name, "error", removeErr)
		}
		return nil, err
	}

	slog.Info("classification recorded", "id", record.ID, "label", record.Result, "accuracy", record.Accuracy)
	result.Image = name
	result.Record = record
	return result, nil
}

func (service *CoreService) AddHistory(ctx context.Context, image, result string, accuracy int) (*database.HistoryRecord, error) {
	return service.history.AddHistory(ctx, image, result, accuracy)
}

func (service *CoreService) GetHistory(ctx context.Context) ([]*database.HistoryRecord, error) {
	return service.history.GetHistory(ctx)
}

func (service *CoreService) GetHistoryByID(ctx context.Context, id int64) (*database.HistoryRecord, error) {
	return service.history.GetHistoryByID(ctx, id)
}

// DeleteHistory removes the record and, if no other record references its
// stored image, the image.
func (service *CoreService) DeleteHistory(ctx context.Context, id int64) error {
	record, err := service.history.GetHistoryByID(ctx, id)
	if err != nil {
		return err
	}
	if err := service.history.DeleteHistory(ctx, id); err != nil {
		return err
	}
	if record == nil || !imagestore.IsStoredName(record.Image) {
		return nil
	}

	remaining, err := service.referencedImages(ctx)
	if err != nil {
		slog.Warn("keeping image, references could not be checked", "image", record.Image, "error", err)
		return nil
	}
	if !remaining[record.Image] {
		service.removeImage(record.Image)
	}
	return nil
}

// ClearHistory removes all records and every stored image that existed when
// the clear started. Images of records written in the meantime are kept.
func (service *CoreService) ClearHistory(ctx context.Context) error {
	start := time.Now()
	if err := service.history.ClearHistory(ctx); err != nil {
		return err
	}

	keep, err := service.referencedImages(ctx)
	if err != nil {
		slog.Warn("history cleared but stored images were kept", "error", err)
		return nil
	}
	removed, err := service.images.Prune(keep, start)
	if err != nil {
		slog.Warn("failed to remove some stored images", "error", err)
	}
	slog.Info("history cleared", "images_removed", removed)
	return nil
}

func (service *CoreService) GetImage(name string) ([]byte, error) {
	return service.images.Open(name)
}

func (service *CoreService) Thumbnail(name string) ([]byte, error) {
	data, err := service.images.Open(name)
	if err != nil {
		return nil, err
	}
	return service.thumbnail.Execute(data)
}

func (service *CoreService) Close() error {
	return errors.Join(service.cache.Close(), service.history.Close())
}

func (service *CoreService) preprocess(image []byte) ([]byte, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}
	processed, err := service.pipeline.Execute(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return processed, nil
}

func (service *CoreService) predict(ctx context.Context, key string, processed []byte) (*Classification, error) {
	tensor, err := imageprocessing.ToTensor(processed, service.inputHeight, service.inputWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	prediction, err := service.model.Predict(tensor)
	if err != nil {
		return nil, err
	}
	slog.Debug("prediction",
		"label", prediction.Label,
		"ripe", prediction.RipeProb,
		"unripe", prediction.UnripeProb)

	if err := service.cache.Set(ctx, key, prediction); err != nil {
		slog.Warn("failed to cache prediction", "error", err)
	}
	return newClassification(prediction, false), nil
}

// cached returns nil on a miss. Cache failures only cost a recomputation.
func (service *CoreService) cached(ctx context.Context, key string) *Classification {
	prediction, ok, err := service.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("prediction cache unavailable", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return newClassification(*prediction, true)
}

func (service *CoreService) referencedImages(ctx context.Context) (map[string]bool, error) {
	records, err := service.history.GetHistory(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(records))
	for _, record := range records {
		names[record.Image] = true
	}
	return names, nil
}

// removeImage only touches names the image store produced; other references are left alone.
func (service *CoreService) removeImage(name string) {
	if !imagestore.IsStoredName(name) {
		return
	}
	if err := service.images.Remove(name); err != nil {
		slog.Warn("failed to remove image", "image", name, "error", err)
	}
}

func newClassification(prediction inference.Prediction, cached bool) *Classification {
	return &Classification{
		Prediction: prediction,
		Accuracy:   prediction.Accuracy(),
		Cached:     cached,
	}
}

// cacheScope identifies the model and preprocessing a cached prediction was made with.
func cacheScope(model *inference.Model, commands []imageprocessing.CommandConfig) string {
	return fmt.Sprintf("%s|%v|%v", model.Name(), model.InputShape(), commands)
}
