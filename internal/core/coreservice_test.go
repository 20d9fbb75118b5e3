package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jo-hoe/melonripe/internal/backend/cache"
	"github.com/jo-hoe/melonripe/internal/backend/database"
	"github.com/jo-hoe/melonripe/internal/backend/imageprocessing"
	"github.com/jo-hoe/melonripe/internal/backend/imagestore"
	"github.com/jo-hoe/melonripe/internal/backend/inference"
)

// colorModelYAML scores unripe by mean red and ripe by mean green of a 2x2 RGB input.
func colorModelYAML() string {
	var unripe, ripe []string
	for i := 0; i < 4; i++ {
		unripe = append(unripe, "0.25", "0", "0")
		ripe = append(ripe, "0", "0.25", "0")
	}
	return fmt.Sprintf(`name: color
inputShape: [2, 2, 3]
layers:
  - weights:
      - [%s]
      - [%s]
    bias: [0, 0]
    activation: softmax
`, strings.Join(unripe, ", "), strings.Join(ripe, ", "))
}

func writeModelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(colorModelYAML()), 0o644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return path
}

func loadTestModel(t *testing.T) *inference.Model {
	t.Helper()
	return loadModelYAML(t, colorModelYAML())
}

func loadModelYAML(t *testing.T, content string) *inference.Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	model, err := inference.NewLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load model: %v", err)
	}
	return model
}

func pngImage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

var (
	green = color.RGBA{0, 200, 0, 255}
	red   = color.RGBA{200, 0, 0, 255}
)

type testService struct {
	*CoreService
	history database.HistoryService
	images  *imagestore.Store
	redis   *miniredis.Miniredis
}

func newTestService(t *testing.T, initialized bool) *testService {
	t.Helper()
	ctx := context.Background()

	history, err := database.OpenDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("OpenDatabase error: %v", err)
	}
	if initialized {
		if err := history.CreateDatabase(ctx); err != nil {
			t.Fatalf("CreateDatabase error: %v", err)
		}
	}

	images, err := imagestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("imagestore.New error: %v", err)
	}

	server := miniredis.RunT(t)
	service, err := NewCoreService(Dependencies{
		History: history,
		Model:   loadTestModel(t),
		Cache:   cache.NewRedisCache(cache.Options{Address: server.Addr()}),
		Images:  images,
		Commands: []imageprocessing.CommandConfig{
			{Name: "PngConverterCommand"},
			{Name: "CropCommand", Params: map[string]any{"mode": "square"}},
		},
		ThumbnailWidth: 16,
	})
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = service.Close() })

	return &testService{CoreService: service, history: history, images: images, redis: server}
}

func storedFiles(t *testing.T, store *imagestore.Store) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	return entries
}

func TestCoreService_Classify(t *testing.T) {
	service := newTestService(t, true)
	ctx := context.Background()

	tests := []struct {
		name  string
		color color.Color
		label string
	}{
		{"green is ripe", green, inference.LabelRipe},
		{"red is unripe", red, inference.LabelUnripe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.Classify(ctx, pngImage(t, 10, 6, tt.color))
			if err != nil {
				t.Fatalf("Classify error: %v", err)
			}
			if result.Label != tt.label {
				t.Errorf("Label = %s, want %s", result.Label, tt.label)
			}
			if result.Accuracy < 50 || result.Accuracy > 100 {
				t.Errorf("Accuracy = %d, want 50..100", result.Accuracy)
			}
			if result.Record != nil {
				t.Error("Classify must not record history")
			}
		})
	}

	history, _ := service.GetHistory(ctx)
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d records", len(history))
	}
}

func TestCoreService_ClassifyUsesCache(t *testing.T) {
	service := newTestService(t, true)
	ctx := context.Background()
	upload := pngImage(t, 4, 4, green)

	first, err := service.Classify(ctx, upload)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if first.Cached {
		t.Error("first classification should not be cached")
	}
	if !service.redis.Exists(cache.Key(upload, service.cacheScope)) {
		t.Error("prediction should have been written to the cache")
	}

	second, err := service.Classify(ctx, upload)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if !second.Cached || second.Prediction != first.Prediction {
		t.Errorf("expected cached copy of %+v, got %+v", first, second)
	}
}

func TestCoreService_ClassifyWithoutCache(t *testing.T) {
	service := newTestService(t, true)
	service.redis.Close()

	result, err := service.Classify(context.Background(), pngImage(t, 4, 4, green))
	if err != nil {
		t.Fatalf("an unavailable cache must not fail classification: %v", err)
	}
	if result.Label != inference.LabelRipe {
		t.Errorf("Label = %s", result.Label)
	}
}

func TestCoreService_ClassifyInvalidImage(t *testing.T) {
	service := newTestService(t, true)
	for _, upload := range [][]byte{nil, []byte("not an image")} {
		_, err := service.Classify(context.Background(), upload)
		if !errors.Is(err, ErrInvalidImage) {
			t.Errorf("expected ErrInvalidImage, got %v", err)
		}
	}
}

func TestCoreService_ClassifyAndRecord(t *testing.T) {
	service := newTestService(t, true)
	ctx := context.Background()

	result, err := service.ClassifyAndRecord(ctx, pngImage(t, 12, 8, green))
	if err != nil {
		t.Fatalf("ClassifyAndRecord error: %v", err)
	}
	if result.Record == nil || result.Record.ID == 0 {
		t.Fatalf("expected persisted record, got %+v", result.Record)
	}
	if result.Record.Image != result.Image || result.Record.Result != inference.LabelRipe {
		t.Errorf("unexpected record %+v", result.Record)
	}
	if result.Record.Accuracy != result.Accuracy {
		t.Errorf("record accuracy %d != %d", result.Record.Accuracy, result.Accuracy)
	}

	stored, err := service.GetImage(result.Image)
	if err != nil {
		t.Fatalf("GetImage error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(stored))
	if err != nil {
		t.Fatalf("stored image is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("stored image should be the square crop, got %v", img.Bounds())
	}

	history, err := service.GetHistory(ctx)
	if err != nil || len(history) != 1 {
		t.Fatalf("GetHistory = %v, %v", history, err)
	}
}

func TestCoreService_ClassifyAndRecordRemovesImageOnWriteFailure(t *testing.T) {
	service := newTestService(t, false)

	_, err := service.ClassifyAndRecord(context.Background(), pngImage(t, 4, 4, green))
	if !errors.Is(err, database.ErrUninitialized) {
		t.Fatalf("expected ErrUninitialized, got %v", err)
	}
	if files := storedFiles(t, service.images); len(files) != 0 {
		t.Errorf("expected no stored images after failed insert, found %d", len(files))
	}
}

func TestCoreService_DeleteHistoryRemovesImage(t *testing.T) {
	service := newTestService(t, true)
	ctx := context.Background()

	recorded, err := service.ClassifyAndRecord(ctx, pngImage(t, 4, 4, red))
	if err != nil {
		t.Fatalf("ClassifyAndRecord error: %v", err)
	}
	manual, err := service.AddHistory(ctx, "img1.png", inference.LabelRipe, 92)
	if err != nil {
		t.Fatalf("AddHistory error: %v", err)
	}

	if err := service.DeleteHistory(ctx, recorded.Record.ID); err != nil {
		t.Fatalf("DeleteHistory error: %v", err)
	}
	if _, err := service.GetImage(recorded.Image); !errors.Is(err, imagestore.ErrNotFound) {
		t.Errorf("expected image to be removed, got %v", err)
	}
	if err := service.DeleteHistory(ctx, 9999); err != nil {
		t.Errorf("deleting an unknown id should be a no-op, got %v", err)
	}

	history, _ := service.GetHistory(ctx)
	if len(history) != 1 || history[0].ID != manual.ID {
		t.Errorf("expected only the manual record to remain, got %+v", history)
	}
}

func TestCoreService_ClassifyAndRecordKeepsAccuracyInRange(t *testing.T) {
	var unripe, ripe []string
	for i := 0; i < 12; i++ {
		unripe = append(unripe, "0")
		ripe = append(ripe, "30")
	}
	model := loadModelYAML(t, fmt.Sprintf(`name: raw-scores
inputShape: [2, 2, 3]
layers:
  - weights:
      - [%s]
      - [%s]
    bias: [0, 0]
    activation: none
`, strings.Join(unripe, ", "), strings.Join(ripe, ", ")))

	history, _ := database.OpenDatabase("sqlite", ":memory:")
	if err := history.CreateDatabase(context.Background()); err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	images, _ := imagestore.New(t.TempDir())
	service, err := NewCoreService(Dependencies{
		History:        history,
		Model:          model,
		Images:         images,
		Commands:       []imageprocessing.CommandConfig{{Name: "PngConverterCommand"}},
		ThumbnailWidth: 16,
	})
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = service.Close() })

	result, err := service.ClassifyAndRecord(context.Background(), pngImage(t, 4, 4, green))
	if err != nil {
		t.Fatalf("ClassifyAndRecord error: %v", err)
	}
	if result.Label != inference.LabelRipe {
		t.Errorf("Label = %s, want Ripe", result.Label)
	}
	if result.Record.Accuracy != 100 {
		t.Errorf("stored accuracy = %d, want 100", result.Record.Accuracy)
	}
}

func TestCoreService_DeleteHistoryKeepsSharedImage(t *testing.T) {
	service := newTestService(t, true)
	ctx := context.Background()

	recorded, err := service.ClassifyAndRecord(ctx, pngImage(t, 4, 4, green))
	if err != nil {
		t.Fatalf("ClassifyAndRecord error: %v", err)
	}
	shared, err := service.AddHistory(ctx, recorded.Image, inference.LabelRipe, 80)
	if err != nil {
		t.Fatalf("AddHistory error: %v", err)
	}

	if err := service.DeleteHistory(ctx, recorded.Record.ID); err != nil {
		t.Fatalf("DeleteHistory error: %v", err)
	}
	if _, err := service.GetImage(recorded.Image); err != nil {
		t.Fatalf("image still referenced by record %d was removed: %v", shared.ID, err)
	}

	if err := service.DeleteHistory(ctx, shared.ID); err != nil {
		t.Fatalf("DeleteHistory error: %v", err)
	}
	if _, err := service.GetImage(recorded.Image); !errors.Is(err, imagestore.ErrNotFound) {
		t.Errorf("expected image to be removed with its last record, got %v", err)
	}
}

func TestCoreService_ClearHistoryRemovesOrphanedImages(t *testing.T) {
	service := newTestService(t, true)
	ctx := context.Background()

	if _, err := service.ClassifyAndRecord(ctx, pngImage(t, 4, 4, green)); err != nil {
		t.Fatalf("ClassifyAndRecord error: %v", err)
	}
	// an image saved without a record, as left behind by a concurrent upload
	orphan, err := service.images.Save(pngImage(t, 2, 2, red))
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}

	if err := service.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory error: %v", err)
	}
	if _, err := service.GetImage(orphan); !errors.Is(err, imagestore.ErrNotFound) {
		t.Errorf("expected orphaned image to be removed, got %v", err)
	}
	if files := storedFiles(t, service.images); len(files) != 0 {
		t.Errorf("expected empty image directory, found %d files", len(files))
	}
}

func TestCacheScope_ChangesWithPipeline(t *testing.T) {
	model := loadTestModel(t)
	square := []imageprocessing.CommandConfig{{Name: "CropCommand", Params: map[string]any{"mode": "square"}}}
	fixed := []imageprocessing.CommandConfig{{Name: "CropCommand", Params: map[string]any{"mode": "fixed", "width": 4, "height": 4}}}

	if cacheScope(model, square) == cacheScope(model, fixed) {
		t.Error("different pipelines must not share cached predictions")
	}
	if cacheScope(model, square) != cacheScope(model, square) {
		t.Error("cache scope must be stable")
	}
}

func TestCoreService_ClearHistory(t *testing.T) {
	service := newTestService(t, true)
	ctx := context.Background()

	for _, c := range []color.Color{green, red} {
		if _, err := service.ClassifyAndRecord(ctx, pngImage(t, 4, 4, c)); err != nil {
			t.Fatalf("ClassifyAndRecord error: %v", err)
		}
	}
	if err := service.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory error: %v", err)
	}

	history, _ := service.GetHistory(ctx)
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d", len(history))
	}
	if files := storedFiles(t, service.images); len(files) != 0 {
		t.Errorf("expected stored images to be removed, found %d", len(files))
	}
}

func TestCoreService_Thumbnail(t *testing.T) {
	service := newTestService(t, true)
	result, err := service.ClassifyAndRecord(context.Background(), pngImage(t, 64, 64, green))
	if err != nil {
		t.Fatalf("ClassifyAndRecord error: %v", err)
	}

	thumb, err := service.Thumbnail(result.Image)
	if err != nil {
		t.Fatalf("Thumbnail error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("thumbnail width = %d, want 16", img.Bounds().Dx())
	}

	if _, err := service.Thumbnail("../secret.png"); !errors.Is(err, imagestore.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestNewCoreService_RequiresDependencies(t *testing.T) {
	model := loadTestModel(t)
	images, _ := imagestore.New(t.TempDir())
	history, _ := database.OpenDatabase("sqlite", ":memory:")
	t.Cleanup(func() { _ = history.Close() })

	tests := []struct {
		name string
		deps Dependencies
	}{
		{"no history", Dependencies{Model: model, Images: images, ThumbnailWidth: 16}},
		{"no model", Dependencies{History: history, Images: images, ThumbnailWidth: 16}},
		{"no images", Dependencies{History: history, Model: model, ThumbnailWidth: 16}},
		{"bad command", Dependencies{History: history, Model: model, Images: images, ThumbnailWidth: 16,
			Commands: []imageprocessing.CommandConfig{{Name: "Nope"}}}},
		{"bad thumbnail width", Dependencies{History: history, Model: model, Images: images}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCoreService(tt.deps); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.Database.ConnectionString = filepath.Join(dir, "history.db")
	config.Model.Path = writeModelFile(t)
	config.ImageDir = filepath.Join(dir, "images")

	service, err := Bootstrap(context.Background(), config)
	if err != nil {
		t.Fatalf("Bootstrap error: %v", err)
	}
	t.Cleanup(func() { _ = service.Close() })

	result, err := service.ClassifyAndRecord(context.Background(), pngImage(t, 4, 4, green))
	if err != nil {
		t.Fatalf("ClassifyAndRecord error: %v", err)
	}
	if result.Label != inference.LabelRipe {
		t.Errorf("Label = %s", result.Label)
	}
}

func TestBootstrap_MissingModel(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.Database.ConnectionString = filepath.Join(dir, "history.db")
	config.Model.Path = filepath.Join(dir, "missing.yaml")
	config.ImageDir = filepath.Join(dir, "images")

	_, err := Bootstrap(context.Background(), config)
	var loadErr *inference.ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
}
