package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/melonripe/internal/backend/cache"
	"github.com/jo-hoe/melonripe/internal/backend/database"
	"github.com/jo-hoe/melonripe/internal/backend/imagestore"
	"github.com/jo-hoe/melonripe/internal/backend/inference"
)

// Bootstrap opens every dependency named in the config and returns a ready
// service. The model is loaded here, before any request is served.
func Bootstrap(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	history, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)

	service, err := bootstrapWithHistory(ctx, config, history)
	if err != nil {
		_ = history.Close()
		return nil, err
	}
	return service, nil
}

func bootstrapWithHistory(ctx context.Context, config *ServiceConfig, history database.HistoryService) (*CoreService, error) {
	model, err := inference.NewLoader(config.Model.Path).Load(ctx)
	if err != nil {
		return nil, err
	}

	images, err := imagestore.New(config.ImageDir)
	if err != nil {
		return nil, err
	}

	predictionCache, err := cache.New(cache.Options{
		Type:     config.Cache.Type,
		Address:  config.Cache.Address,
		Password: config.Cache.Password,
		DB:       config.Cache.DB,
		TTL:      config.Cache.TTL,
	})
	if err != nil {
		return nil, err
	}

	service, err := NewCoreService(Dependencies{
		History:        history,
		Model:          model,
		Cache:          predictionCache,
		Images:         images,
		Commands:       config.ImageCommands(),
		ThumbnailWidth: config.ThumbnailWidth,
	})
	if err != nil {
		_ = predictionCache.Close()
		return nil, err
	}
	return service, nil
}
