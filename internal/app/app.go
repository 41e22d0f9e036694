// Package app wires the configured backends into a document service shared
// by the API server and the queue worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cfg "github.com/feichai0017/document-extractor/config"
	"github.com/feichai0017/document-extractor/internal/agent"
	"github.com/feichai0017/document-extractor/internal/agent/engine"
	"github.com/feichai0017/document-extractor/internal/cache"
	"github.com/feichai0017/document-extractor/internal/cache/badger"
	"github.com/feichai0017/document-extractor/internal/cache/redis"
	"github.com/feichai0017/document-extractor/internal/history"
	"github.com/feichai0017/document-extractor/internal/service/document"
	"github.com/feichai0017/document-extractor/pkg/logger"
	"github.com/feichai0017/document-extractor/pkg/queue"
	"github.com/feichai0017/document-extractor/pkg/storage"
	"github.com/feichai0017/document-extractor/pkg/storage/backend"
)

// App holds the long-lived components and closes them in reverse order.
type App struct {
	Service *document.DocumentService
	Logger  logger.Logger

	closers []func() error
}

// New builds every dependency of the document service from the environment.
func New(ctx context.Context, log logger.Logger) (_ *App, err error) {
	a := &App{Logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	serverCfg := cfg.GetServerConfig()
	ocrCfg := cfg.GetOCRConfig()
	redisCfg := cfg.GetRedisConfig()
	historyCfg := cfg.GetHistoryConfig()

	store, err := backend.New(storage.StorageType(strings.ToLower(serverCfg.StorageBackend)), log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	timestamps, err := openCache(ctx, historyCfg, redisCfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, timestamps.Close)

	records, err := history.Open(historyCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	a.closers = append(a.closers, records.Close)

	recognizer, err := engine.New(ctx, ocrCfg, log)
	if err != nil {
		return nil, err
	}
	factory, err := agent.NewProcessorFactory(log, recognizer, ocrCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor factory: %w", err)
	}
	a.closers = append(a.closers, factory.Close)

	q, err := queue.GetQueue()
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}
	a.closers = append(a.closers, q.Close)

	svcCfg := document.DefaultConfig()
	svcCfg.MaxFileSize = serverCfg.MaxUploadSize
	svcCfg.PageSeparator = ocrCfg.PageSeparator
	svcCfg.CacheMaxEntries = redisCfg.CacheMaxEntries

	a.Service = document.NewService(document.Deps{
		Factory: factory,
		Queue:   q,
		Storage: store,
		History: records,
		Cache:   timestamps,
		Logger:  log,
	}, svcCfg)

	log.Info("Document service ready",
		logger.String("storage", serverCfg.StorageBackend),
		logger.String("cache", historyCfg.CacheBackend),
		logger.String("engine", ocrCfg.Engine),
	)
	return a, nil
}

func openCache(ctx context.Context, historyCfg *cfg.HistoryConfig, redisCfg *cfg.RedisConfig, log logger.Logger) (cache.Cache, error) {
	switch strings.ToLower(historyCfg.CacheBackend) {
	case "", "redis":
		c, err := redis.NewFromConfig(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis cache: %w", err)
		}
		return c, nil
	case "badger":
		return badger.Open(historyCfg.BadgerDir, log.Named("cache"))
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", historyCfg.CacheBackend)
	}
}

// Close releases every component opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
