// Package bootstrap 根据配置组装归档服务的全部依赖。
package bootstrap

import (
	"AskArchive/backend/go/internal/archive_service/api"
	"AskArchive/backend/go/internal/archive_service/archive/dal"
	"AskArchive/backend/go/internal/archive_service/archive/extractors"
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/pipeline"
	"AskArchive/backend/go/internal/archive_service/archive/storages/vectorstore"
	"AskArchive/backend/go/internal/archive_service/service"
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/internal/database/kafka"
	"AskArchive/backend/go/internal/database/milvus"
	"AskArchive/backend/go/internal/database/minio"
	"AskArchive/backend/go/internal/database/mysql"
	"AskArchive/backend/go/internal/database/redis"
	"AskArchive/backend/go/internal/embedding"
	"AskArchive/backend/go/internal/llm"
	ahttp "AskArchive/backend/go/pkg/http"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"time"
)

// historyTTL 是会话历史在 Redis 中的保留时间。
const historyTTL = 7 * 24 * time.Hour

// App 持有组装好的服务以及需要在退出时释放的资源。
type App struct {
	Config  *config.AppConfig
	Service *service.Service
	Checks  map[string]api.HealthCheck
	Log     *logger.Logger

	closers []func(ctx context.Context) error
}

// Build 连接所有存储并创建 Service。
//
// MySQL、Embedding 与向量库是必需的；Redis、Kafka、MinIO 和 LLM 只在配置了地址或提供商时启用。
// 任何一步失败都会释放已经建立的连接。
func Build(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*App, error) {
	app := &App{Config: cfg, Checks: make(map[string]api.HealthCheck), Log: log}
	svc, err := app.build(ctx)
	if err != nil {
		if cerr := app.Close(context.Background()); cerr != nil {
			log.Warn(cerr.Error())
		}
		return nil, err
	}
	app.Service = svc
	return app, nil
}

func (a *App) build(ctx context.Context) (*service.Service, error) {
	cfg, log := a.Config, a.Log

	// 1. 关系库
	db, err := mysql.GetDB(ctx, &cfg.Databases.MySQL)
	if err != nil {
		return nil, err
	}
	a.addCloser(func(context.Context) error { return mysql.Close() })
	a.Checks["mysql"] = mysql.HealthCheck

	sources := dal.NewSourceDAL(db)
	if err := sources.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("迁移 ingestion_sources 表失败: %w", err)
	}

	// 2. Embedding 模型
	model, err := embedding.NewEmdModel(ctx, &cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("创建 Embedding 模型失败: %w", err)
	}
	embedder, err := embedding.NewArchiveEmbedder(model, cfg.Embedding.CacheSize)
	if err != nil {
		return nil, err
	}

	// 3. 向量库
	store, err := a.vectorStore(ctx)
	if err != nil {
		return nil, err
	}

	// 4. 同步事件
	reporter, err := a.syncReporter(ctx)
	if err != nil {
		return nil, err
	}

	ingestOpts := []pipeline.IngestionOption{pipeline.WithBatchSize(cfg.Archive.BatchSize)}
	if reporter != nil {
		ingestOpts = append(ingestOpts, pipeline.WithIngestionReporter(reporter))
	}
	ingestion := pipeline.NewIngestionPipeline(embedder, store, sources, log.WithField("component", "ingestion"), ingestOpts...)
	deletion := pipeline.NewDeletionPipeline(store, sources, reporter, log.WithField("component", "deletion"))
	retrieval := pipeline.NewRetrievalPipeline(embedder, store, log.WithField("component", "retrieval"))

	// 5. 内容抽取
	httpClient, err := ahttp.NewClient(cfg.Middleware.CircuitBreaker, cfg.Extractors.YouTube.Timeout)
	if err != nil {
		return nil, err
	}
	yt := cfg.Extractors.YouTube
	videos := extractors.NewYouTubeExtractor(
		extractors.WithRetries(httpClient, yt.MaxRetries, 500*time.Millisecond),
		extractors.YouTubeConfig{WatchURL: yt.WatchURL, OEmbedURL: yt.OEmbedURL, Languages: yt.Languages},
		log.WithField("component", "youtube"),
	)
	documents := extractors.NewDocuments(extractors.NewPDFConverter())

	// 6. 可选组件
	opts, err := a.optional(ctx)
	if err != nil {
		return nil, err
	}

	return service.New(sources, ingestion, deletion, retrieval, videos, documents, service.Settings{
		MaxChars:       cfg.Archive.MaxChars,
		OverlapChars:   cfg.Archive.OverlapChars,
		TopK:           cfg.Archive.TopK,
		HistoryLimit:   cfg.Archive.HistoryLimit,
		LockTTL:        cfg.Archive.LockTTL,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, log.WithField("component", "service"), opts...), nil
}

func (a *App) vectorStore(ctx context.Context) (interfaces.VectorStore, error) {
	if a.Config.Archive.VectorStore == "memory" {
		a.Log.Warn("使用内存向量库，重启后数据会丢失")
		return vectorstore.NewMemoryStore(), nil
	}

	mc, err := milvus.GetClient(ctx, &a.Config.Databases.Milvus)
	if err != nil {
		return nil, err
	}
	a.addCloser(func(ctx context.Context) error {
		mc.Close(ctx)
		return nil
	})
	a.Checks["milvus"] = mc.HealthCheck

	if err := mc.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	store, err := vectorstore.NewMilvusStore(mc, a.Log.WithField("component", "milvus"))
	if err != nil {
		return nil, err
	}
	return store, nil
}

// syncReporter 在配置了 Kafka 时返回事件发布者，否则返回 nil，孤儿记录只写日志。
func (a *App) syncReporter(ctx context.Context) (interfaces.SyncReporter, error) {
	if len(a.Config.Databases.Kafka.Brokers) == 0 {
		return nil, nil
	}
	kc, err := kafka.GetClient(ctx, &a.Config.Databases.Kafka)
	if err != nil {
		return nil, err
	}
	a.addCloser(func(context.Context) error { return kc.Close() })
	a.Checks["kafka"] = kc.HealthCheck
	return kafka.NewSyncPublisher(kc), nil
}

func (a *App) optional(ctx context.Context) ([]service.Option, error) {
	cfg := a.Config
	var opts []service.Option

	if cfg.Databases.Redis.Address != "" {
		rc, err := redis.GetClient(ctx, &cfg.Databases.Redis)
		if err != nil {
			return nil, err
		}
		a.addCloser(func(context.Context) error { return redis.Close() })
		a.Checks["redis"] = redis.HealthCheck
		opts = append(opts,
			service.WithLocker(service.NewRedisLocker(rc)),
			service.WithHistory(service.NewRedisHistory(rc, cfg.Archive.HistoryLimit*4, historyTTL)),
		)
	}

	if cfg.Databases.MinIO.Endpoint != "" {
		mc, err := minio.GetClient(ctx, &cfg.Databases.MinIO)
		if err != nil {
			return nil, err
		}
		uploads, err := minio.NewUploadStore(ctx, mc, cfg.Databases.MinIO.Bucket)
		if err != nil {
			return nil, err
		}
		a.Checks["minio"] = minio.HealthCheck
		opts = append(opts, service.WithUploads(uploads))
	}

	if cfg.LLM.Provider != "" {
		generator, err := llm.NewGenerator(ctx, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("创建 LLM 客户端失败: %w", err)
		}
		opts = append(opts, service.WithQA(pipeline.NewQAPipeline(generator, a.Log.WithField("component", "qa"))))
	} else {
		a.Log.Warn("未配置 LLM 提供商，/query 不可用")
	}

	return opts, nil
}

func (a *App) addCloser(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close 按与建立时相反的顺序释放资源。
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
