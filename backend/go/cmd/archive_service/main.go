package main

import (
	"AskArchive/backend/go/internal/archive_service/api"
	"AskArchive/backend/go/internal/archive_service/bootstrap"
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/internal/discovery/etcd"
	agrpc "AskArchive/backend/go/pkg/grpc"
	ahttp "AskArchive/backend/go/pkg/http"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 2. 初始化日志
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("archive_service", "", "")
	appLogger.Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 组装依赖 (Stores -> Pipelines -> Service -> Handler)
	app, err := bootstrap.Build(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("Dependencies injected")

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(app.Service, cfg.Server.MaxUploadBytes, app.Checks)
	router := api.SetupRouter(handler, cfg.Auth, appLogger)

	httpServer, err := ahttp.NewServer(cfg, router,
		ahttp.WithAddress(cfg.Server.HTTPAddr),
		ahttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		ahttp.WithLogger(appLogger.WithField("component", "http")),
	)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	var grpcServer *agrpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcServer, err = agrpc.NewServer(cfg, agrpc.WithLogger(appLogger.WithField("component", "grpc")))
		if err != nil {
			appLogger.Fatal(err.Error())
		}
	}

	// 4. 启动服务
	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.ListenAndServe)
	if grpcServer != nil {
		g.Go(grpcServer.ListenAndServe)
		grpcServer.SetServing(true, cfg.App.Name)
	}

	deregister := register(ctx, cfg, appLogger)

	// 5. 收到信号或任一服务退出后优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if deregister != nil {
			if err := deregister(shutdownCtx); err != nil {
				appLogger.Warn("failed to deregister from etcd: " + err.Error())
			}
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("http shutdown: " + err.Error())
		}
		return app.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error(err.Error())
		os.Exit(1)
	}
	appLogger.Info("Servers gracefully stopped")
}

// register 把 HTTP 地址注册到 etcd。未配置 etcd 或注册失败时返回 nil，服务照常运行。
func register(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) func(context.Context) error {
	ec := cfg.Databases.Etcd
	if len(ec.Endpoints) == 0 {
		return nil
	}
	sd, err := etcd.NewServiceDiscovery(etcd.Config{
		Endpoints: ec.Endpoints,
		Username:  ec.Username,
		Password:  ec.Password,
	}, log.WithField("component", "etcd"))
	if err != nil {
		log.Warn("etcd unavailable, skipping registration: " + err.Error())
		return nil
	}

	deregister, err := sd.Register(ctx, ec.ServiceName, advertiseAddr(cfg.Server.HTTPAddr), ec.LeaseTTL)
	if err != nil {
		log.Warn("etcd registration failed: " + err.Error())
		sd.Close()
		return nil
	}
	return func(ctx context.Context) error {
		defer sd.Close()
		return deregister(ctx)
	}
}

// advertiseAddr 把 ":8080" 这样的监听地址补全为可被其他节点访问的地址。
func advertiseAddr(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		host, err := os.Hostname()
		if err == nil {
			return host + listen
		}
	}
	return listen
}
