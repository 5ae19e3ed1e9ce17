package main

import (
	"AskArchive/backend/go/internal/archive_service/bootstrap"
	"AskArchive/backend/go/internal/config"
	archivemcp "AskArchive/backend/go/internal/mcp"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"flag"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// STDIO transport (default)
// go run ./backend/go/cmd/archive_mcp -config=backend/go/config/config.yaml
//
// SSE transport
// go run ./backend/go/cmd/archive_mcp -transport=sse -addr=:8090
//
// StreamableHTTP transport
// go run ./backend/go/cmd/archive_mcp -transport=http -addr=:8090

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	transport := flag.String("transport", "", "Transport method: stdio, sse, or http (overrides mcp.transport)")
	addr := flag.String("addr", "", "Listen address for HTTP-based transports (overrides mcp.addr)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *transport != "" {
		cfg.MCP.Transport = *transport
	}
	if *addr != "" {
		cfg.MCP.Addr = *addr
	}

	// stdio 模式下标准输出属于协议流，日志只能写到标准错误
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	logrus.SetOutput(os.Stderr)
	appLogger := logger.New("archive_mcp", "", "")

	ctx := context.Background()
	app, err := bootstrap.Build(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer app.Close(context.Background())

	tools, err := archivemcp.NewTools(app.Service, cfg.MCP.UserID)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	s := archivemcp.NewServer(tools)

	switch cfg.MCP.Transport {
	case "sse":
		appLogger.Info("Starting archive MCP server with SSE transport on " + cfg.MCP.Addr)
		if err := server.NewSSEServer(s).Start(cfg.MCP.Addr); err != nil {
			appLogger.Error("SSE server error: " + err.Error())
		}
	case "http":
		appLogger.Info("Starting archive MCP server with StreamableHTTP transport on " + cfg.MCP.Addr)
		if err := server.NewStreamableHTTPServer(s).Start(cfg.MCP.Addr); err != nil {
			appLogger.Error("HTTP server error: " + err.Error())
		}
	case "stdio":
		appLogger.Info("Starting archive MCP server with STDIO transport")
		if err := server.ServeStdio(s); err != nil {
			appLogger.Error("STDIO server error: " + err.Error())
		}
	default:
		appLogger.Error("Unknown transport: " + cfg.MCP.Transport + ". Use stdio, sse, or http")
	}
}
