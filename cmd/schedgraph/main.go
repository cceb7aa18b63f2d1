package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	schedmcp "github.com/sportsched/schedgraph/internal/mcp"
	"github.com/sportsched/schedgraph/internal/server"
	"github.com/sportsched/schedgraph/pkg/graph"
	"github.com/sportsched/schedgraph/pkg/knowledge"
)

func main() {
	httpAddr := flag.String("http-addr", ":9091", "Address and port for the REST API server (e.g. :9091)")
	configPath := flag.String("config", "", "Path to the YAML server configuration file")
	dataDir := flag.String("data-dir", "schedgraph-data", "Directory for snapshot persistence")
	mcpMode := flag.Bool("mcp", false, "Serve the MCP tool interface over stdio instead of HTTP")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Flags fill in what the config file leaves unset.
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = *httpAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = *dataDir
	}

	flushInterval, err := cfg.FlushIntervalDuration()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storeOpts := graph.DefaultOptions(cfg.DataDir)
	storeOpts.Persistence = cfg.PersistenceEnabled()
	if flushInterval > 0 {
		storeOpts.FlushInterval = flushInterval
	}

	store, err := graph.Open(storeOpts)
	if err != nil {
		slog.Error("failed to open graph store", "error", err)
		os.Exit(1)
	}

	repo := knowledge.NewRepository(store, slog.Default())

	if *mcpMode {
		// Stdio transport: the process lives as long as the MCP client does.
		mcpServer := schedmcp.NewMCPServer(repo)
		if err := mcpServer.Run(context.Background(), &mcpsdk.StdioTransport{}); err != nil {
			slog.Error("MCP server terminated", "error", err)
		}
		if err := store.Close(); err != nil {
			slog.Error("store close failed", "error", err)
		}
		return
	}

	srv, err := server.NewServer(repo, cfg.ListenAddr, cfg.AuthToken)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(); err != nil {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownChan

	// Stop accepting requests first, then flush and close the store.
	srv.Shutdown()
	if err := store.Close(); err != nil {
		slog.Error("store close failed", "error", err)
	}
}
