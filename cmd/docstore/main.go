package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kartikbazzad/docstore/internal/config"
	"github.com/kartikbazzad/docstore/internal/ipc"
	"github.com/kartikbazzad/docstore/internal/logger"
	"github.com/kartikbazzad/docstore/internal/store"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "Directory for collection log files")
	listenAddr := flag.String("listen", "127.0.0.1:7420", "TCP listen address")
	maxConns := flag.Int("max-conns", 0, "Max concurrent connection handlers (0 = use default)")
	debugMode := flag.Bool("debug", false, "Enable debug-level logging")
	flag.Parse()

	cfg := config.DefaultConfig()
	cfg.DataDir = *dataDir
	cfg.Network.ListenAddr = *listenAddr
	cfg.Network.DebugMode = *debugMode
	if *maxConns > 0 {
		cfg.Pool.MaxConns = *maxConns
	}

	logr := logger.Default()
	if *debugMode {
		logr.SetLevel(logger.LevelDebug)
	}
	logr.Info("starting docstore...")
	logr.Info("data directory: %s", cfg.DataDir)
	logr.Info("listen address: %s", cfg.Network.ListenAddr)

	s := store.New(cfg.DataDir, logr)
	if err := s.Open(); err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	server := ipc.NewServer(cfg, logr, s)
	if err := server.Start(); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logr.Info("shutting down...")

	if err := server.Stop(); err != nil {
		logr.Error("error during shutdown: %v", err)
	}

	logr.Info("docstore stopped")
	os.Exit(0)
}
