package main

import (
	_ "embed"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"aistate/pkg/config"
	"aistate/pkg/log"
	"aistate/pkg/server"
	"aistate/pkg/server/statestore"
	"aistate/pkg/store"
)

const (
	defaultAddr   = ":8090"
	defaultDBPath = "build/data/state.db"
	dataDirPerm   = 0750
)

//go:embed VERSION
var Version string

func main() {
	// Initialize logger first
	_ = log.Logger

	config.LoadEnv()

	addr := flag.String("addr", config.GetEnv("STATESTORE_ADDR", defaultAddr), "State store listen address")
	dbPath := flag.String("db", config.GetEnv("STATESTORE_DB", defaultDBPath), "SQLite database path")
	shutdownTimeout := flag.Duration("shutdown-timeout", config.GetEnvDuration("STATESTORE_SHUTDOWN_TIMEOUT", server.DefaultShutdownTimeout), "Graceful shutdown timeout")
	debug := flag.Bool("debug", config.GetEnvBool("STATESTORE_DEBUG", false), "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetDebugMode()
		log.Debug().Msg("Debug mode enabled")
	}
	log.WithComponent("statestore")

	if err := os.MkdirAll(filepath.Dir(*dbPath), dataDirPerm); err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to create data directory")
	}

	repo, err := store.NewStore(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open state database")
	}

	log.Info().Str("version", strings.TrimSpace(Version)).Str("db", *dbPath).Msg("Configured state store")

	srv := statestore.NewServer(repo, *shutdownTimeout)
	err = srv.Start(*addr)
	if closeErr := repo.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("Failed to close state database")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	os.Exit(0)
}
