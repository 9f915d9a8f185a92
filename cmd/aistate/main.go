package main

import (
	_ "embed"
	"flag"
	"os"
	"strings"
	"time"

	"aistate/pkg/config"
	"aistate/pkg/forwarder"
	"aistate/pkg/log"
	"aistate/pkg/metrics"
	"aistate/pkg/probe"
	"aistate/pkg/registry"
	"aistate/pkg/server"
	"aistate/pkg/server/gateway"
	"aistate/pkg/upstream"
)

const (
	defaultAddr           = ":8081"
	defaultUpstreamURL    = "http://127.0.0.1:8090/state/ai"
	defaultModelsPath     = "models.yaml"
	defaultRetryMax       = 3
	defaultRetryWaitMin   = 500 * time.Millisecond
	defaultRetryWaitMax   = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

//go:embed VERSION
var Version string

func main() {
	// Initialize logger
	_ = log.Logger

	config.LoadEnv()

	addr := flag.String("addr", config.GetEnv("AISTATE_ADDR", defaultAddr), "Gateway listen address")
	upstreamURL := flag.String("upstream", config.GetEnv("AISTATE_UPSTREAM_URL", defaultUpstreamURL), "Upstream state store URL")
	modelsPath := flag.String("models", config.GetEnv("AISTATE_MODELS", defaultModelsPath), "Model registry YAML file")
	watch := flag.Bool("watch", config.GetEnvBool("AISTATE_WATCH_MODELS", true), "Reload the model registry when its file changes")
	probeTimeout := flag.Duration("probe-timeout", config.GetEnvDuration("AISTATE_PROBE_TIMEOUT", probe.DefaultTimeout), "Liveness probe timeout")
	retryMax := flag.Int("retry-max", config.GetEnvInt("AISTATE_RETRY_MAX", defaultRetryMax), "Maximum number of retries against the upstream store")
	retryWaitMin := flag.Duration("retry-wait-min", config.GetEnvDuration("AISTATE_RETRY_WAIT_MIN", defaultRetryWaitMin), "Minimum wait time between retries")
	retryWaitMax := flag.Duration("retry-wait-max", config.GetEnvDuration("AISTATE_RETRY_WAIT_MAX", defaultRetryWaitMax), "Maximum wait time between retries")
	requestTimeout := flag.Duration("request-timeout", config.GetEnvDuration("AISTATE_REQUEST_TIMEOUT", defaultRequestTimeout), "Upstream request timeout")
	compensationTimeout := flag.Duration("compensation-timeout",
		config.GetEnvDuration("AISTATE_COMPENSATION_TIMEOUT", forwarder.DefaultCompensationTimeout), "Timeout of the compensating down write")
	shutdownTimeout := flag.Duration("shutdown-timeout", config.GetEnvDuration("AISTATE_SHUTDOWN_TIMEOUT", server.DefaultShutdownTimeout), "Graceful shutdown timeout")
	debug := flag.Bool("debug", config.GetEnvBool("AISTATE_DEBUG", false), "Enable debug logging")
	logLevel := flag.String("log-level", config.GetEnv("AISTATE_LOG_LEVEL", ""), "Log level (debug, info, warn, error)")

	flag.Parse()

	// Configure logger
	if *logLevel != "" {
		if err := log.SetLevel(*logLevel); err != nil {
			log.Warn().Err(err).Msg("Ignoring log level")
		}
	}
	if *debug {
		log.SetDebugMode()
		log.Debug().Msg("Debug mode enabled")
	}
	log.WithComponent("gateway")

	models, err := registry.Load(*modelsPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *modelsPath).Msg("Failed to load model registry")
	}

	client, err := upstream.NewClient(*upstreamURL, upstream.Options{
		RetryMax:       *retryMax,
		RetryWaitMin:   *retryWaitMin,
		RetryWaitMax:   *retryWaitMax,
		RequestTimeout: *requestTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Str("upstream", *upstreamURL).Msg("Invalid upstream state store URL")
	}

	collector := metrics.NewCollector()
	fwd := forwarder.New(
		client,
		models,
		probe.NewProber(*probeTimeout),
		forwarder.WithMetrics(collector),
		forwarder.WithCompensationTimeout(*compensationTimeout),
	)

	opts := []gateway.Option{gateway.WithMetrics(collector)}
	if *watch {
		watcher, err := registry.NewWatcher(*modelsPath, models, 0)
		if err != nil {
			log.Warn().Err(err).Str("file", *modelsPath).Msg("Model registry watcher disabled")
		} else {
			opts = append(opts, gateway.WithWatcher(watcher))
		}
	}

	log.Info().
		Str("version", strings.TrimSpace(Version)).
		Str("upstream", client.URL()).
		Int("models", len(models.Models())).
		Dur("probe_timeout", *probeTimeout).
		Dur("request_timeout", *requestTimeout).
		Msg("Configured gateway")

	gw := gateway.NewServer(fwd, *shutdownTimeout, opts...)
	if err := gw.Start(*addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	os.Exit(0)
}
