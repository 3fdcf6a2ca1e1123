// Package cli implements the docsray command line interface. Commands are
// thin shells over the driving ports; wiring happens once in initServices.
package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driven/cache"
	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driven/config/file"
	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driven/providers/markdown"
	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driven/providers/ocr"
	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driven/providers/pdftext"
	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driven/providers/web"
	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driven/watch"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driving"
	"github.com/xingh/docsray-mcp-sub001/internal/core/services"
	"github.com/xingh/docsray-mcp-sub001/internal/logger"
)

// version is the CLI version, overridable at build time via -ldflags.
var version = "0.1.0"

// Package-level services shared by the commands, wired in initServices.
var (
	configStore     driven.ConfigStore
	log             logger.Logger
	documentService driving.DocumentService
	docWatcher      driven.DocumentWatcher
)

// configDir overrides the default configuration directory (~/.docsray).
var configDir string

var rootCmd = &cobra.Command{
	Use:   "docsray",
	Short: "Document understanding for AI assistants",
	Long: `Docsray answers questions about documents on disk: what a document is,
how it is structured, what it contains, and where content appears.

Requests are routed to the best capable provider (PDF text layer, Markdown,
HTML, OCR) with automatic fallback, and results are cached.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.docsray)")
}

// Execute runs the root command.
func Execute() error {
	defer shutdown()
	return rootCmd.Execute()
}

// initServices wires the full service graph: config, logger, cache, watcher,
// registry with the embedded providers, and the orchestrator.
func initServices(_ *cobra.Command, _ []string) error {
	// Already wired (or injected by tests).
	if documentService != nil {
		return nil
	}

	var err error
	configStore, err = file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err = logger.New(logger.Config{
		Level:      configStore.GetString("log.level"),
		File:       logFilePath(),
		MaxSizeMB:  configStore.GetInt("log.max_size_mb"),
		MaxBackups: configStore.GetInt("log.max_backups"),
		Console:    configStore.GetBool("log.console"),
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	resultCache, err := buildCache()
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}

	if resultCache != nil {
		docWatcher, err = watch.New(resultCache, log.Named("watch"))
		if err != nil {
			// The watcher is an optimization; stale entries still age out
			// via TTL without it.
			log.Warn("document watcher unavailable", logger.Err(err))
			docWatcher = nil
		}
	}

	registry := services.NewRegistry(services.BreakerPolicy{
		DegradeThreshold: configStore.GetInt("breaker.degrade_threshold"),
		Cooldown:         configStore.GetDuration("breaker.cooldown"),
	}, log.Named("registry"))

	if err := registerProviders(registry); err != nil {
		return err
	}

	documentService = services.NewOrchestrator(registry, resultCache, docWatcher, buildPolicy(registry), log.Named("orchestrator"))
	return nil
}

// buildPolicy reads the orchestration policy knobs from configuration.
func buildPolicy(registry *services.Registry) services.Policy {
	policy := services.DefaultPolicy()
	if retries := configStore.GetInt("policy.retries"); retries > 0 {
		policy.Retries = retries
	}
	if timeout := configStore.GetDuration("policy.attempt_timeout"); timeout > 0 {
		policy.AttemptTimeout = timeout
	}
	if ttl := configStore.GetDuration("cache.default_ttl"); ttl > 0 {
		policy.DefaultTTL = ttl
	}
	if rps := configStore.GetInt("policy.rate"); rps > 0 {
		policy.ProviderRate = rate.Limit(rps)
		policy.ProviderBurst = configStore.GetInt("policy.burst")
	}
	policy.ProviderTimeouts = providerTimeouts(registry)
	return policy
}

// providerTimeouts collects per-provider attempt timeout overrides, keyed
// providers.<name>.timeout (e.g. providers.ocr.timeout = "2m").
func providerTimeouts(registry *services.Registry) map[string]time.Duration {
	overrides := make(map[string]time.Duration)
	for _, info := range registry.List() {
		if t := configStore.GetDuration("providers." + info.Name + ".timeout"); t > 0 {
			overrides[info.Name] = t
		}
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

// registerProviders registers every embedded provider not disabled in config.
func registerProviders(registry *services.Registry) error {
	disabled := make(map[string]bool)
	for _, name := range configStore.GetStringSlice("providers.disabled") {
		disabled[name] = true
	}

	providers := []driven.Provider{
		pdftext.New(),
		markdown.New(),
		web.New(),
		ocr.New(configStore.GetStringSlice("providers.ocr.languages")),
	}
	for _, p := range providers {
		if disabled[p.Name()] {
			log.Info("provider disabled by configuration", logger.String("provider", p.Name()))
			continue
		}
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("registering provider %s: %w", p.Name(), err)
		}
	}
	return nil
}

// buildCache composes the memory and disk cache layers from config.
// Returns nil when caching is disabled entirely.
func buildCache() (driven.ResultCache, error) {
	if configStore.GetBool("cache.disabled") {
		return nil, nil
	}

	mem, err := cache.NewMemory(configStore.GetInt("cache.memory_entries"))
	if err != nil {
		return nil, err
	}

	dir := configStore.GetString("cache.dir")
	if dir == "" {
		dir = filepath.Join(filepath.Dir(configStore.Path()), "cache")
	}
	disk, err := cache.NewDisk(dir)
	if err != nil {
		// Disk persistence is optional; fall back to memory only.
		log.Warn("disk cache unavailable", logger.Err(err))
		disk = nil
	}
	return cache.NewLayered(mem, disk, log.Named("cache")), nil
}

func logFilePath() string {
	if path := configStore.GetString("log.file"); path != "" {
		return path
	}
	return filepath.Join(filepath.Dir(configStore.Path()), "docsray.log")
}

// shutdown releases resources acquired by initServices.
func shutdown() {
	if docWatcher != nil {
		_ = docWatcher.Close()
	}
	if log != nil {
		_ = log.Sync()
	}
}
