package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/fintalk/iecat/internal/cache"
	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/config"
	"github.com/fintalk/iecat/internal/engine"
	"github.com/fintalk/iecat/internal/llm"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
	"github.com/fintalk/iecat/internal/service"
	"github.com/fintalk/iecat/internal/storage"
)

// runtime holds the components a command needs and how to release them.
type runtime struct {
	cfg         *config.Config
	store       *storage.RuleStore
	cache       service.CacheStore
	categorizer *engine.Categorizer
	closers     []io.Closer
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			slog.Warn("Failed to close resource", "error", err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("invalid configuration", err)
	}
	return cfg, nil
}

// initStorage opens the rule store and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.RuleStore, error) {
	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store.WithLogger(slog.Default())

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initCache connects to redis when configured and falls back to an
// in-process cache otherwise.
func initCache(ctx context.Context, cfg *config.Config) (service.CacheStore, io.Closer, error) {
	if cfg.Redis.Addr == "" {
		memory := cache.NewMemoryStore(time.Minute)
		return memory, memory, nil
	}

	redisStore, err := cache.DialRedis(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return redisStore, redisStore, nil
}

// createExternalClassifier returns nil when no API key is configured; the
// categorizer then falls back for every uncertain document.
func createExternalClassifier(cfg *config.Config) service.ExternalClassifier {
	classifier, err := llm.NewOpenAIClassifier(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		Timeout:           cfg.LLM.Timeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RetryDelay:        cfg.LLM.RetryDelay,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       float32(cfg.LLM.Temperature),
		Seed:              cfg.LLM.Seed,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, slog.Default())
	if err != nil {
		slog.Warn("External classifier disabled", "error", err)
		return nil
	}
	return classifier
}

// setupRuntime wires storage, cache and the categorizer from configuration.
func setupRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, store)

	cacheStore, closer, err := initCache(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.cache = cacheStore
	rt.closers = append(rt.closers, closer)

	rt.categorizer = engine.NewCategorizer(store, createExternalClassifier(cfg), cacheStore, engine.CategorizerConfig{
		Logger:      slog.Default(),
		CachePrefix: cfg.Cache.Prefix,
		CacheTTL:    cfg.Cache.TTL,
		Threshold:   cfg.Classification.ConfidenceThreshold,
		Matcher: pattern.Options{
			ContainmentConfidence: cfg.Classification.ContainmentConfidence,
			Fuzzy:                 cfg.Classification.FuzzyEnabled,
		},
		ExternalTimeout: cfg.LLM.Timeout * 2,
	})

	return rt, nil
}

// readDocument loads a label → amount JSON object from a file, or from
// stdin when path is "-".
func readDocument(path string) (map[string]string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot read %s", path), err)
	}
	return engine.DecodeDocument(data)
}

func parseDocType(raw string) (model.TransactionType, error) {
	t, err := model.ParseTransactionType(raw)
	if err != nil || t.IsTotal() {
		return "", common.NewUserError(fmt.Sprintf("unknown document type %q (use income or expense)", raw), err)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
