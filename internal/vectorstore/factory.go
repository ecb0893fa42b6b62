package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config selects and parameterizes a store backend.
type Config struct {
	// Backend is one of "memory", "sqlite", "qdrant". Defaults to "memory".
	Backend string

	// Collection is the collection name (default "documents").
	Collection string

	// Path is the SQLite database path. Empty means the default under
	// ~/.ragserve. Only used by the sqlite backend.
	Path string

	// Qdrant holds connection parameters for the qdrant backend.
	Qdrant QdrantConfig
}

// New constructs the configured Store backend.
func New(ctx context.Context, cfg *Config, log *slog.Logger) (Store, error) {
	collection := cfg.Collection
	if collection == "" {
		collection = "documents"
	}

	switch cfg.Backend {
	case "", "memory":
		log.Info("vector store ready", "backend", "memory", "collection", collection)
		return NewMemoryStore(collection), nil

	case "sqlite":
		path := cfg.Path
		if path == "" {
			var err error
			path, err = DefaultDBPath()
			if err != nil {
				return nil, err
			}
		}
		s, err := OpenSQLite(path, collection)
		if err != nil {
			return nil, err
		}
		log.Info("vector store ready", "backend", "sqlite", "path", path,
			"collection", collection, "documents", s.Stats(ctx).DocumentCount)
		return s, nil

	case "qdrant":
		qcfg := cfg.Qdrant
		qcfg.Collection = collection
		s, err := NewQdrantStore(ctx, &qcfg)
		if err != nil {
			return nil, err
		}
		log.Info("vector store ready", "backend", "qdrant",
			"host", qcfg.Host, "port", qcfg.Port, "collection", collection)
		return s, nil

	default:
		return nil, fmt.Errorf("vectorstore: unknown backend %q", cfg.Backend)
	}
}

// ConfigFromEnv builds a Config from environment variables, used when no
// config file is present.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Backend:    os.Getenv("VECTOR_STORE_BACKEND"),
		Collection: os.Getenv("VECTOR_STORE_COLLECTION"),
		Path:       os.Getenv("VECTOR_STORE_PATH"),
		Qdrant: QdrantConfig{
			Host:   os.Getenv("QDRANT_HOST"),
			APIKey: os.Getenv("QDRANT_API_KEY"),
		},
	}
	if p := os.Getenv("QDRANT_PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Qdrant.Port = port
		}
	}
	return cfg
}
