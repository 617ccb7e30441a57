package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/types"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Driver    string
	URL       string // postgres connection string or sqlite file path
	VectorDim int
	BatchSize int
}

// Open returns the store selected by config.Driver.
func Open(ctx context.Context, config Config, logger *zap.Logger) (types.Store, error) {
	switch config.Driver {
	case "", DriverPostgres:
		return NewWithConfig(ctx, VectorStoreConfig{
			ConnString: config.URL,
			VectorDim:  config.VectorDim,
			BatchSize:  config.BatchSize,
		}, logger)
	case DriverSQLite:
		return NewSQLite(ctx, config.URL, logger)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", config.Driver)
	}
}

// sanitizeText drops invalid UTF-8 and NUL bytes, which Postgres rejects
// in text columns.
func sanitizeText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitizeText(*s)
	return &clean
}

func chunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}
