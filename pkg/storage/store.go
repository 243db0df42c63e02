// Package storage keeps the latest archive check report per model so that the
// HTTP API and other instances can serve it without re-querying the index.
package storage

import (
	"context"
	"fmt"

	"github.com/HatiCode/fdbwatch/pkg/archive"
)

// Store holds the most recent report for each model.
type Store interface {
	Put(ctx context.Context, report archive.Report) error
	GetLatest(ctx context.Context, model string) (archive.Report, bool, error)
}

// validateModel restricts model names to characters that are safe in keys.
func validateModel(model string) error {
	if model == "" {
		return fmt.Errorf("report model cannot be empty")
	}
	for _, c := range model {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.') {
			return fmt.Errorf("invalid model name %q: only alphanumeric, dots, hyphens, and underscores allowed", model)
		}
	}
	return nil
}
