package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/HatiCode/fdbwatch/pkg/archive"
	"github.com/HatiCode/fdbwatch/pkg/index"
)

const testModel = "icon-test"

const testCatalogYAML = `collections:
  - model: icon-test
    members: 2
    steps: 3
    forecasts: 3
    interval: 3h
    delay: 0s
`

// testNow resolves to the 12:00 run of icon-test; history is 09:00 and 06:00.
var testNow = time.Date(2024, 10, 19, 13, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTestCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadTestCatalog(t *testing.T) *archive.Catalog {
	t.Helper()
	cat, err := archive.LoadCatalog(writeTestCatalog(t))
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	return cat
}

// archiveRun stores every expected field of the run at hour on testNow's
// date, leaving out step skipStep (if >= 0) of member 0 for varying params.
func archiveRun(idx *index.MemoryIndex, cat *archive.Catalog, hour, skipStep int) {
	run := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), hour, 0, 0, 0, time.UTC)
	col, _ := cat.Collection(testModel)
	for _, p := range cat.Parameters() {
		members, steps := archive.ExpectedShape(col, p)
		for member := range members {
			for step := range steps {
				if !p.Constant && member == 0 && step == skipStep {
					continue
				}
				keys := map[string]string{
					"param":  p.ID,
					"model":  testModel,
					"date":   run.Format("20060102"),
					"time":   run.Format("1504"),
					"number": strconv.Itoa(member),
					"step":   strconv.Itoa(step),
				}
				for k, v := range p.FieldFilter {
					keys[k] = v
				}
				idx.Archive(keys)
			}
		}
	}
}

type failingIndex struct{}

func (failingIndex) Name() string { return "failing" }

func (failingIndex) ListValues(context.Context, string, index.Filter) (index.Result, error) {
	return nil, errors.New("connection refused")
}
