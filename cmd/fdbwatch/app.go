package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/HatiCode/fdbwatch/cmd/fdbwatch/config"
	"github.com/HatiCode/fdbwatch/cmd/fdbwatch/logger"
	"github.com/HatiCode/fdbwatch/pkg/archive"
	"github.com/HatiCode/fdbwatch/pkg/httpx"
	"github.com/HatiCode/fdbwatch/pkg/index"
)

// app carries the state shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	// environ and now are replaceable in tests.
	environ func() []string
	now     func() time.Time
	// index overrides the configured index when set.
	index index.Index
}

func newApp() *app {
	return &app{
		environ: os.Environ,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fdbwatch",
		Short:         "Check that forecast model output is archived in FDB",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	a.cfg = config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		a.checkCommand(),
		a.serveCommand(),
		a.listCommand(),
		a.forecastsCommand(),
		a.infoCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.cfg.LoadIndexConfig(a.environ())
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.logger = logger.NewWithWriter(cmd.ErrOrStderr(), a.cfg.LogFormat, a.cfg.LogLevel)
	slog.SetDefault(a.logger)

	if a.index == nil && a.cfg.Index == "fdb-list" {
		if err := index.CheckEnvironment(); err != nil {
			return err
		}
		fdb := &index.ListIndex{Binary: a.cfg.IndexConfig["binary"]}
		v, err := fdb.CheckVersion(cmd.Context(), index.MinFDBVersion)
		if err != nil {
			return err
		}
		a.logger.Debug("found FDB5", "version", v)
	}
	return nil
}

// catalog loads the configured catalog, or the built-in one.
func (a *app) catalog() (*archive.Catalog, error) {
	if a.cfg.CatalogFile == "" {
		return archive.DefaultCatalog(), nil
	}
	return archive.LoadCatalog(a.cfg.CatalogFile)
}

// openIndex returns the configured metadata index.
func (a *app) openIndex() (index.Index, error) {
	if a.index != nil {
		return a.index, nil
	}

	client, err := httpx.NewClient(a.cfg.TLS, a.cfg.IndexTimeout)
	if err != nil {
		return nil, fmt.Errorf("index client: %w", err)
	}
	idx, err := index.New(a.cfg.Index, a.cfg.IndexConfig, client)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return idx, nil
}

// checker builds a Checker over the configured catalog and index.
func (a *app) checker() (*archive.Checker, index.Index, error) {
	cat, err := a.catalog()
	if err != nil {
		return nil, nil, err
	}
	idx, err := a.openIndex()
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("using metadata index", "index", idx.Name(), "models", cat.Models())
	return archive.NewChecker(idx, cat, a.logger), idx, nil
}
