// Command fdbwatch checks that forecast model output has been archived in FDB
// on schedule.
//
// Subcommands:
//
//	fdbwatch check <model>        check the latest run and the retention window once
//	fdbwatch serve                check models periodically and serve the results
//	fdbwatch list --show=... --filter=...   print archived metadata values
//	fdbwatch forecasts [--filter=...]       print the archived forecast runs
//	fdbwatch info                 describe the FDB installation (fdb-info --all)
//
// check exits 0 when the latest run is complete and no run in the retention
// window is missing, 1 when the archive is not in that state, and 2 when the
// check itself could not be performed.
//
// Environment variables:
//
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
//	INDEX          - Metadata index: fdb-list, http, memory (default: fdb-list)
//	INDEX_*        - Index settings, e.g. INDEX_URL, INDEX_VALUES_PATH, INDEX_BINARY
//	CATALOG_FILE   - YAML model catalog (default: built-in profiles)
//	TLS_*          - mTLS settings for servers and the HTTP index client
//	LISTEN         - HTTP listen address for serve (default: :8080)
//	GRPC_LISTEN    - gRPC health listen address for serve (default: :50051)
//	INTERVAL       - serve check interval (default: 5m)
//	MODELS         - Comma separated models for serve (default: all)
//	STORAGE        - Report storage for serve: memory or redis (default: memory)
//	REPORT_TTL     - Stored reports older than this are dropped (default: 6h)
//	REDIS_*        - Redis settings when STORAGE=redis
//
// The fdb-list index additionally requires FDB5_CONFIG_FILE or FDB5_CONFIG,
// FDB5_HOME or FDB5_DIR, and an FDB5 release of at least 5.11.99.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set via ldflags at build time
var version = "dev"

// Exit codes of the fdbwatch process.
const (
	exitOK     = 0
	exitFailed = 1
	exitError  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newApp(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errArchiveIncomplete):
		return exitFailed
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}
}
