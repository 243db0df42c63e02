package index

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// MinFDBVersion is the oldest FDB5 release whose tools fdbwatch supports.
const MinFDBVersion = "5.11.99"

// ListIndex queries the index by running the fdb-list tool of a local FDB5
// installation in porcelain mode. Each output line describes one archived
// field as brace-delimited groups of key=value pairs:
//
//	{class=od,expver=0001,stream=enfo,date=20250101,time=0000,model=icon-ch1-eps}{type=ememb,levtype=sfc}{number=0,step=0,param=500004}
type ListIndex struct {
	// Binary is the path to fdb-list. Defaults to $FDB5_HOME/bin/fdb-list.
	Binary string

	// Env is appended to the process environment of the tool.
	Env []string

	run func(ctx context.Context, name string, args, env []string) ([]byte, error)
}

func (l *ListIndex) Name() string { return "fdb-list" }

// ListValues implements Index.
func (l *ListIndex) ListValues(ctx context.Context, dimension string, filter Filter) (Result, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	bin, err := l.tool("fdb-list")
	if err != nil {
		return nil, err
	}

	args := []string{"--porcelain", "--minimum-keys="}
	if filter.Len() > 0 {
		args = append(args, filter.String())
	}

	out, err := l.runTool(ctx, bin, args)
	if err != nil {
		return nil, fmt.Errorf("fdb-list %s: %w", filter, err)
	}

	return parsePorcelain(out, dimension, filter)
}

var versionRegex = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// Version returns the FDB5 release reported by fdb-info --version.
func (l *ListIndex) Version(ctx context.Context) (string, error) {
	bin, err := l.tool("fdb-info")
	if err != nil {
		return "", err
	}
	out, err := l.runTool(ctx, bin, []string{"--version"})
	if err != nil {
		return "", fmt.Errorf("fdb-info --version: %w", err)
	}
	v := versionRegex.FindString(string(out))
	if v == "" {
		return "", fmt.Errorf("no FDB5 version in fdb-info output %q", strings.TrimSpace(string(out)))
	}
	return v, nil
}

// CheckVersion fails when the installed FDB5 release is older than
// minVersion. It returns the installed version.
func (l *ListIndex) CheckVersion(ctx context.Context, minVersion string) (string, error) {
	v, err := l.Version(ctx)
	if err != nil {
		return "", err
	}
	if semver.Compare("v"+v, "v"+minVersion) < 0 {
		return v, fmt.Errorf("version of libFDB5 found is too old: %s < %s", v, minVersion)
	}
	return v, nil
}

// Info returns the description of the FDB5 installation printed by
// fdb-info --all.
func (l *ListIndex) Info(ctx context.Context) ([]byte, error) {
	bin, err := l.tool("fdb-info")
	if err != nil {
		return nil, err
	}
	out, err := l.runTool(ctx, bin, []string{"--all"})
	if err != nil {
		return nil, fmt.Errorf("fdb-info --all: %w", err)
	}
	return out, nil
}

// tool returns the path of an FDB5 tool: next to Binary when it is a path,
// in $FDB5_HOME/bin otherwise.
func (l *ListIndex) tool(name string) (string, error) {
	if l.Binary != "" {
		if name == "fdb-list" {
			return l.Binary, nil
		}
		if !strings.ContainsRune(l.Binary, filepath.Separator) {
			return name, nil
		}
		return filepath.Join(filepath.Dir(l.Binary), name), nil
	}
	home := os.Getenv("FDB5_HOME")
	if home == "" {
		return "", fmt.Errorf("%s: FDB5_HOME is not set and no binary configured", name)
	}
	return filepath.Join(home, "bin", name), nil
}

func (l *ListIndex) runTool(ctx context.Context, bin string, args []string) ([]byte, error) {
	run := l.run
	if run == nil {
		run = runCommand
	}
	return run(ctx, bin, args, l.Env)
}

// parsePorcelain collects the distinct values of dimension from fdb-list
// porcelain output, keeping only lines that match filter.
func parsePorcelain(out []byte, dimension string, filter Filter) (Result, error) {
	set := make(ValueSet)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		keys, err := parseKeys(line)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(keys) {
			continue
		}
		if v, ok := keys[dimension]; ok {
			set[v] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fdb-list output: %w", err)
	}
	if len(set) == 0 {
		return Result{}, nil
	}
	return Result{dimension: set}, nil
}

func parseKeys(line string) (map[string]string, error) {
	keys := make(map[string]string)
	line = strings.NewReplacer("{", ",", "}", ",").Replace(line)
	for _, pair := range strings.Split(line, ",") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed fdb-list entry %q", pair)
		}
		keys[k] = v
	}
	return keys, nil
}

func runCommand(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// CheckEnvironment verifies that the variables an FDB5 installation needs are set.
func CheckEnvironment() error {
	if os.Getenv("FDB5_CONFIG_FILE") == "" && os.Getenv("FDB5_CONFIG") == "" {
		return errors.New("FDB config is unset, set either FDB5_CONFIG_FILE or FDB5_CONFIG")
	}
	if os.Getenv("FDB5_HOME") == "" && os.Getenv("FDB5_DIR") == "" {
		return errors.New("path to FDB5 library is undefined, set either FDB5_HOME or FDB5_DIR")
	}
	return nil
}
