package index

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

const porcelain = `{class=od,expver=0001,stream=enfo,date=20250101,time=0000,model=icon-ch1-eps}{type=ememb,levtype=ml}{number=0,step=0,param=500001,levelist=1}
{class=od,expver=0001,stream=enfo,date=20250101,time=0000,model=icon-ch1-eps}{type=ememb,levtype=ml}{number=0,step=1,param=500001,levelist=1}
{class=od,expver=0001,stream=enfo,date=20250101,time=0000,model=icon-ch1-eps}{type=ememb,levtype=ml}{number=1,step=4,param=500001,levelist=1}
`

func TestListIndex_ListValues(t *testing.T) {
	var gotName string
	var gotArgs []string
	idx := &ListIndex{
		Binary: "/opt/fdb/bin/fdb-list",
		run: func(ctx context.Context, name string, args, env []string) ([]byte, error) {
			gotName, gotArgs = name, args
			return []byte(porcelain), nil
		},
	}

	filter := NewFilter(map[string]string{"param": "500001", "number": "0"})
	res, err := idx.ListValues(context.Background(), "step", filter)
	if err != nil {
		t.Fatalf("ListValues error: %v", err)
	}
	if gotName != "/opt/fdb/bin/fdb-list" {
		t.Errorf("binary = %q", gotName)
	}
	if last := gotArgs[len(gotArgs)-1]; last != "number=0,param=500001" {
		t.Errorf("request argument = %q", last)
	}
	if got := res["step"].Sorted(); len(got) != 2 || got[0] != "0" || got[1] != "1" {
		t.Errorf("steps = %v, want [0 1]", got)
	}
}

func TestListIndex_DefaultBinaryFromEnv(t *testing.T) {
	t.Setenv("FDB5_HOME", "/opt/fdb")

	var gotName string
	idx := &ListIndex{run: func(ctx context.Context, name string, args, env []string) ([]byte, error) {
		gotName = name
		return nil, nil
	}}
	res, err := idx.ListValues(context.Background(), "step", Filter{})
	if err != nil {
		t.Fatalf("ListValues error: %v", err)
	}
	if gotName != filepath.Join("/opt/fdb", "bin", "fdb-list") {
		t.Errorf("binary = %q", gotName)
	}
	if len(res) != 0 {
		t.Errorf("expected empty result, got %v", res)
	}
}

func TestListIndex_CommandFailurePropagates(t *testing.T) {
	boom := errors.New("exit status 1")
	idx := &ListIndex{
		Binary: "fdb-list",
		run: func(ctx context.Context, name string, args, env []string) ([]byte, error) {
			return nil, boom
		},
	}
	if _, err := idx.ListValues(context.Background(), "step", Filter{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped command error, got %v", err)
	}
}

func TestParsePorcelain_Malformed(t *testing.T) {
	if _, err := parsePorcelain([]byte("{date}\n"), "date", Filter{}); err == nil {
		t.Fatal("expected error for malformed entry")
	}
}

func TestCheckEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "complete", env: map[string]string{"FDB5_CONFIG_FILE": "/etc/fdb.yaml", "FDB5_HOME": "/opt/fdb"}},
		{name: "alternative names", env: map[string]string{"FDB5_CONFIG": "{}", "FDB5_DIR": "/opt/fdb"}},
		{name: "missing config", env: map[string]string{"FDB5_HOME": "/opt/fdb"}, wantErr: true},
		{name: "missing home", env: map[string]string{"FDB5_CONFIG": "{}"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"FDB5_CONFIG_FILE", "FDB5_CONFIG", "FDB5_HOME", "FDB5_DIR"} {
				t.Setenv(k, tt.env[k])
			}
			if err := CheckEnvironment(); (err != nil) != tt.wantErr {
				t.Errorf("CheckEnvironment() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListIndex_Tool(t *testing.T) {
	t.Setenv("FDB5_HOME", "/opt/fdb")

	tests := []struct {
		binary string
		want   string
	}{
		{"", filepath.Join("/opt/fdb", "bin", "fdb-info")},
		{"/usr/local/fdb/bin/fdb-list", filepath.Join("/usr/local/fdb/bin", "fdb-info")},
		{"fdb-list", "fdb-info"},
	}
	for _, tt := range tests {
		l := &ListIndex{Binary: tt.binary}
		got, err := l.tool("fdb-info")
		if err != nil || got != tt.want {
			t.Errorf("tool(fdb-info) with binary %q = %q, %v, want %q", tt.binary, got, err, tt.want)
		}
	}

	t.Setenv("FDB5_HOME", "")
	if _, err := (&ListIndex{}).tool("fdb-info"); err == nil {
		t.Error("expected error without FDB5_HOME or binary")
	}
}

func TestListIndex_CheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    string
		wantErr string
	}{
		{name: "plain version", output: "5.12.1\n", want: "5.12.1"},
		{name: "banner", output: "fdb-info version 5.13.0 (git 1a2b3c)\n", want: "5.13.0"},
		{name: "minimum", output: "5.11.99", want: "5.11.99"},
		{name: "too old", output: "5.11.23\n", want: "5.11.23", wantErr: "too old"},
		{name: "no version", output: "unknown\n", wantErr: "no FDB5 version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotName string
			var gotArgs []string
			l := &ListIndex{
				Binary: "/opt/fdb/bin/fdb-list",
				run: func(ctx context.Context, name string, args, env []string) ([]byte, error) {
					gotName, gotArgs = name, args
					return []byte(tt.output), nil
				},
			}

			got, err := l.CheckVersion(context.Background(), MinFDBVersion)
			if gotName != "/opt/fdb/bin/fdb-info" || len(gotArgs) != 1 || gotArgs[0] != "--version" {
				t.Errorf("ran %s %v, want fdb-info --version", gotName, gotArgs)
			}
			if got != tt.want {
				t.Errorf("version = %q, want %q", got, tt.want)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckVersion() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CheckVersion() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestListIndex_Info(t *testing.T) {
	var gotArgs []string
	l := &ListIndex{
		Binary: "/opt/fdb/bin/fdb-list",
		run: func(ctx context.Context, name string, args, env []string) ([]byte, error) {
			gotArgs = args
			return []byte("Version: 5.12.1\nHome: /opt/fdb\n"), nil
		},
	}

	var _ Informer = l
	out, err := l.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if len(gotArgs) != 1 || gotArgs[0] != "--all" {
		t.Errorf("args = %v, want [--all]", gotArgs)
	}
	if !strings.Contains(string(out), "Home: /opt/fdb") {
		t.Errorf("output = %q", out)
	}

	boom := errors.New("exit status 1")
	l.run = func(context.Context, string, []string, []string) ([]byte, error) { return nil, boom }
	if _, err := l.Info(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Info() error = %v, want wrapped command error", err)
	}
}
