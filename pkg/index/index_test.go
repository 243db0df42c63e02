package index

import (
	"context"
	"errors"
	"testing"
)

func TestFilter_WithDoesNotMutateReceiver(t *testing.T) {
	base := NewFilter(map[string]string{"param": "500001", "model": "icon-ch1-eps"})

	f0 := base.With("number", "0")
	f1 := base.With("number", "1")

	if _, ok := base.Get("number"); ok {
		t.Fatal("base filter was mutated by With")
	}
	if v, _ := f0.Get("number"); v != "0" {
		t.Errorf("f0 number = %q, want 0", v)
	}
	if v, _ := f1.Get("number"); v != "1" {
		t.Errorf("f1 number = %q, want 1", v)
	}
}

func TestFilter_MergeOverrides(t *testing.T) {
	base := NewFilter(map[string]string{"levtype": "sfc", "param": "1"})
	merged := base.Merge(map[string]string{"levtype": "pl", "levelist": "200"})

	if got := merged.String(); got != "levelist=200,levtype=pl,param=1" {
		t.Errorf("String() = %q", got)
	}
	if got := base.String(); got != "levtype=sfc,param=1" {
		t.Errorf("base String() = %q", got)
	}
}

func TestFilter_NewFilterCopiesInput(t *testing.T) {
	src := map[string]string{"date": "20250101"}
	f := NewFilter(src)
	src["date"] = "19700101"

	if v, _ := f.Get("date"); v != "20250101" {
		t.Errorf("filter shares map with caller, date = %q", v)
	}
}

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr bool
	}{
		{name: "empty", values: nil},
		{name: "schema keys", values: map[string]string{"date": "20250101", "time": "0300", "levelist": "1"}},
		{name: "unknown key", values: map[string]string{"class": "od"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFilter(tt.values).Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFilterKey) {
				t.Errorf("error %v does not wrap ErrInvalidFilterKey", err)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("date=20240624, time=0600")
	if err != nil {
		t.Fatalf("ParseFilter error: %v", err)
	}
	if got := f.String(); got != "date=20240624,time=0600" {
		t.Errorf("String() = %q", got)
	}

	if _, err := ParseFilter("date"); err == nil {
		t.Error("expected error for entry without '='")
	}
	if _, err := ParseFilter("colour=red"); !errors.Is(err, ErrInvalidFilterKey) {
		t.Errorf("expected ErrInvalidFilterKey, got %v", err)
	}
}

func TestValueSet(t *testing.T) {
	var empty ValueSet
	if empty.Contains("0") {
		t.Error("nil set should contain nothing")
	}

	s := NewValueSet("10", "2", "1")
	if !s.Contains("2") || s.Contains("3") {
		t.Error("Contains returned wrong result")
	}
	got := s.Sorted()
	want := []string{"1", "10", "2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sorted() = %v, want %v", got, want)
		}
	}
}

func TestMemoryIndex_ListValues(t *testing.T) {
	idx := NewMemoryIndex()
	for _, step := range []string{"0", "1", "2"} {
		idx.Archive(map[string]string{"model": "m", "number": "0", "step": step})
	}
	idx.Archive(map[string]string{"model": "m", "number": "1", "step": "5"})

	res, err := idx.ListValues(context.Background(), "step", NewFilter(map[string]string{"model": "m", "number": "0"}))
	if err != nil {
		t.Fatalf("ListValues error: %v", err)
	}
	if len(res["step"]) != 3 || res["step"].Contains("5") {
		t.Errorf("unexpected steps %v", res["step"].Sorted())
	}

	res, err = idx.ListValues(context.Background(), "step", NewFilter(map[string]string{"model": "other"}))
	if err != nil {
		t.Fatalf("ListValues error: %v", err)
	}
	if _, ok := res["step"]; ok {
		t.Error("expected absent entry for no matches")
	}
	if idx.Queries() != 2 {
		t.Errorf("Queries() = %d, want 2", idx.Queries())
	}
}

func TestMemoryIndex_RejectsInvalidFilterBeforeQuery(t *testing.T) {
	idx := NewMemoryIndex()
	_, err := idx.ListValues(context.Background(), "step", NewFilter(map[string]string{"bogus": "1"}))
	if !errors.Is(err, ErrInvalidFilterKey) {
		t.Fatalf("expected ErrInvalidFilterKey, got %v", err)
	}
	if idx.Queries() != 0 {
		t.Errorf("query was issued for an invalid filter")
	}
}

func TestMemoryIndex_Wipe(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Archive(map[string]string{"date": "20250101", "step": "0"})
	idx.Archive(map[string]string{"date": "20250102", "step": "0"})

	if n := idx.Wipe(NewFilter(map[string]string{"date": "20250101"})); n != 1 {
		t.Fatalf("Wipe removed %d, want 1", n)
	}
	res, _ := idx.ListValues(context.Background(), "date", Filter{})
	if res["date"].Contains("20250101") || !res["date"].Contains("20250102") {
		t.Errorf("unexpected dates after wipe: %v", res["date"].Sorted())
	}
}

func TestMemoryIndex_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewMemoryIndex().ListValues(ctx, "step", Filter{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		config   map[string]string
		wantName string
		wantErr  bool
	}{
		{name: "http", kind: "http", config: map[string]string{"url": "http://fdb:8080/list"}, wantName: "http"},
		{name: "http missing url", kind: "http", config: map[string]string{}, wantErr: true},
		{name: "http bad headers", kind: "http", config: map[string]string{"url": "http://x", "headers": "{"}, wantErr: true},
		{name: "http bad path", kind: "http", config: map[string]string{"url": "http://x", "valuesPath": "axes.{{.Dimension"}, wantErr: true},
		{name: "fdb-list", kind: "fdb-list", config: map[string]string{"binary": "/opt/fdb/bin/fdb-list"}, wantName: "fdb-list"},
		{name: "memory", kind: "memory", wantName: "memory"},
		{name: "unknown", kind: "polytope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := New(tt.kind, tt.config, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && idx.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", idx.Name(), tt.wantName)
			}
		})
	}
}
