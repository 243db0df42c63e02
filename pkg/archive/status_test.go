package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/HatiCode/fdbwatch/pkg/index"
)

// stepIndex answers step queries with every expected step of the queried
// member except those listed in missing[param][number]. Queries for runs not
// in runs return nothing.
type stepIndex struct {
	catalog *Catalog
	missing map[string]map[string][]int
	runs    map[string]bool
	err     error
	filters []index.Filter
}

func (s *stepIndex) Name() string { return "steps" }

func (s *stepIndex) ListValues(ctx context.Context, dimension string, filter index.Filter) (index.Result, error) {
	s.filters = append(s.filters, filter)
	if s.err != nil {
		return nil, s.err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	date, _ := filter.Get("date")
	tm, _ := filter.Get("time")
	if s.runs != nil && !s.runs[date+tm] {
		return index.Result{}, nil
	}

	param, _ := filter.Get("param")
	number, _ := filter.Get("number")
	model, _ := filter.Get("model")
	col, err := s.catalog.Collection(model)
	if err != nil {
		return nil, err
	}

	steps := col.Steps
	for _, p := range s.catalog.Parameters() {
		if p.ID == param && p.Constant {
			steps = 1
		}
	}

	skip := make(map[int]bool)
	for _, st := range s.missing[param][number] {
		skip[st] = true
	}
	var values []string
	for st := range steps {
		if !skip[st] {
			values = append(values, strconv.Itoa(st))
		}
	}
	return index.Result{dimension: index.NewValueSet(values...)}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveStatus(t *testing.T) {
	cat := DefaultCatalog()
	idx := &stepIndex{
		catalog: cat,
		missing: map[string]map[string][]int{
			"500004": {"0": {0}, "1": {0}},
			"500006": {"0": {30, 31}, "9": {0, 1}},
			"500001": {"1": {0}, "2": {10}},
		},
	}
	checker := NewChecker(idx, cat, quietLogger())

	status, err := checker.ArchiveStatus(context.Background(), "icon-ch1-eps", mustParse(t, "2025-02-02T03:00:00Z"))
	if err != nil {
		t.Fatalf("ArchiveStatus error: %v", err)
	}

	c, okC := status.Matrix("c")
	p, okP := status.Matrix("p")
	ml, okML := status.Matrix("")
	if !okC || !okP || !okML {
		t.Fatalf("missing suffixes in status: %+v", status)
	}

	absent := []struct {
		m            Matrix
		member, step int
	}{
		{c, 0, 0}, {c, 1, 0},
		{p, 0, 30}, {p, 0, 31}, {p, 9, 0}, {p, 9, 1},
		{ml, 1, 0}, {ml, 2, 10},
	}
	for _, a := range absent {
		if a.m[a.member][a.step] != Absent {
			t.Errorf("cell [%d][%d] = %d, want absent", a.member, a.step, a.m[a.member][a.step])
		}
	}

	total := 0
	for _, ps := range status {
		total += ps.Matrix.Count()
	}
	if want := 11 + 11*33 + 11*33 - 8; total != want {
		t.Errorf("present cells = %d, want %d", total, want)
	}

	if got := len(idx.filters); got != 3*11 {
		t.Errorf("index queries = %d, want %d", got, 3*11)
	}
}

func TestArchiveStatus_FilterPerMember(t *testing.T) {
	cat := DefaultCatalog()
	idx := &stepIndex{catalog: cat}
	checker := NewChecker(idx, cat, quietLogger())

	if _, err := checker.ArchiveStatus(context.Background(), "icon-ch1-eps", mustParse(t, "2025-02-02T03:00:00Z")); err != nil {
		t.Fatalf("ArchiveStatus error: %v", err)
	}

	first := idx.filters[0]
	want := "date=20250202,levtype=sfc,model=icon-ch1-eps,number=0,param=500004,time=0300"
	if got := first.String(); got != want {
		t.Errorf("first filter = %q, want %q", got, want)
	}
	for i, f := range idx.filters[:11] {
		if n, _ := f.Get("number"); n != strconv.Itoa(i) {
			t.Errorf("filter %d has number %q", i, n)
		}
	}
	// The pressure level filter must not leak into the constant field queries or vice versa.
	if v, _ := idx.filters[11].Get("levtype"); v != "pl" {
		t.Errorf("pressure level filter levtype = %q", v)
	}
	if _, ok := idx.filters[10].Get("levelist"); ok {
		t.Error("constant field filter carries a levelist")
	}
}

func TestParamStatus_ConstantHasOneStep(t *testing.T) {
	cat := DefaultCatalog()
	checker := NewChecker(&stepIndex{catalog: cat}, cat, quietLogger())

	for _, model := range cat.Models() {
		col := mustCollection(t, model)
		for _, p := range cat.Parameters() {
			m, err := checker.ParamStatus(context.Background(), model, p, "20250101", "0000")
			if err != nil {
				t.Fatalf("ParamStatus error: %v", err)
			}
			wantSteps := col.Steps
			if p.Constant {
				wantSteps = 1
			}
			if m.Members() != col.Members || m.Steps() != wantSteps {
				t.Errorf("%s/%s: shape %dx%d, want %dx%d", model, p.ID, m.Members(), m.Steps(), col.Members, wantSteps)
			}
			if m.Count() != col.Members*wantSteps {
				t.Errorf("%s/%s: %d present, want all", model, p.ID, m.Count())
			}
		}
	}
}

func TestParamStatus_EmptyResultIsAbsent(t *testing.T) {
	cat := DefaultCatalog()
	checker := NewChecker(index.NewMemoryIndex(), cat, quietLogger())

	m, err := checker.ParamStatus(context.Background(), "icon-ch2-eps", cat.Parameters()[1], "20250101", "0600")
	if err != nil {
		t.Fatalf("ParamStatus error: %v", err)
	}
	if m.Count() != 0 || m.Members() != 21 || m.Steps() != 121 {
		t.Errorf("unexpected matrix: %d present, %dx%d", m.Count(), m.Members(), m.Steps())
	}
}

func TestArchiveStatus_QueryErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	cat := DefaultCatalog()
	idx := &stepIndex{catalog: cat, err: boom}
	checker := NewChecker(idx, cat, quietLogger())

	var hooked []error
	checker.OnQuery(func(d time.Duration, err error) { hooked = append(hooked, err) })

	_, err := checker.ArchiveStatus(context.Background(), "icon-ch1-eps", mustParse(t, "2025-02-02T03:00:00Z"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if len(idx.filters) != 1 {
		t.Errorf("queries after failure = %d, want 1", len(idx.filters))
	}
	if len(hooked) != 1 || !errors.Is(hooked[0], boom) {
		t.Errorf("query hook saw %v", hooked)
	}
}

func TestArchiveStatus_UnknownModel(t *testing.T) {
	idx := &stepIndex{catalog: DefaultCatalog()}
	checker := NewChecker(idx, nil, quietLogger())

	_, err := checker.ArchiveStatus(context.Background(), "cosmo-1e", time.Now())
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	if len(idx.filters) != 0 {
		t.Error("queries issued for unknown model")
	}
}

func TestArchiveStatus_InvalidFieldFilter(t *testing.T) {
	cat, err := NewCatalog(
		[]Collection{{Model: "m", Members: 2, Steps: 2, Forecasts: 1, Interval: time.Hour}},
		[]Parameter{{ID: "1", FieldFilter: map[string]string{"grid": "rotlatlon"}}},
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	idx := index.NewMemoryIndex()
	checker := NewChecker(idx, cat, quietLogger())

	_, err = checker.ArchiveStatus(context.Background(), "m", mustParse(t, "2025-01-01T00:00:00Z"))
	if !errors.Is(err, index.ErrInvalidFilterKey) {
		t.Fatalf("expected ErrInvalidFilterKey, got %v", err)
	}
	if idx.Queries() != 0 {
		t.Error("query issued for invalid filter")
	}
}

func TestNewMatrix(t *testing.T) {
	m := NewMatrix(3, 4)
	if m.Members() != 3 || m.Steps() != 4 || m.Count() != 0 {
		t.Errorf("NewMatrix(3, 4) = %v", m)
	}
	m[0][0] = Present
	if m[1][0] != Absent {
		t.Error("rows share backing storage")
	}
	if (Matrix{}).Steps() != 0 {
		t.Error("empty matrix should have 0 steps")
	}
}
