package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/HatiCode/fdbwatch/pkg/index"
)

// Cell values of a presence Matrix.
const (
	Absent  = 0
	Present = 1
)

// Matrix records which files of one variant are archived, indexed
// [member][step], with cells Absent or Present.
type Matrix [][]int

// NewMatrix returns an all-Absent matrix of the given shape.
func NewMatrix(members, steps int) Matrix {
	m := make(Matrix, members)
	for i := range m {
		m[i] = make([]int, steps)
	}
	return m
}

// Members returns the number of rows.
func (m Matrix) Members() int { return len(m) }

// Steps returns the number of columns, 0 for an empty matrix.
func (m Matrix) Steps() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Count returns the number of present cells.
func (m Matrix) Count() int {
	n := 0
	for _, row := range m {
		for _, cell := range row {
			if cell == Present {
				n++
			}
		}
	}
	return n
}

// ParamStatus is the presence matrix of one file variant.
type ParamStatus struct {
	Suffix string `json:"suffix"`
	Matrix Matrix `json:"matrix"`
}

// ArchiveStatus holds the presence matrix of every file variant of one run,
// in parameter order.
type ArchiveStatus []ParamStatus

// Matrix returns the matrix for a file suffix.
func (s ArchiveStatus) Matrix(suffix string) (Matrix, bool) {
	for _, ps := range s {
		if ps.Suffix == suffix {
			return ps.Matrix, true
		}
	}
	return nil, false
}

// ExpectedShape returns the number of members and steps expected for p in c.
// Constant parameters are only defined at step 0.
func ExpectedShape(c Collection, p Parameter) (members, steps int) {
	if p.Constant {
		return c.Members, 1
	}
	return c.Members, c.Steps
}

// Checker queries the metadata index for the archival state of forecast runs.
// A Checker holds no state between calls; every call builds fresh matrices.
type Checker struct {
	index   index.Index
	catalog *Catalog
	logger  *slog.Logger
	onQuery func(d time.Duration, err error)
}

// NewChecker creates a Checker over idx using the profiles in catalog.
func NewChecker(idx index.Index, catalog *Catalog, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Checker{
		index:   idx,
		catalog: catalog,
		logger:  logger,
	}
}

// OnQuery registers a hook called after every index query with its duration
// and error. Used for instrumentation.
func (c *Checker) OnQuery(fn func(d time.Duration, err error)) {
	c.onQuery = fn
}

// Catalog returns the catalog the checker resolves models against.
func (c *Checker) Catalog() *Catalog {
	return c.catalog
}

// ParamStatus returns the presence matrix of p for the run of model at date
// (YYYYMMDD) and time (HHMM). It issues one index query per member.
func (c *Checker) ParamStatus(ctx context.Context, model string, p Parameter, date, tm string) (Matrix, error) {
	col, err := c.catalog.Collection(model)
	if err != nil {
		return nil, err
	}
	members, steps := ExpectedShape(col, p)

	base := index.NewFilter(map[string]string{
		"param": p.ID,
		"model": model,
		"date":  date,
		"time":  tm,
	})

	status := NewMatrix(members, steps)
	for member := range members {
		filter := base.With("number", strconv.Itoa(member)).Merge(p.FieldFilter)

		start := time.Now()
		res, err := c.index.ListValues(ctx, "step", filter)
		if c.onQuery != nil {
			c.onQuery(time.Since(start), err)
		}
		if err != nil {
			return nil, fmt.Errorf("list steps for %s: %w", filter, err)
		}

		present := res["step"]
		for step := range steps {
			if present.Contains(strconv.Itoa(step)) {
				status[member][step] = Present
			}
		}
	}

	c.logger.Debug("parameter status",
		"model", model,
		"param", p.ID,
		"suffix", p.FileSuffix,
		"date", date,
		"time", tm,
		"present", status.Count(),
		"expected", members*steps,
	)
	return status, nil
}

// ArchiveStatus returns the presence matrices of every parameter for the run
// of model starting at forecast.
func (c *Checker) ArchiveStatus(ctx context.Context, model string, forecast time.Time) (ArchiveStatus, error) {
	if _, err := c.catalog.Collection(model); err != nil {
		return nil, err
	}

	forecast = forecast.UTC()
	date := forecast.Format("20060102")
	tm := forecast.Format("15") + "00"

	params := c.catalog.Parameters()
	status := make(ArchiveStatus, 0, len(params))
	for _, p := range params {
		m, err := c.ParamStatus(ctx, model, p, date, tm)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.ID, err)
		}
		status = append(status, ParamStatus{Suffix: p.FileSuffix, Matrix: m})
	}
	return status, nil
}
