// Package archive reconciles the expected output of ensemble forecast runs
// against what the FDB metadata index reports as archived.
//
// A forecast run is expected to produce one file per (parameter file
// variant, ensemble member, forecast step). The package derives which run
// should already be archived (LastRunTime), asks the index which steps exist
// for every member and variant (Checker.ArchiveStatus), reduces the presence
// matrices to a Classification (SummaryStatus), lists the missing files by
// name (FailedFiles), and walks back over the retention window to catch runs
// that were evicted early (Checker.History).
package archive

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownModel is returned when a model has no collection profile.
var ErrUnknownModel = errors.New("unknown model")

// Collection describes the archive layout and cadence of one forecast model.
type Collection struct {
	Model string `yaml:"model" json:"model"`
	// Members is the ensemble size.
	Members int `yaml:"members" json:"members"`
	// Steps is the number of hourly lead times per member.
	Steps int `yaml:"steps" json:"steps"`
	// Forecasts is how many runs, including the latest, are retained in the archive.
	Forecasts int `yaml:"forecasts" json:"forecasts"`
	// Interval is the time between run starts.
	Interval time.Duration `yaml:"interval" json:"interval"`
	// Delay is how long after the run start the archive is expected to be complete.
	Delay time.Duration `yaml:"delay" json:"delay"`
}

// Validate checks that the profile describes a non-empty, schedulable collection.
func (c Collection) Validate() error {
	if c.Model == "" {
		return errors.New("collection model cannot be empty")
	}
	if c.Members <= 0 {
		return fmt.Errorf("collection %q: members must be > 0", c.Model)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("collection %q: steps must be > 0", c.Model)
	}
	if c.Forecasts <= 0 {
		return fmt.Errorf("collection %q: forecasts must be > 0", c.Model)
	}
	if c.Interval < time.Second || c.Interval%time.Second != 0 {
		return fmt.Errorf("collection %q: interval must be a whole number of seconds >= 1s, got %v", c.Model, c.Interval)
	}
	if c.Delay < 0 {
		return fmt.Errorf("collection %q: delay cannot be negative", c.Model)
	}
	return nil
}

// Parameter identifies one file variant of a forecast by a field that every
// file of that variant contains. An archival error loses the whole file, so
// the presence of this one field stands for the presence of the file.
type Parameter struct {
	// ID is the GRIB parameter id queried in the index.
	ID string `yaml:"id" json:"id"`
	// FileSuffix is appended to the file name and keys the archive status.
	FileSuffix string `yaml:"file_suffix" json:"fileSuffix"`
	// Constant parameters exist only at step 0.
	Constant bool `yaml:"constant" json:"constant"`
	// FieldFilter holds extra index keys that select the field, e.g. its level.
	FieldFilter map[string]string `yaml:"field_filter" json:"fieldFilter,omitempty"`
}

// Catalog is the read-only table of collection profiles and the parameter
// list shared by all collections.
type Catalog struct {
	collections map[string]Collection
	params      []Parameter
}

var defaultCollections = []Collection{
	{
		Model:     "icon-ch1-eps",
		Members:   11,
		Steps:     33,
		Forecasts: 8,
		Interval:  3 * time.Hour,
		Delay:     2*time.Hour + 30*time.Minute,
	},
	{
		Model:     "icon-ch2-eps",
		Members:   21,
		Steps:     121,
		Forecasts: 4,
		Interval:  6 * time.Hour,
		Delay:     3*time.Hour + 30*time.Minute,
	},
}

// The poller archives the hourly rotated lat/lon GRIB files for constant
// fields (suffix "c"), single and model level fields (no suffix) and pressure
// level fields (suffix "p"). Each file holds all fields of its variant for one
// step and member.
var defaultParameters = []Parameter{
	{ID: "500004", FileSuffix: "c", Constant: true, FieldFilter: map[string]string{"levtype": "sfc"}},
	{ID: "500006", FileSuffix: "p", FieldFilter: map[string]string{"levelist": "200", "levtype": "pl"}},
	{ID: "500001", FileSuffix: "", FieldFilter: map[string]string{"levelist": "1", "levtype": "ml"}},
}

// DefaultCatalog returns the built-in ICON-CH1-EPS and ICON-CH2-EPS profiles.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultCollections, defaultParameters)
	if err != nil {
		panic(fmt.Sprintf("default catalog: %v", err))
	}
	return c
}

// NewCatalog validates and copies the given profiles and parameters.
func NewCatalog(collections []Collection, params []Parameter) (*Catalog, error) {
	if len(collections) == 0 {
		return nil, errors.New("catalog needs at least one collection")
	}
	if len(params) == 0 {
		return nil, errors.New("catalog needs at least one parameter")
	}

	cat := &Catalog{collections: make(map[string]Collection, len(collections))}
	for _, c := range collections {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := cat.collections[c.Model]; dup {
			return nil, fmt.Errorf("duplicate collection %q", c.Model)
		}
		cat.collections[c.Model] = c
	}

	suffixes := make(map[string]bool, len(params))
	for _, p := range params {
		if p.ID == "" {
			return nil, fmt.Errorf("parameter with suffix %q has no id", p.FileSuffix)
		}
		if suffixes[p.FileSuffix] {
			return nil, fmt.Errorf("duplicate parameter file suffix %q", p.FileSuffix)
		}
		suffixes[p.FileSuffix] = true
		p.FieldFilter = maps.Clone(p.FieldFilter)
		cat.params = append(cat.params, p)
	}
	return cat, nil
}

// Collection returns the profile for model.
func (c *Catalog) Collection(model string) (Collection, error) {
	col, ok := c.collections[model]
	if !ok {
		return Collection{}, fmt.Errorf("%w %q (known: %v)", ErrUnknownModel, model, c.Models())
	}
	return col, nil
}

// Models returns the known model names in lexical order.
func (c *Catalog) Models() []string {
	return slices.Sorted(maps.Keys(c.collections))
}

// Parameters returns a copy of the parameter list in check order.
func (c *Catalog) Parameters() []Parameter {
	out := make([]Parameter, len(c.params))
	for i, p := range c.params {
		p.FieldFilter = maps.Clone(p.FieldFilter)
		out[i] = p
	}
	return out
}

type catalogFile struct {
	Collections []Collection `yaml:"collections"`
	Parameters  []Parameter  `yaml:"parameters"`
}

// LoadCatalog reads a catalog from a YAML file:
//
//	collections:
//	  - model: icon-ch1-eps
//	    members: 11
//	    steps: 33
//	    forecasts: 8
//	    interval: 3h
//	    delay: 2h30m
//	parameters:
//	  - id: "500004"
//	    file_suffix: c
//	    constant: true
//	    field_filter: {levtype: sfc}
//
// When parameters is omitted the built-in parameter list is used.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if len(f.Parameters) == 0 {
		f.Parameters = defaultParameters
	}
	cat, err := NewCatalog(f.Collections, f.Parameters)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}
