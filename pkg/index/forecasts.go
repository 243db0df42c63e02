package index

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultForecastFilter narrows a listing to one field per run: the surface
// fields of member 1 at step 0.
func DefaultForecastFilter() Filter {
	return NewFilter(map[string]string{
		"levtype": "sfc",
		"step":    "0",
		"number":  "1",
	})
}

// ArchivedForecasts returns the start times of the forecast runs with at
// least one field matching filter, oldest first. An empty filter is replaced
// by DefaultForecastFilter.
//
// It lists the archived dates, then the run times of each date, so a run is
// only reported for a date/time pair that is actually archived.
func ArchivedForecasts(ctx context.Context, idx Index, filter Filter) ([]time.Time, error) {
	if filter.Len() == 0 {
		filter = DefaultForecastFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	dates, err := idx.ListValues(ctx, "date", filter)
	if err != nil {
		return nil, fmt.Errorf("list dates for %s: %w", filter, err)
	}

	var runs []time.Time
	for _, date := range dates["date"].Sorted() {
		byDate := filter.With("date", date)
		times, err := idx.ListValues(ctx, "time", byDate)
		if err != nil {
			return nil, fmt.Errorf("list times for %s: %w", byDate, err)
		}
		for _, tm := range times["time"].Sorted() {
			run, err := parseRunTime(date, tm)
			if err != nil {
				return nil, err
			}
			runs = append(runs, run)
		}
	}

	slices.SortFunc(runs, func(a, b time.Time) int { return a.Compare(b) })
	return runs, nil
}

// parseRunTime combines an index date (YYYYMMDD) and time (HHMM, leading
// zeros optional) into a UTC instant.
func parseRunTime(date, tm string) (time.Time, error) {
	if len(tm) < 4 {
		tm = strings.Repeat("0", 4-len(tm)) + tm
	}
	t, err := time.Parse("200601021504", date+tm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid run date/time %s:%s: %w", date, tm, err)
	}
	return t, nil
}
