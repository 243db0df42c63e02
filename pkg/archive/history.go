package archive

import (
	"context"
	"fmt"
	"time"
)

// History classifies the Forecasts-1 runs preceding lastRunStart, most recent
// first. The run at lastRunStart itself is not included. It returns the
// classifications and their run labels as parallel slices.
func (c *Checker) History(ctx context.Context, lastRunStart time.Time, col Collection) ([]Classification, []string, error) {
	n := max(col.Forecasts-1, 0)
	statuses := make([]Classification, 0, n)
	labels := make([]string, 0, n)

	past := lastRunStart
	for range n {
		past = past.Add(-col.Interval)
		status, err := c.ArchiveStatus(ctx, col.Model, past)
		if err != nil {
			return nil, nil, fmt.Errorf("run %s: %w", RunLabel(past), err)
		}
		statuses = append(statuses, SummaryStatus(status))
		labels = append(labels, RunLabel(past))
	}
	return statuses, labels, nil
}

// HistoryEntry is the classification of one past or current run.
type HistoryEntry struct {
	RunStart time.Time      `json:"runStart"`
	Label    string         `json:"label"`
	Status   Classification `json:"status"`
}

// Report is the outcome of checking one model at one point in time.
type Report struct {
	Model     string    `json:"model"`
	CheckedAt time.Time `json:"checkedAt"`
	RunStart  time.Time `json:"runStart"`
	Label     string    `json:"label"`

	// Latest is the full archive status of the run at RunStart.
	Latest ArchiveStatus `json:"latest"`
	// Summary classifies Latest.
	Summary Classification `json:"summary"`
	// History starts with the latest run and continues backwards over the
	// retention window.
	History []HistoryEntry `json:"history"`
	// FailedFiles names the files missing from Latest.
	FailedFiles []string `json:"failedFiles,omitempty"`
}

// OK reports whether the check passes: the latest run is complete and no run
// in the retention window is missing entirely. Incomplete past runs do not
// fail the check; they were reported while they were the latest run.
func (r *Report) OK() bool {
	if r.Summary != Complete {
		return false
	}
	return r.MissingRuns() == 0
}

// MissingRuns counts the runs in History classified as Missing.
func (r *Report) MissingRuns() int {
	n := 0
	for _, h := range r.History {
		switch h.Status {
		case Missing:
			n++
		case Complete, Incomplete:
		}
	}
	return n
}

// Check resolves the latest run of model that should be archived at now and
// reports on it and on the retention window behind it. Any index failure
// aborts the check; no partial report is returned.
func (c *Checker) Check(ctx context.Context, model string, now time.Time) (*Report, error) {
	col, err := c.catalog.Collection(model)
	if err != nil {
		return nil, err
	}

	runStart := LastRunTime(col, now)
	latest, err := c.ArchiveStatus(ctx, model, runStart)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", RunLabel(runStart), err)
	}

	statuses, labels, err := c.History(ctx, runStart, col)
	if err != nil {
		return nil, err
	}

	summary := SummaryStatus(latest)
	history := make([]HistoryEntry, 0, len(statuses)+1)
	history = append(history, HistoryEntry{RunStart: runStart, Label: RunLabel(runStart), Status: summary})
	for i := range statuses {
		history = append(history, HistoryEntry{
			RunStart: runStart.Add(-time.Duration(i+1) * col.Interval),
			Label:    labels[i],
			Status:   statuses[i],
		})
	}

	report := &Report{
		Model:       model,
		CheckedAt:   now.UTC(),
		RunStart:    runStart,
		Label:       RunLabel(runStart),
		Latest:      latest,
		Summary:     summary,
		History:     history,
		FailedFiles: FailedFiles(latest),
	}

	c.logger.Info("archive check complete",
		"model", model,
		"run", report.Label,
		"status", summary.String(),
		"failed_files", len(report.FailedFiles),
		"missing_runs", report.MissingRuns(),
	)
	return report, nil
}
