package archive

import (
	"fmt"
	"strings"
)

// Classification is the archival state of a whole forecast run.
type Classification int

const (
	// Missing means no expected file is present.
	Missing Classification = iota
	// Complete means every expected file is present.
	Complete
	// Incomplete means some but not all expected files are present.
	Incomplete
)

func (c Classification) String() string {
	switch c {
	case Missing:
		return "MISSING"
	case Complete:
		return "COMPLETE"
	case Incomplete:
		return "INCOMPLETE"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	switch c {
	case Missing, Complete, Incomplete:
		return []byte(c.String()), nil
	default:
		return nil, fmt.Errorf("invalid classification %d", int(c))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Classification) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "MISSING":
		*c = Missing
	case "COMPLETE":
		*c = Complete
	case "INCOMPLETE":
		*c = Incomplete
	default:
		return fmt.Errorf("invalid classification %q", string(text))
	}
	return nil
}

// SummaryStatus classifies a run from its archive status. A status with no
// cells at all counts as complete, since nothing expected is absent.
func SummaryStatus(status ArchiveStatus) Classification {
	anySuccess := false
	allSuccess := true
	for _, ps := range status {
		for _, steps := range ps.Matrix {
			for _, cell := range steps {
				if cell == Present {
					anySuccess = true
				} else {
					allSuccess = false
				}
			}
		}
	}

	if allSuccess {
		return Complete
	}
	if anySuccess {
		return Incomplete
	}
	return Missing
}

// FailedFiles lists the file name of every absent cell, ordered by file
// variant (in status order), then member, then step.
func FailedFiles(status ArchiveStatus) []string {
	var failed []string
	for _, ps := range status {
		for member, steps := range ps.Matrix {
			for step, cell := range steps {
				if cell != Present {
					failed = append(failed, FXFilename(ps.Suffix, member, step))
				}
			}
		}
	}
	return failed
}
