package validation

import (
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-officiating/models"
)

// DuplicateReport lists flagged line indices of a bulk registration batch.
type DuplicateReport struct {
	// IntraBatch holds every index whose name occurs more than once in the batch, first
	// occurrence included.
	IntraBatch []int `json:"intra_batch_duplicate_indices"`
	// Colliding holds indices whose name is already registered.
	Colliding      []int    `json:"colliding_indices"`
	CollidingNames []string `json:"colliding_names"`
}

func (r DuplicateReport) HasConflicts() bool {
	return len(r.IntraBatch) > 0 || len(r.Colliding) > 0
}

// Flagged reports whether line i needs fixing.
func (r DuplicateReport) Flagged(i int) bool {
	for _, idx := range r.IntraBatch {
		if idx == i {
			return true
		}
	}
	for _, idx := range r.Colliding {
		if idx == i {
			return true
		}
	}
	return false
}

// DetectDuplicates compares trimmed, case-folded names in one pass. Blank lines are
// never flagged.
func DetectDuplicates(lines []string, existing []string) DuplicateReport {
	existingSet := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		if key := models.NormalizeName(name); key != "" {
			existingSet[key] = struct{}{}
		}
	}

	first := make(map[string]int, len(lines))
	dup := make([]bool, len(lines))
	report := DuplicateReport{}

	for i, line := range lines {
		key := models.NormalizeName(line)
		if key == "" {
			continue
		}
		if j, ok := first[key]; ok {
			dup[j] = true
			dup[i] = true
		} else {
			first[key] = i
		}
		if _, ok := existingSet[key]; ok {
			report.Colliding = append(report.Colliding, i)
			report.CollidingNames = append(report.CollidingNames, strings.TrimSpace(line))
		}
	}

	for i, flagged := range dup {
		if flagged {
			report.IntraBatch = append(report.IntraBatch, i)
		}
	}
	return report
}

// BatchRejectedError rejects a whole bulk batch. No subset is ever registered.
type BatchRejectedError struct {
	Report DuplicateReport
}

func (e *BatchRejectedError) Error() string {
	var parts []string
	if len(e.Report.IntraBatch) > 0 {
		parts = append(parts, fmt.Sprintf("duplicates within your list on lines %s", lineNumbers(e.Report.IntraBatch)))
	}
	if len(e.Report.CollidingNames) > 0 {
		parts = append(parts, "names already registered: "+strings.Join(e.Report.CollidingNames, ", "))
	}
	return "batch rejected: " + strings.Join(parts, "; ")
}

func (e *BatchRejectedError) HasIntraBatch() bool { return len(e.Report.IntraBatch) > 0 }

func (e *BatchRejectedError) HasExisting() bool { return len(e.Report.Colliding) > 0 }

// Err returns a *BatchRejectedError when any line is flagged.
func (r DuplicateReport) Err() error {
	if !r.HasConflicts() {
		return nil
	}
	return &BatchRejectedError{Report: r}
}

func lineNumbers(indices []int) string {
	nums := make([]string, len(indices))
	for i, idx := range indices {
		nums[i] = fmt.Sprint(idx + 1)
	}
	return strings.Join(nums, ", ")
}
