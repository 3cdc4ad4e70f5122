package verify

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"
)

// Attendance statuses reported by the checker
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusPending = "pending"
	StatusUnknown = "unknown"
	StatusError   = "error"
)

// Student is one row of the attendance report
type Student struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Time      string `json:"time"` // "08:45", empty when not recorded
}

// Report is the result of one verification
type Report struct {
	Results   []Student `json:"results"`
	CheckedAt time.Time `json:"checked_at"`
}

// Date returns the attendance date of the report
func (r *Report) Date() string {
	for _, s := range r.Results {
		if s.Date != "" {
			return s.Date
		}
	}
	return r.CheckedAt.Format("2006-01-02")
}

// WithStatus returns the students with the given status, in report order
func (r *Report) WithStatus(status string) []Student {
	var out []Student
	for _, s := range r.Results {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

// Present returns present students ordered by check-in time. Students
// without a recorded time come last.
func (r *Report) Present() []Student {
	present := r.WithStatus(StatusPresent)
	sort.SliceStable(present, func(i, j int) bool {
		a, b := present[i].Time, present[j].Time
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})
	return present
}

// Counts returns the number of students per status
func (r *Report) Counts() map[string]int {
	counts := make(map[string]int)
	for _, s := range r.Results {
		counts[s.Status]++
	}
	return counts
}

var csvHeader = []string{"name", "student_id", "date", "status", "time"}

// WriteCSV writes the report as CSV with a header row
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, s := range r.Results {
		if err := cw.Write([]string{s.Name, s.StudentID, s.Date, s.Status, s.Time}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFilename returns the default export filename for the report
func (r *Report) CSVFilename() string {
	return fmt.Sprintf("kkn_attendance_%s.csv", r.CheckedAt.Format("20060102"))
}
