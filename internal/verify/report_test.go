package verify

import (
	"bytes"
	"testing"
	"time"
)

func sampleReport() *Report {
	return &Report{
		CheckedAt: time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC),
		Results: []Student{
			{Name: "Citra", StudentID: "3", Date: "2025-07-14", Status: StatusPresent, Time: "09:10"},
			{Name: "Ayu", StudentID: "1", Date: "2025-07-14", Status: StatusAbsent},
			{Name: "Dewi", StudentID: "4", Date: "2025-07-14", Status: StatusPresent},
			{Name: "Budi", StudentID: "2", Date: "2025-07-14", Status: StatusPresent, Time: "07:55"},
			{Name: "Eka", StudentID: "5", Date: "2025-07-14", Status: StatusPending, Time: "10:00"},
		},
	}
}

func TestPresentOrdering(t *testing.T) {
	got := sampleReport().Present()
	want := []string{"Budi", "Citra", "Dewi"}
	if len(got) != len(want) {
		t.Fatalf("Present() returned %d students, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("Present()[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestCounts(t *testing.T) {
	counts := sampleReport().Counts()
	tests := []struct {
		status string
		want   int
	}{
		{StatusPresent, 3},
		{StatusAbsent, 1},
		{StatusPending, 1},
		{StatusError, 0},
	}
	for _, tt := range tests {
		if counts[tt.status] != tt.want {
			t.Errorf("Counts()[%s] = %d, want %d", tt.status, counts[tt.status], tt.want)
		}
	}
}

func TestDateFallback(t *testing.T) {
	r := &Report{CheckedAt: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)}
	if got := r.Date(); got != "2025-08-01" {
		t.Errorf("Date() = %q, want 2025-08-01", got)
	}
}

func TestWriteCSV(t *testing.T) {
	r := &Report{Results: []Student{
		{Name: "Ayu, S.", StudentID: "1", Date: "2025-07-14", Status: StatusPresent, Time: "08:00"},
		{Name: "Budi", StudentID: "2", Date: "2025-07-14", Status: StatusAbsent},
	}}

	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "name,student_id,date,status,time\n" +
		"\"Ayu, S.\",1,2025-07-14,present,08:00\n" +
		"Budi,2,2025-07-14,absent,\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestCSVFilename(t *testing.T) {
	if got := sampleReport().CSVFilename(); got != "kkn_attendance_20250714.csv" {
		t.Errorf("CSVFilename() = %q", got)
	}
}
