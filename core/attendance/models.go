package attendance

import (
	"time"

	"github.com/andromeda0004/My-Tuition/core"
)

// Record is the presence of one student on one (UTC) day.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	Date      time.Time `json:"date"` // UTC midnight
	Status    bool      `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordDetail is a Record along with a few of its student's fields.
type RecordDetail struct {
	Record
	StudentName string `json:"studentName"`
	Batch       string `json:"batch"`
	Phone       string `json:"phone"`
}

type Entry struct {
	StudentID string `json:"studentId" validate:"required"`
	Status    *bool  `json:"status" validate:"required"`
}

// Mark is a batch of attendance entries for a single day.
type Mark struct {
	Date    string  `json:"date" validate:"required,day"`
	Records []Entry `json:"records" validate:"required,min=1,dive"`
}

func (m *Mark) Clean() {
	m.Date = core.CleanString(m.Date)
	for i := range m.Records {
		m.Records[i].StudentID = core.CleanString(m.Records[i].StudentID)
	}
}

type MarkResult struct {
	// Modified counts existing records whose status changed
	Modified int `json:"modified"`
	Upserted int `json:"upserted"`
	Total    int `json:"total"`
}

type Filter struct {
	StudentID string
	Batch     string
	From      time.Time
	To        time.Time
}

func (f Filter) Match(r Record, batch string) bool {
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	if f.Batch != "" && batch != f.Batch {
		return false
	}
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	return true
}

type StudentInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Batch string `json:"batch"`
	Grade int    `json:"grade"`
}

type StudentAttendance struct {
	Student StudentInfo `json:"student"`
	Count   int         `json:"count"`
	Present int         `json:"present"`
	// Rate is the percentage of present days, rounded to 2 decimals
	Rate    float64  `json:"rate"`
	Records []Record `json:"attendanceRecords"`
}
