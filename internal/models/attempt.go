package models

import "time"

// Attempt is one student sitting of a chapter test. Rows are immutable once
// submitted; the risk engine reads them but never writes.
type Attempt struct {
	ID           string    `db:"id" json:"id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	ChapterID    string    `db:"chapter_id" json:"chapter_id"`
	PaperID      *string   `db:"paper_id" json:"paper_id,omitempty"`
	Subject      string    `db:"subject" json:"subject"`
	Grade        int       `db:"grade" json:"grade"`
	Score        float64   `db:"score" json:"score"`
	MaxScore     float64   `db:"max_score" json:"max_score"`
	Percentage   float64   `db:"percentage" json:"percentage"`
	TabSwitches  int       `db:"tab_switches" json:"tab_switches"`
	AbsenceFlags int       `db:"absence_flags" json:"absence_flags"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}

// AttemptFilter captures read criteria for attempt history.
type AttemptFilter struct {
	SchoolID  string
	StudentID string
	ChapterID string
	Subject   string
	Grade     int
	From      *time.Time
	To        *time.Time
}
