package models

import "time"

// Wing is a named grade-range bucket within a school, e.g. Primary covering
// grades 1-5. Grade ranges across a school's wings are contiguous and
// non-overlapping; each wing has exactly one HOD per subject.
type Wing struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	MinGrade  int       `db:"min_grade" json:"min_grade"`
	MaxGrade  int       `db:"max_grade" json:"max_grade"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ContainsGrade reports whether the grade falls inside the wing's range.
func (w *Wing) ContainsGrade(grade int) bool {
	return grade >= w.MinGrade && grade <= w.MaxGrade
}

// School is the tenant boundary. Every entity carries a school id and no
// query or mutation may cross it.
type School struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
