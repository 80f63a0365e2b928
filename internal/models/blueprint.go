package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BlueprintStatus tracks the one-way pending -> approved lifecycle.
type BlueprintStatus string

const (
	BlueprintPending  BlueprintStatus = "pending"
	BlueprintApproved BlueprintStatus = "approved"
)

// BlueprintSection describes one block of an exam template. Sections are
// resolved to concrete questions only at paper generation time.
type BlueprintSection struct {
	Name          string       `json:"name"`
	MarksEach     int          `json:"marks_each"`
	QuestionCount int          `json:"question_count"`
	QuestionType  QuestionType `json:"question_type"`
	ChapterID     *string      `json:"chapter_id,omitempty"`
	Difficulty    *Difficulty  `json:"difficulty,omitempty"`
}

// Marks returns the total marks the section contributes.
func (s BlueprintSection) Marks() int {
	return s.MarksEach * s.QuestionCount
}

// BlueprintSections is a JSONB-backed ordered section list.
type BlueprintSections []BlueprintSection

// Value implements driver.Valuer.
func (s BlueprintSections) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *BlueprintSections) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported blueprint sections type %T", src)
	}
}

// TotalSectionMarks sums the marks declared by all sections.
func (s BlueprintSections) TotalSectionMarks() int {
	total := 0
	for _, section := range s {
		total += section.Marks()
	}
	return total
}

// Blueprint is an exam template owned by the HOD who drafts it.
type Blueprint struct {
	ID         string            `db:"id" json:"id"`
	SchoolID   string            `db:"school_id" json:"school_id"`
	Name       string            `db:"name" json:"name"`
	Subject    string            `db:"subject" json:"subject"`
	Grade      int               `db:"grade" json:"grade"`
	TotalMarks int               `db:"total_marks" json:"total_marks"`
	Sections   BlueprintSections `db:"sections" json:"sections"`
	Status     BlueprintStatus   `db:"status" json:"status"`
	CreatorID  string            `db:"creator_id" json:"creator_id"`
	ApproverID *string           `db:"approver_id" json:"approver_id,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// BlueprintFilter captures list criteria for blueprints.
type BlueprintFilter struct {
	SchoolID string
	Subject  string
	Grade    int
	Status   BlueprintStatus
	Page     int
	PageSize int
}
