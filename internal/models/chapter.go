package models

import "time"

// ChapterStatus gates student access to chapter tests.
type ChapterStatus string

const (
	ChapterDraft     ChapterStatus = "draft"
	ChapterLocked    ChapterStatus = "locked"
	ChapterUnlocked  ChapterStatus = "unlocked"
	ChapterCompleted ChapterStatus = "completed"
)

// Chapter is a (subject, grade) test unit ordered by OrderIndex. Deadlines
// are independent of status: they may be set or edited while locked or
// unlocked. A chapter becomes completed only after its deadline passes and
// at least one attempt exists; it never leaves completed automatically.
type Chapter struct {
	ID             string        `db:"id" json:"id"`
	SchoolID       string        `db:"school_id" json:"school_id"`
	Subject        string        `db:"subject" json:"subject"`
	Grade          int           `db:"grade" json:"grade"`
	Name           string        `db:"name" json:"name"`
	OrderIndex     int           `db:"order_index" json:"order_index"`
	Status         ChapterStatus `db:"status" json:"status"`
	Deadline       *time.Time    `db:"deadline" json:"deadline,omitempty"`
	ScoresRevealed bool          `db:"scores_revealed" json:"scores_revealed"`
	NeedsAttention bool          `db:"needs_attention" json:"needs_attention"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// AttemptOpen reports whether a new attempt may start at the given instant.
// Deadlines gate new starts only; they never force-submit work in progress.
func (c *Chapter) AttemptOpen(now time.Time) bool {
	if c.Status != ChapterUnlocked {
		return false
	}
	if c.Deadline == nil {
		return true
	}
	return !now.After(*c.Deadline)
}

// ChapterFilter captures list criteria for chapters.
type ChapterFilter struct {
	SchoolID string
	Subject  string
	Grade    int
	Status   ChapterStatus
}
