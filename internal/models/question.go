package models

import "time"

// QuestionStatus is the lifecycle state of a question.
type QuestionStatus string

const (
	QuestionDraft         QuestionStatus = "draft"
	QuestionPendingReview QuestionStatus = "pending_review"
	QuestionApproved      QuestionStatus = "approved"
	QuestionRejected      QuestionStatus = "rejected"
)

// QuestionType enumerates supported question formats.
type QuestionType string

const (
	QuestionTypeMCQ     QuestionType = "mcq"
	QuestionTypeShort   QuestionType = "short"
	QuestionTypeLong    QuestionType = "long"
	QuestionTypeNumeric QuestionType = "numeric"
)

// Difficulty buckets used by blueprint section filters.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a bank entry. It is owned by the creating teacher until
// approved; approval moves canonical ownership to the question bank and the
// record becomes eligible for paper generation.
type Question struct {
	ID            string         `db:"id" json:"id"`
	SchoolID      string         `db:"school_id" json:"school_id"`
	Subject       string         `db:"subject" json:"subject"`
	ChapterID     *string        `db:"chapter_id" json:"chapter_id,omitempty"`
	Grade         int            `db:"grade" json:"grade"`
	Content       string         `db:"content" json:"content"`
	Type          QuestionType   `db:"type" json:"type"`
	Marks         int            `db:"marks" json:"marks"`
	Difficulty    Difficulty     `db:"difficulty" json:"difficulty"`
	Status        QuestionStatus `db:"status" json:"status"`
	CreatorID     string         `db:"creator_id" json:"creator_id"`
	ReviewerID    *string        `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewComment *string        `db:"review_comment" json:"review_comment,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// QuestionFilter captures list criteria for the question bank.
type QuestionFilter struct {
	SchoolID  string
	Subject   string
	ChapterID string
	Grade     int
	Status    QuestionStatus
	CreatorID string
	Page      int
	PageSize  int
}

// ReviewDecision is the HOD verdict on a pending question.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)
