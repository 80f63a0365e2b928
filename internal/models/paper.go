package models

import (
	"time"

	"github.com/lib/pq"
)

// PaperStatus is the workflow state of a generated paper.
//
// The normal forward path is draft -> sent_for_review -> sent_to_committee
// -> approved_for_print -> locked -> printed. The committee may send a paper
// back (returning it to draft with a recorded reason) and may unlock a
// locked paper (locked -> approved_for_print), which is the single sanctioned
// backward transition and is always audited.
type PaperStatus string

const (
	PaperDraft            PaperStatus = "draft"
	PaperSentForReview    PaperStatus = "sent_for_review"
	PaperSentToCommittee  PaperStatus = "sent_to_committee"
	PaperApprovedForPrint PaperStatus = "approved_for_print"
	PaperSentBack         PaperStatus = "sent_back"
	PaperLocked           PaperStatus = "locked"
	PaperPrinted          PaperStatus = "printed"
)

// Paper is a concrete exam instance resolved from a blueprint. Once locked,
// the question list and section structure are immutable; only print and
// delivery metadata may still change.
type Paper struct {
	ID           string         `db:"id" json:"id"`
	SchoolID     string         `db:"school_id" json:"school_id"`
	BlueprintID  string         `db:"blueprint_id" json:"blueprint_id"`
	Subject      string         `db:"subject" json:"subject"`
	Grade        int            `db:"grade" json:"grade"`
	QuestionIDs  pq.StringArray `db:"question_ids" json:"question_ids"`
	Status       PaperStatus    `db:"status" json:"status"`
	GeneratorID  string         `db:"generator_id" json:"generator_id"`
	Locked       bool           `db:"locked" json:"locked"`
	Copies       int            `db:"copies" json:"copies"`
	Printed      bool           `db:"printed" json:"printed"`
	Delivered    bool           `db:"delivered" json:"delivered"`
	ReturnReason *string        `db:"return_reason" json:"return_reason,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ContentImmutable reports whether the paper's content may no longer change.
func (p *Paper) ContentImmutable() bool {
	return p.Status == PaperLocked || p.Status == PaperPrinted
}

// PaperFilter captures list criteria for papers.
type PaperFilter struct {
	SchoolID string
	Subject  string
	Grade    int
	Status   PaperStatus
	Page     int
	PageSize int
}
