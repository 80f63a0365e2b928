package models

import "time"

// Audit actions recorded for workflow transitions and scheduler events.
// Every state transition appends its audit row in the same transaction as
// the status write.
const (
	AuditActionLogin           = "LOGIN"
	AuditQuestionSubmit        = "QUESTION_SUBMIT"
	AuditQuestionApprove       = "QUESTION_APPROVE"
	AuditQuestionReject        = "QUESTION_REJECT"
	AuditQuestionResubmit      = "QUESTION_RESUBMIT"
	AuditBlueprintApprove      = "BLUEPRINT_APPROVE"
	AuditPaperGenerate         = "PAPER_GENERATE"
	AuditPaperAdvance          = "PAPER_ADVANCE"
	AuditPaperSentBack         = "PAPER_SENT_BACK"
	AuditPaperLock             = "PAPER_LOCK"
	AuditPaperUnlock           = "PAPER_UNLOCK"
	AuditPaperPrintMeta        = "PAPER_PRINT_META"
	AuditChapterLock           = "CHAPTER_LOCK"
	AuditChapterUnlock         = "CHAPTER_UNLOCK"
	AuditChapterDeadline       = "CHAPTER_DEADLINE_SET"
	AuditChapterRevealScores   = "CHAPTER_REVEAL_SCORES"
	AuditChapterSweepComplete  = "CHAPTER_SWEEP_COMPLETE"
	AuditChapterSweepAttention = "CHAPTER_SWEEP_ATTENTION"
)

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	Detail     string    `db:"detail" json:"detail"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
