package domain

import "errors"

var (
	// ErrInvalidRequest is returned when required fields are missing.
	ErrInvalidRequest = errors.New("missing required fields")
	// ErrSelfDuel rejects a duel where both sides are the same user.
	ErrSelfDuel = errors.New("cannot challenge yourself")
	// ErrParticipantNotFound is returned when a referenced user does not exist.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrDuelNotFound is returned when the duel does not exist.
	ErrDuelNotFound = errors.New("duel not found")
	// ErrForbiddenParticipant is returned when the caller is neither side of the duel.
	ErrForbiddenParticipant = errors.New("user is not part of this duel")
	// ErrDuplicateAnswer is returned when a side has already answered.
	ErrDuplicateAnswer = errors.New("answer already submitted")
	// ErrQuestionUnavailable indicates the question bank had nothing for the category.
	ErrQuestionUnavailable = errors.New("no question available for category")
	// ErrStoreConflict signals a concurrent-write collision on a duel record.
	ErrStoreConflict = errors.New("duel store version conflict")
)
