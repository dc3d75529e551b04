package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyInRoom    = errors.New("one or more users are already in a room")
	ErrRoomNotFound     = errors.New("room not found")
	ErrIDSpaceExhausted = errors.New("could not allocate a unique room id")
)

// Request field names, as they appear on the wire.
const (
	FieldRoomID           = "room-id"
	FieldUserIDs          = "user-ids"
	FieldQuestionID       = "question-id"
	FieldQuestionLangSlug = "question-lang-slug"
)

// ValidationError lists the invalid fields of a request with a reason for
// each. It matches ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns nil when fields is empty.
func NewValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
