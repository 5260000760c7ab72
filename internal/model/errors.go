package model

import (
	"errors"
	"fmt"
)

// ErrQuestionNotFound is matched by every *NotFoundError
var ErrQuestionNotFound = errors.New("question not found")

// NotFoundError reports an unknown question id
type NotFoundError struct {
	QuestionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("question %q not found", e.QuestionID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrQuestionNotFound
}

// StorageError wraps a failure of the persistence layer
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err, returning nil for a nil err
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ValidationErrors maps a field name to its validation message
type ValidationErrors map[string]string
