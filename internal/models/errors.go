package models

import (
	"fmt"
)

// DispatchError represents an error returned by the external actions API when
// dispatching a sequence step's action
type DispatchError struct {
	Action     ActionType
	StatusCode int
	Message    string
	Retriable  bool
	Err        error
}

func (e *DispatchError) Error() string {
	retriableStr := "non-retriable"
	if e.Retriable {
		retriableStr = "retriable"
	}

	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s dispatch error (%s): HTTP %d - %s (caused by: %v)",
				e.Action, retriableStr, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("%s dispatch error (%s): HTTP %d - %s",
			e.Action, retriableStr, e.StatusCode, e.Message)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s dispatch error (%s): %s (caused by: %v)",
			e.Action, retriableStr, e.Message, e.Err)
	}
	return fmt.Sprintf("%s dispatch error (%s): %s", e.Action, retriableStr, e.Message)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsRetriable returns true if a later pass may succeed
func (e *DispatchError) IsRetriable() bool {
	return e.Retriable
}

// NewDispatchError creates a new DispatchError
func NewDispatchError(action ActionType, statusCode int, message string, retriable bool, err error) *DispatchError {
	return &DispatchError{
		Action:     action,
		StatusCode: statusCode,
		Message:    message,
		Retriable:  retriable,
		Err:        err,
	}
}

// EnrollmentError ties a processing failure to the enrollment it occurred on,
// so one failure can be reported without aborting the batch
type EnrollmentError struct {
	EnrollmentID int64
	LeadID       int64
	Stage        string // e.g., "exit_check", "dispatch", "persist"
	Err          error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment %d (lead %d) failed at %s: %v",
		e.EnrollmentID, e.LeadID, e.Stage, e.Err)
}

func (e *EnrollmentError) Unwrap() error {
	return e.Err
}

// NewEnrollmentError creates a new EnrollmentError
func NewEnrollmentError(enrollmentID, leadID int64, stage string, err error) *EnrollmentError {
	return &EnrollmentError{
		EnrollmentID: enrollmentID,
		LeadID:       leadID,
		Stage:        stage,
		Err:          err,
	}
}
