package domain

import (
	"errors"
	"fmt"
)

// Kind identifies a specific failure reported by the activity core.
type Kind string

const (
	KindValidation              Kind = "validation_error"
	KindBadRequest              Kind = "bad_request"
	KindParentIDNotRequired     Kind = "parent_id_not_required"
	KindParentIDRequired        Kind = "parent_id_required"
	KindParentNotFound          Kind = "parent_not_found"
	KindStartTimeRequired       Kind = "start_time_required"
	KindEndTimeRequired         Kind = "end_time_required"
	KindStaffHasOngoingActivity Kind = "staff_has_ongoing_activity"
	KindNotFound                Kind = "not_found"
	KindNoResourcesFound        Kind = "no_resources_found"
	KindStorage                 Kind = "storage_failure"
)

// Category groups kinds by how a caller is expected to react to them.
type Category string

const (
	CategoryValidation          Category = "validation"
	CategoryDomainRuleViolation Category = "domain_rule_violation"
	CategoryNotFound            Category = "not_found"
	CategoryNoResourcesFound    Category = "no_resources_found"
	CategoryStorage             Category = "storage"
)

// Category returns the taxonomy group of k.
func (k Kind) Category() Category {
	switch k {
	case KindValidation, KindBadRequest:
		return CategoryValidation
	case KindParentIDNotRequired, KindParentIDRequired, KindParentNotFound,
		KindStartTimeRequired, KindEndTimeRequired, KindStaffHasOngoingActivity:
		return CategoryDomainRuleViolation
	case KindNotFound:
		return CategoryNotFound
	case KindNoResourcesFound:
		return CategoryNoResourcesFound
	default:
		return CategoryStorage
	}
}

// Messages returned to callers for the fixed failures.
const (
	MsgBadRequest          = "Bad Request"
	MsgNotExist            = "Activity id does not exist"
	MsgNoResources         = "No resources match the search criteria"
	MsgParentIDNotRequired = "Parent ID not required for visit activity type"
	MsgParentIDRequired    = "Parent ID required for non visit activity types"
	MsgParentIDNotExist    = "Parent ID does not exist"
	MsgStartTimeEmpty      = "Start time not provided"
	MsgEndTimeEmpty        = "End time not provided"
)

// Error is the value-level failure returned by the lifecycle service and query engine.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, which lets the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation              = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrBadRequest              = &Error{Kind: KindBadRequest, Message: MsgBadRequest}
	ErrParentIDNotRequired     = &Error{Kind: KindParentIDNotRequired, Message: MsgParentIDNotRequired}
	ErrParentIDRequired        = &Error{Kind: KindParentIDRequired, Message: MsgParentIDRequired}
	ErrParentNotFound          = &Error{Kind: KindParentNotFound, Message: MsgParentIDNotExist}
	ErrStartTimeRequired       = &Error{Kind: KindStartTimeRequired, Message: MsgStartTimeEmpty}
	ErrEndTimeRequired         = &Error{Kind: KindEndTimeRequired, Message: MsgEndTimeEmpty}
	ErrStaffHasOngoingActivity = &Error{Kind: KindStaffHasOngoingActivity, Message: "staff already has an ongoing activity"}
	ErrNotFound                = &Error{Kind: KindNotFound, Message: MsgNotExist}
	ErrNoResourcesFound        = &Error{Kind: KindNoResourcesFound, Message: MsgNoResources}
	ErrStorage                 = &Error{Kind: KindStorage, Message: "storage failure"}
)

// NewValidationError wraps a payload validator message.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewStaffHasOngoingActivityError names the staff member in the message.
func NewStaffHasOngoingActivityError(staffID string) *Error {
	return &Error{
		Kind:    KindStaffHasOngoingActivity,
		Message: fmt.Sprintf("Staff ID %s already has an ongoing activity", staffID),
	}
}

// KindOf extracts the kind of err, or "" when err did not originate from this package.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// StorageError preserves the diagnostic detail reported by the underlying store.
type StorageError struct {
	Op         string
	Code       string
	Message    string
	StatusCode int
	RequestID  string
	Err        error
}

func (e *StorageError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	out := fmt.Sprintf("%s: %s", e.Op, msg)
	if e.Code != "" {
		out = fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
	}
	if e.RequestID != "" {
		out += " Request id: " + e.RequestID
	}
	return out
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageFailure re-wraps a store error as a storage_failure. Errors that already carry
// a domain kind pass through untouched.
func NewStorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	var se *StorageError
	if !errors.As(err, &se) {
		se = &StorageError{Op: op, Err: err}
		err = se
	}
	return &Error{Kind: KindStorage, Message: se.Error(), Err: err}
}

// StatusCode returns the store-provided status of a storage failure, or 0 when unknown.
func StatusCode(err error) int {
	var se *StorageError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
