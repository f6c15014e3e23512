package masterdata

import (
	"errors"
	"fmt"
)

// Kind classifies a registry failure.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindIntegrity  Kind = "integrity"
)

// Error is a registry failure carrying a client-facing message.
// Two errors match under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports code equality.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrSiteNotFound  = &Error{Kind: KindNotFound, Code: "site_not_found", Message: "Site not found"}
	ErrGroupNotFound = &Error{Kind: KindNotFound, Code: "group_not_found", Message: "Group not found"}

	ErrDuplicateSiteName  = &Error{Kind: KindValidation, Code: "duplicate_site_name", Message: "Site name already exists"}
	ErrDuplicateGroupName = &Error{Kind: KindValidation, Code: "duplicate_group_name", Message: "Group name already exists"}

	ErrFrenchSiteDailyLimit = &Error{Kind: KindValidation, Code: "scheduling_conflict_fr", Message: "Only one French site can be installed per day."}
	ErrItalianSiteWeekday   = &Error{Kind: KindValidation, Code: "scheduling_conflict_it", Message: "Italian sites can only be installed on weekends."}

	// Both group association failures share a code and differ in message.
	ErrForbiddenGroupType = &Error{Kind: KindValidation, Code: "invalid_group_association", Message: "Sites cannot be associated with group type 'group3'."}
	ErrUnknownGroup       = &Error{Kind: KindValidation, Code: "invalid_group_association", Message: "Referenced group does not exist"}

	ErrInvalidInput       = &Error{Kind: KindValidation, Code: "invalid_input", Message: "Invalid input"}
	ErrIntegrityViolation = &Error{Kind: KindIntegrity, Code: "integrity_violation", Message: "Integrity violation"}
)

// UnknownGroupError reports a referenced group id that does not exist.
func UnknownGroupError(id int64) error {
	return &Error{Kind: KindValidation, Code: ErrUnknownGroup.Code, Message: fmt.Sprintf("Group %d not found", id)}
}

// InvalidInput wraps a structural validation failure.
func InvalidInput(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindValidation, Code: ErrInvalidInput.Code, Message: err.Error(), Err: err}
}

// IntegrityViolation wraps a storage constraint failure.
func IntegrityViolation(detail string, err error) error {
	if detail == "" {
		detail = ErrIntegrityViolation.Message
	}
	return &Error{Kind: KindIntegrity, Code: ErrIntegrityViolation.Code, Message: detail, Err: err}
}

// KindOf returns the kind of a registry error, or "" for anything else.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}
