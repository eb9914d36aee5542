package domain

import "errors"

var (
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrDepartmentNotFound     = errors.New("department not found")
	ErrQueryTypeNotFound      = errors.New("query type not found")
	ErrInvalidStageTransition = errors.New("invalid stage transition")
	ErrHubAtCapacity          = errors.New("hub at capacity")
	ErrReceiverBoxFull        = errors.New("receiver box full")
	ErrAlreadyAssigned        = errors.New("ticket already assigned")
	ErrNotCompletable         = errors.New("ticket not completable")
	ErrTicketNotRouted        = errors.New("ticket has no target department")
	ErrQueryTypeInactive      = errors.New("query type inactive")
	ErrDepartmentNotAllowed   = errors.New("department not allowed for query type")
	ErrInvalidTypeCode        = errors.New("invalid type code")
	ErrInvalidInput           = errors.New("invalid input")
)

// IsAdmissionRejected reports an expected, retryable capacity rejection.
func IsAdmissionRejected(err error) bool {
	return errors.Is(err, ErrHubAtCapacity) || errors.Is(err, ErrReceiverBoxFull)
}

// IsPreconditionViolated reports caller or state misuse that must not be retried.
func IsPreconditionViolated(err error) bool {
	for _, target := range []error{
		ErrInvalidStageTransition,
		ErrAlreadyAssigned,
		ErrNotCompletable,
		ErrDepartmentNotFound,
		ErrTicketNotFound,
		ErrTicketNotRouted,
		ErrQueryTypeNotFound,
		ErrQueryTypeInactive,
		ErrDepartmentNotAllowed,
		ErrInvalidTypeCode,
		ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
