package services

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// InvalidStateError rejects an operation the session or request lifecycle
// does not allow from its current state.
type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string { return e.Message }

type IneligibleSkillError struct{ Message string }

func (e *IneligibleSkillError) Error() string { return e.Message }

type SelfBookingError struct{ Message string }

func (e *SelfBookingError) Error() string { return e.Message }

type OutsideScheduleWindowError struct{ Message string }

func (e *OutsideScheduleWindowError) Error() string { return e.Message }
