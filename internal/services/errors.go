package services

import "fmt"

// ValidationError is a malformed date, time, duration or selection. The
// customer is re-prompted on the same step.
type ValidationError struct {
	Step    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input at %s: %s", e.Step, e.Message)
}

// ConflictError means the chosen room stopped being available.
type ConflictError struct {
	RoomID uint
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("room %d is no longer available", e.RoomID)
}

// NotFoundError is a staff reference to a missing or already processed reservation.
type NotFoundError struct {
	ReservationID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reservation %d not found or already processed", e.ReservationID)
}

// TransportFailure wraps an outbound send error.
type TransportFailure struct {
	Channel string
	Err     error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s send failed: %v", e.Channel, e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// DependencyFailure wraps an unavailable optional collaborator such as the rephraser.
type DependencyFailure struct {
	Dependency string
	Err        error
}

func (e *DependencyFailure) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyFailure) Unwrap() error { return e.Err }
