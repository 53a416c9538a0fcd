package model

import "strings"

// Status is the single lifecycle vocabulary for appointments. Admin-created
// bookings start SCHEDULED; public bookings that need approval start PENDING.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScheduled Status = "SCHEDULED"
	StatusApproved  Status = "APPROVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	// Approval counts as confirmation, so an approved visit can complete directly.
	StatusApproved:  {StatusConfirmed, StatusCompleted, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusScheduled, StatusApproved, StatusConfirmed,
		StatusCompleted, StatusCancelled, StatusRejected:
		return st, nil
	}
	return "", invalidf("unknown status %q", s)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// IsActive reports whether an appointment in this status occupies its slot.
func (s Status) IsActive() bool {
	return s != StatusCancelled && s != StatusRejected
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError when from -> to is not allowed.
func CheckTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Source identifies the entry point that created an appointment.
type Source string

const (
	SourcePublic Source = "public"
	SourceAdmin  Source = "admin"
)

// InitialStatus applies the initial-state policy for a booking source.
func InitialStatus(src Source, publicRequiresApproval bool) Status {
	if src == SourcePublic && publicRequiresApproval {
		return StatusPending
	}
	return StatusScheduled
}

type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)
