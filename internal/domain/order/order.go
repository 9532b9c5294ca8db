// Package order implements the pharmacy order record and its persistence.
package order

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the fulfillment status of an order.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusCanceled Status = "canceled"
	StatusReady    Status = "ready"
)

// ErrInvalidStatus indicates a status value outside the fixed enumeration.
var ErrInvalidStatus = errors.New("invalid status (must be 'accepted', 'rejected', 'pending', 'canceled', or 'ready')")

// ErrNotFound indicates the referenced order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrNothingToUpdate indicates an update request with no mutable field set.
var ErrNothingToUpdate = errors.New("no fields to update")

// ParseStatus validates a status value case-insensitively and returns the
// canonical lower-case form.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case StatusPending:
		return StatusPending, nil
	case StatusAccepted:
		return StatusAccepted, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusCanceled:
		return StatusCanceled, nil
	case StatusReady:
		return StatusReady, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Order is a pharmacy order row. PatientID is nullable: intake creates
// orders without one, and it is not validated against a local patient table.
type Order struct {
	OrderID        int64  `json:"order_id"`
	MedicationID   int64  `json:"medication_id"`
	MedicationName string `json:"name,omitempty"`
	Status         Status `json:"status"`
	PatientID      *int64 `json:"patient_id"`
}

// Update is the field set accepted by the order-update operation.
// Nil means "unchanged". Status carries the value exactly as submitted;
// it is normalized to lower case when persisted but published as-is.
type Update struct {
	OrderID      int64   `json:"order_id"`
	MedicationID *int64  `json:"medication_id"`
	Status       *string `json:"status"`
	PatientID    *int64  `json:"patient_id"`
}

// Empty reports whether no mutable field is set.
func (u Update) Empty() bool {
	return u.MedicationID == nil && u.Status == nil && u.PatientID == nil
}

// Filter holds the optional predicates of the order listing operation.
type Filter struct {
	OrderID      *int64
	MedicationID *int64
	Status       string
	PatientID    *int64
}
