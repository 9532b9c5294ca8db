// Package medication implements the medication catalog record and its
// persistence.
package medication

import "errors"

// ErrMissingFields indicates a creation request without name or description.
var ErrMissingFields = errors.New("name and description are required")

// Medication is a catalog row.
type Medication struct {
	MedicationID int64  `json:"medication_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

// CreatedEvent is the payload published for a newly created medication.
type CreatedEvent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Filter holds the optional predicates of the medication listing operation.
type Filter struct {
	MedicationID *int64
	Name         string
	Description  string
}
