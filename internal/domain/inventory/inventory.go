// Package inventory implements read access to the stock inventory table.
// The order pipeline never writes it.
package inventory

// Record is one inventory row.
type Record struct {
	InventoryID  int64  `json:"inventory_id"`
	MedicationID int64  `json:"medication_id"`
	Stock        int64  `json:"stock"`
	LastUpdated  string `json:"last_updated"`
}

// Filter holds the optional predicates of the inventory listing operation.
// LastUpdated matches by substring.
type Filter struct {
	InventoryID  *int64
	MedicationID *int64
	Stock        *int64
	LastUpdated  string
}
