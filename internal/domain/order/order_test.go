package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "lowercase pending", input: "pending", want: StatusPending},
		{name: "lowercase accepted", input: "accepted", want: StatusAccepted},
		{name: "lowercase rejected", input: "rejected", want: StatusRejected},
		{name: "lowercase canceled", input: "canceled", want: StatusCanceled},
		{name: "lowercase ready", input: "ready", want: StatusReady},
		{name: "uppercase", input: "READY", want: StatusReady},
		{name: "mixed case", input: "Accepted", want: StatusAccepted},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown value", input: "shipped", wantErr: true},
		{name: "british spelling", input: "cancelled", wantErr: true},
		{name: "padded", input: " pending", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateEmpty(t *testing.T) {
	assert.True(t, Update{OrderID: 1}.Empty())

	status := "ready"
	assert.False(t, Update{OrderID: 1, Status: &status}.Empty())

	med := int64(3)
	assert.False(t, Update{OrderID: 1, MedicationID: &med}.Empty())

	patient := int64(9)
	assert.False(t, Update{OrderID: 1, PatientID: &patient}.Empty())
}

// The update event payload carries the status exactly as submitted, even
// though the column is stored lower-case.
func TestUpdateEventPayloadPreservesSubmittedStatus(t *testing.T) {
	status := "READY"
	med := int64(4)
	upd := Update{OrderID: 12, MedicationID: &med, Status: &status}

	payload, err := json.Marshal(upd)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, float64(12), decoded["order_id"])
	assert.Equal(t, float64(4), decoded["medication_id"])
	assert.Equal(t, "READY", decoded["status"])
	assert.Nil(t, decoded["patient_id"])
}
