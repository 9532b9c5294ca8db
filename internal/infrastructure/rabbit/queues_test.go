package rabbit

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestRetryCountFromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{name: "nil table", headers: nil, want: 0},
		{name: "missing key", headers: amqp.Table{}, want: 0},
		{name: "int32", headers: amqp.Table{HeaderRetryCount: int32(3)}, want: 3},
		{name: "int64", headers: amqp.Table{HeaderRetryCount: int64(5)}, want: 5},
		{name: "int", headers: amqp.Table{HeaderRetryCount: 2}, want: 2},
		{name: "int8", headers: amqp.Table{HeaderRetryCount: int8(1)}, want: 1},
		{name: "wrong type", headers: amqp.Table{HeaderRetryCount: "4"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryCountFromHeaders(tt.headers))
		})
	}
}
