package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyCollection(t *testing.T) {
	tests := []struct {
		args []any
		want string
	}{
		{[]any{"get", "checkout:session:DON-1"}, "checkout:session"},
		{[]any{"set", "lock:order:DON-1", "token"}, "lock:order"},
		{[]any{"get", "idempotency:checkout:/checkout/ticket:k1"}, "idempotency:checkout:/checkout/ticket"},
		{[]any{"ping"}, "redis"},
		{[]any{"get", "plain"}, "redis"},
		{[]any{"evalsha", 42}, "redis"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, keyCollection(tt.args), "%v", tt.args)
	}
}
