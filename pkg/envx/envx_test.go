package envx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Setenv("ENVX_SECRET", "s3cret")

	tests := []struct {
		in, want string
	}{
		{"secret: ${ENVX_SECRET}", "secret: s3cret"},
		{"hash: $argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA", "hash: $argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing: ${ENVX_NOT_SET_ANYWHERE}", "missing: "},
		{"bare: $ENVX_SECRET", "bare: $ENVX_SECRET"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Expand(tt.in))
	}
}
