package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"colon lower", "aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF", false},
		{"dashes", "aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF", false},
		{"bare", "aabbccddeeff", "AA:BB:CC:DD:EE:FF", false},
		{"padded", "  AA:BB:CC:DD:EE:FF ", "AA:BB:CC:DD:EE:FF", false},
		{"empty", "", "", true},
		{"garbage", "not-a-mac", "", true},
		{"eui64", "00:11:22:33:44:55:66:77", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentifier(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidIdentifier))
				var vErr *ValidationError
				assert.True(t, errors.As(err, &vErr))
				assert.Equal(t, "mac", vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "AA:BB", NormalizeIdentifier(" aa:bb "))
	assert.Equal(t, "", NormalizeIdentifier("   "))
}
