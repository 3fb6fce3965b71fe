package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "emcs/pkg/domain-errors"
)

func TestParsePartyID(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	t.Run("accepts 0x-prefixed 64 hex digits", func(t *testing.T) {
		p, err := ParsePartyID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, p.String())
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		p, err := ParsePartyID("  0x" + strings.Repeat("AB", 32) + " ")
		require.NoError(t, err)
		assert.Equal(t, PartyID(valid), p)
	})

	for name, input := range map[string]string{
		"empty":     "",
		"no prefix": strings.Repeat("ab", 32),
		"too short": "0xabc",
		"not hex":   "0x" + strings.Repeat("zz", 32),
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := ParsePartyID(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
