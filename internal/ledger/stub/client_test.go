package stub

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emcs/internal/ledger"
	"emcs/pkg/platform/sentinel"
)

var txIDPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("identifiers are well formed and distinct", func(t *testing.T) {
		c := New()
		op := ledger.Operation{Kind: ledger.KindAnchorDocument, Payload: map[string]any{"document_hash": "0x01"}}
		a, err := c.SubmitOnce(ctx, op, ledger.NoSigner{})
		require.NoError(t, err)
		b, err := c.SubmitOnce(ctx, op, ledger.NoSigner{})
		require.NoError(t, err)

		assert.Regexp(t, txIDPattern, a.String())
		assert.Regexp(t, txIDPattern, b.String())
		assert.NotEqual(t, a, b)
	})

	t.Run("injected failures are consumed in order", func(t *testing.T) {
		c := New()
		boom := errors.New("boom")
		c.FailNext(2, boom)

		_, err := c.SubmitOnce(ctx, ledger.Operation{Kind: ledger.KindCreateConsignment}, nil)
		assert.ErrorIs(t, err, boom)
		_, err = c.Query(ctx, ledger.Filter{})
		assert.ErrorIs(t, err, boom)
		_, err = c.SubmitOnce(ctx, ledger.Operation{Kind: ledger.KindCreateConsignment}, nil)
		assert.NoError(t, err)
	})

	t.Run("query and object lookup", func(t *testing.T) {
		c := New()
		id, err := c.SubmitOnce(ctx, ledger.Operation{
			Kind:      ledger.KindCreateConsignment,
			Reference: "r1",
			Parties:   []string{"0xa", "0xb"},
		}, nil)
		require.NoError(t, err)
		_, err = c.SubmitOnce(ctx, ledger.Operation{Kind: ledger.KindCreateConsignment, Reference: "r2"}, nil)
		require.NoError(t, err)

		events, err := c.Query(ctx, ledger.Filter{Party: "0xb"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, id, events[0].TransactionID)

		rec, err := c.GetObject(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, "create_consignment", rec.Type)

		_, err = c.GetObject(ctx, "0xmissing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
