package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"emcs/internal/ledger"
	"emcs/internal/ledger/mocks"
	"emcs/pkg/platform/circuit"
	"emcs/pkg/platform/sentinel"
)

func TestGuardedClient(t *testing.T) {
	ctx := context.Background()
	op := ledger.Operation{Kind: ledger.KindCreateConsignment, Reference: "r1"}

	t.Run("opens after consecutive failures and fails fast", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockClient(ctrl)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		b := circuit.New("rpc", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute),
			circuit.WithClock(func() time.Time { return now }))
		g := ledger.NewGuardedClient(next, b, nil)

		boom := errors.New("connection refused")
		next.EXPECT().SubmitOnce(gomock.Any(), op, gomock.Any()).Return(ledger.TransactionID(""), boom).Times(2)

		for range 2 {
			_, err := g.SubmitOnce(ctx, op, ledger.NoSigner{})
			require.ErrorIs(t, err, boom)
		}
		assert.True(t, b.IsOpen())

		_, err := g.SubmitOnce(ctx, op, ledger.NoSigner{})
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("probe after cooldown reaches the backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockClient(ctrl)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		b := circuit.New("rpc", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(time.Minute), circuit.WithClock(func() time.Time { return now }))
		g := ledger.NewGuardedClient(next, b, nil)

		next.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
		_, err := g.Query(ctx, ledger.Filter{Reference: "r1"})
		require.Error(t, err)
		require.True(t, b.IsOpen())

		now = now.Add(time.Minute)
		next.EXPECT().Query(gomock.Any(), gomock.Any()).Return([]ledger.Event{}, nil)
		_, err = g.Query(ctx, ledger.Filter{Reference: "r1"})
		require.NoError(t, err)
		assert.False(t, b.IsOpen())
	})

	t.Run("not found does not count as a failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockClient(ctrl)
		b := circuit.New("rpc", circuit.WithFailureThreshold(1))
		g := ledger.NewGuardedClient(next, b, nil)

		next.EXPECT().GetObject(gomock.Any(), "0x01").Return(nil, sentinel.ErrNotFound)
		_, err := g.GetObject(ctx, "0x01")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.False(t, b.IsOpen())
	})
}
