package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
)

var (
	sender   = id.MustParsePartyID("0x" + "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90")
	receiver = id.MustParsePartyID("0x" + "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0")
	stranger = id.MustParsePartyID("0x" + "1111111111111111111111111111111111111111111111111111111111111111")
)

func newDraft(t *testing.T, now time.Time) *Consignment {
	t.Helper()
	c, err := NewConsignment("24EU12345678901234564", sender, receiver, CategoryWine, decimal.NewFromInt(1000), UnitLiters, "0xcreate", now)
	require.NoError(t, err)
	return c
}

func TestNewConsignment(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c := newDraft(t, now)
	assert.Equal(t, StatusDraft, c.Status)
	assert.Equal(t, []string{"0xcreate"}, c.LedgerTransactionIDs)
	assert.Empty(t, c.DocumentHash)
	assert.Nil(t, c.DispatchedAt)

	_, err := NewConsignment("r", sender, sender, CategoryWine, decimal.NewFromInt(1), UnitLiters, "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewConsignment("r", sender, receiver, CategoryWine, decimal.Zero, UnitLiters, "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewConsignment("r", sender, receiver, "Milk", decimal.NewFromInt(1), UnitLiters, "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestTransitions(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("full lifecycle", func(t *testing.T) {
		c := newDraft(t, created)

		require.NoError(t, c.CanDispatch(sender))
		c.ApplyDispatch("0xhash", "0xdispatch", created.Add(time.Hour))
		assert.Equal(t, StatusInTransit, c.Status)
		assert.Equal(t, "0xhash", c.DocumentHash)
		require.NotNil(t, c.DispatchedAt)

		require.NoError(t, c.CanReceive(receiver))
		c.ApplyReceipt("0xreceive", created.Add(2*time.Hour))
		assert.Equal(t, StatusReceived, c.Status)
		require.NotNil(t, c.ReceivedAt)
		assert.Equal(t, []string{"0xcreate", "0xdispatch", "0xreceive"}, c.LedgerTransactionIDs)
	})

	t.Run("timestamps never go backwards", func(t *testing.T) {
		c := newDraft(t, created)
		c.ApplyDispatch("0xhash", "0xd", created.Add(-time.Minute))
		assert.Equal(t, created, *c.DispatchedAt)
		c.ApplyReceipt("0xr", created.Add(-time.Hour))
		assert.Equal(t, created, *c.ReceivedAt)
	})

	t.Run("wrong requester is unauthorized whatever the status", func(t *testing.T) {
		c := newDraft(t, created)
		assert.True(t, dErrors.HasCode(c.CanDispatch(receiver), dErrors.CodeUnauthorized))
		assert.True(t, dErrors.HasCode(c.CanReceive(sender), dErrors.CodeUnauthorized))

		c.ApplyDispatch("0xhash", "0xd", created)
		assert.True(t, dErrors.HasCode(c.CanDispatch(stranger), dErrors.CodeUnauthorized))
	})

	t.Run("right requester in wrong status is an invalid transition", func(t *testing.T) {
		c := newDraft(t, created)
		err := c.CanReceive(receiver)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		assert.Contains(t, err.Error(), "draft")

		c.ApplyDispatch("0xhash", "0xd", created)
		err = c.CanDispatch(sender)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		assert.Contains(t, err.Error(), "in_transit")

		c.ApplyReceipt("0xr", created)
		assert.True(t, dErrors.HasCode(c.CanReceive(receiver), dErrors.CodeInvalidTransition))
		assert.True(t, dErrors.HasCode(c.CanDispatch(sender), dErrors.CodeInvalidTransition))
	})
}

func TestStatusCanTransitionTo(t *testing.T) {
	all := []Status{StatusDraft, StatusInTransit, StatusReceived}
	allowed := map[Status]Status{StatusDraft: StatusInTransit, StatusInTransit: StatusReceived}
	for _, from := range all {
		for _, to := range all {
			want := allowed[from] == to
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestClone(t *testing.T) {
	c := newDraft(t, time.Now())
	c.ApplyDispatch("0xh", "0xd", time.Now())

	cp := c.Clone()
	cp.LedgerTransactionIDs[0] = "changed"
	*cp.DispatchedAt = cp.DispatchedAt.Add(time.Hour)

	assert.Equal(t, "0xcreate", c.LedgerTransactionIDs[0])
	assert.NotEqual(t, *c.DispatchedAt, *cp.DispatchedAt)
}

func TestCreateRequestValidate(t *testing.T) {
	valid := func() *CreateRequest {
		return &CreateRequest{
			Sender:        id.PartyID(" " + string(sender) + " "),
			Receiver:      id.PartyID("0X0F1E2D3C4B5A69788796A5B4C3D2E1F00F1E2D3C4B5A69788796A5B4C3D2E1F0"),
			GoodsCategory: "wine",
			Quantity:      decimal.NewFromInt(1000),
			Unit:          "liters",
		}
	}

	t.Run("normalizes valid input", func(t *testing.T) {
		r := valid()
		require.NoError(t, r.Validate())
		assert.Equal(t, sender, r.Sender)
		assert.Equal(t, receiver, r.Receiver)
		assert.Equal(t, CategoryWine, r.GoodsCategory)
		assert.Equal(t, UnitLiters, r.Unit)
	})

	cases := map[string]func(r *CreateRequest){
		"missing sender":     func(r *CreateRequest) { r.Sender = "" },
		"missing receiver":   func(r *CreateRequest) { r.Receiver = "" },
		"malformed receiver": func(r *CreateRequest) { r.Receiver = "0x1234" },
		"unknown category":   func(r *CreateRequest) { r.GoodsCategory = "Milk" },
		"unknown unit":       func(r *CreateRequest) { r.Unit = "Barrels" },
		"zero quantity":      func(r *CreateRequest) { r.Quantity = decimal.Zero },
		"negative quantity":  func(r *CreateRequest) { r.Quantity = decimal.NewFromInt(-5) },
		"same parties":       func(r *CreateRequest) { r.Receiver = r.Sender },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid()
			mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
