package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"emcs/internal/consignment/models"
	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
	"emcs/pkg/platform/sentinel"
)

// backend is the surface every store implementation shares.
type backend interface {
	Create(ctx context.Context, c *models.Consignment, event *models.MovementEvent) error
	FindByReference(ctx context.Context, reference string) (*models.Consignment, error)
	Exists(ctx context.Context, reference string) (bool, error)
	ListByParty(ctx context.Context, party id.PartyID) ([]*models.Consignment, error)
	Execute(ctx context.Context, reference string, fn MutateFunc) (*models.Consignment, error)
	ListEvents(ctx context.Context, reference string) ([]*models.MovementEvent, error)
	PendingEvents(ctx context.Context, limit int) ([]*models.MovementEvent, error)
	MarkPublished(ctx context.Context, ids []string) error
}

var (
	_ backend = (*InMemory)(nil)
	_ backend = (*PostgresStore)(nil)
	_ backend = (*SQLiteStore)(nil)
)

var (
	alice = id.MustParsePartyID("0x" + "aa00000000000000000000000000000000000000000000000000000000000001")
	bob   = id.MustParsePartyID("0x" + "bb00000000000000000000000000000000000000000000000000000000000002")
	carol = id.MustParsePartyID("0x" + "cc00000000000000000000000000000000000000000000000000000000000003")
)

// contractSuite exercises behaviour every backend must share. Embedding
// suites set store in SetupTest.
type contractSuite struct {
	suite.Suite
	ctx   context.Context
	store backend
	now   time.Time
}

func (s *contractSuite) newConsignment(ref string, from, to id.PartyID) (*models.Consignment, *models.MovementEvent) {
	c, err := models.NewConsignment(ref, from, to, models.CategoryWine, decimal.RequireFromString("1000.5"), models.UnitLiters, "0xcreate-"+ref, s.now)
	s.Require().NoError(err)
	return c, models.NewMovementEvent(ref, models.EventCreated, from, "0xcreate-"+ref, "", s.now)
}

func (s *contractSuite) create(ref string, from, to id.PartyID) *models.Consignment {
	c, e := s.newConsignment(ref, from, to)
	s.Require().NoError(s.store.Create(s.ctx, c, e))
	return c
}

func (s *contractSuite) dispatch(ref string, at time.Time) MutateFunc {
	return func(c *models.Consignment) (*models.MovementEvent, error) {
		if err := c.CanDispatch(c.Sender); err != nil {
			return nil, err
		}
		c.ApplyDispatch("0xhash", "0xdispatch-"+ref, at)
		return models.NewMovementEvent(ref, models.EventDispatched, c.Sender, "0xdispatch-"+ref, "0xhash", at), nil
	}
}

func (s *contractSuite) TestCreateAndFind() {
	s.create("REF0000001", alice, bob)

	got, err := s.store.FindByReference(s.ctx, "REF0000001")
	s.Require().NoError(err)
	s.Equal(alice, got.Sender)
	s.Equal(bob, got.Receiver)
	s.True(decimal.RequireFromString("1000.5").Equal(got.Quantity))
	s.Equal(models.StatusDraft, got.Status)
	s.Equal([]string{"0xcreate-REF0000001"}, got.LedgerTransactionIDs)
	s.True(s.now.Equal(got.CreatedAt))
	s.Nil(got.DispatchedAt)

	exists, err := s.store.Exists(s.ctx, "REF0000001")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.Exists(s.ctx, "REF0000404")
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.store.FindByReference(s.ctx, "REF0000404")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestCreateDuplicateReference() {
	s.create("REF0000002", alice, bob)
	c, e := s.newConsignment("REF0000002", carol, bob)
	s.ErrorIs(s.store.Create(s.ctx, c, e), sentinel.ErrConflict)

	events, err := s.store.ListEvents(s.ctx, "REF0000002")
	s.Require().NoError(err)
	s.Len(events, 1, "losing insert must not append its event")
}

func (s *contractSuite) TestExecute() {
	s.create("REF0000003", alice, bob)
	at := s.now.Add(time.Hour)

	updated, err := s.store.Execute(s.ctx, "REF0000003", s.dispatch("REF0000003", at))
	s.Require().NoError(err)
	s.Equal(models.StatusInTransit, updated.Status)

	got, err := s.store.FindByReference(s.ctx, "REF0000003")
	s.Require().NoError(err)
	s.Equal(models.StatusInTransit, got.Status)
	s.Equal("0xhash", got.DocumentHash)
	s.Require().NotNil(got.DispatchedAt)
	s.True(at.Equal(*got.DispatchedAt))
	s.Equal([]string{"0xcreate-REF0000003", "0xdispatch-REF0000003"}, got.LedgerTransactionIDs)

	events, err := s.store.ListEvents(s.ctx, "REF0000003")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(models.EventCreated, events[0].Type)
	s.Equal(models.EventDispatched, events[1].Type)
	s.Equal("0xhash", events[1].DocumentHash)
}

func (s *contractSuite) TestExecuteErrorDiscardsChanges() {
	s.create("REF0000004", alice, bob)
	boom := errors.New("ledger down")

	_, err := s.store.Execute(s.ctx, "REF0000004", func(c *models.Consignment) (*models.MovementEvent, error) {
		c.ApplyDispatch("0xnope", "0xnope", s.now)
		return nil, boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.FindByReference(s.ctx, "REF0000004")
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, got.Status)
	s.Empty(got.DocumentHash)

	_, err = s.store.Execute(s.ctx, "REF0000404", s.dispatch("REF0000404", s.now))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestConcurrentTransitionsAreSerialized() {
	s.create("REF0000005", alice, bob)

	const goroutines = 10
	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, "REF0000005", s.dispatch("REF0000005", s.now.Add(time.Minute)))
			switch {
			case err == nil:
				ok.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidTransition):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load(), "exactly one dispatch should win")
	s.Equal(int32(goroutines-1), rejected.Load())

	events, err := s.store.ListEvents(s.ctx, "REF0000005")
	s.Require().NoError(err)
	s.Len(events, 2)
}

func (s *contractSuite) TestListByParty() {
	s.create("REF0000006", alice, bob)
	s.create("REF0000007", carol, alice)
	s.create("REF0000008", carol, bob)

	forAlice, err := s.store.ListByParty(s.ctx, alice)
	s.Require().NoError(err)
	s.Len(forAlice, 2)

	none, err := s.store.ListByParty(s.ctx, id.MustParsePartyID("0x"+"dd00000000000000000000000000000000000000000000000000000000000004"))
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *contractSuite) TestListEventsUnknownReference() {
	events, err := s.store.ListEvents(s.ctx, "REF0000404")
	s.Require().NoError(err)
	s.NotNil(events)
	s.Empty(events)
}

func (s *contractSuite) TestOutbox() {
	s.create("REF0000009", alice, bob)
	_, err := s.store.Execute(s.ctx, "REF0000009", s.dispatch("REF0000009", s.now.Add(time.Hour)))
	s.Require().NoError(err)

	pending, err := s.store.PendingEvents(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(models.EventCreated, pending[0].Type)

	s.Require().NoError(s.store.MarkPublished(s.ctx, []string{pending[0].ID}))
	pending, err = s.store.PendingEvents(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(models.EventDispatched, pending[0].Type)

	limited, err := s.store.PendingEvents(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}
