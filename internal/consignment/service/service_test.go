package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"emcs/internal/arc"
	"emcs/internal/consignment/models"
	"emcs/internal/consignment/store"
	"emcs/internal/ledger"
	"emcs/internal/ledger/signer"
	"emcs/internal/ledger/stub"
	"emcs/internal/notary"
	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
	"emcs/pkg/requestcontext"
)

var (
	consignor = id.MustParsePartyID("0x" + "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90")
	consignee = id.MustParsePartyID("0x" + "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0")
	outsider  = id.MustParsePartyID("0x" + "1111111111111111111111111111111111111111111111111111111111111111")
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *store.InMemory
	ledger  *stub.Client
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	s.store = store.NewInMemory()
	s.ledger = stub.New().WithClock(func() time.Time { return s.now })
	s.service = s.newService()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	executor := ledger.NewExecutor(s.ledger,
		ledger.WithSleep(func(context.Context, time.Duration) error { return nil }))
	gen, err := arc.NewGenerator(ReferenceLookup{Store: s.store},
		arc.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	notarizer := notary.New(executor, notary.WithClock(func() time.Time { return s.now }))
	opts = append([]Option{WithClock(func() time.Time { return s.now })}, opts...)
	return New(s.store, gen, executor, notarizer, opts...)
}

func (s *ServiceSuite) wineRequest() *models.CreateRequest {
	return &models.CreateRequest{
		Sender:        consignor,
		Receiver:      consignee,
		GoodsCategory: models.CategoryWine,
		Quantity:      decimal.NewFromInt(1000),
		Unit:          models.UnitLiters,
	}
}

func (s *ServiceSuite) create() *models.Consignment {
	res, err := s.service.Create(s.ctx, s.wineRequest())
	s.Require().NoError(err)
	return res.Consignment
}

func (s *ServiceSuite) eventTypes(reference string) []models.EventType {
	events, err := s.service.ListEvents(s.ctx, reference)
	s.Require().NoError(err)
	types := make([]models.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func (s *ServiceSuite) TestFullLifecycle() {
	res, err := s.service.Create(s.ctx, s.wineRequest())
	s.Require().NoError(err)
	c := res.Consignment
	s.Equal(models.StatusDraft, c.Status)
	s.True(arc.VerifyChecksum(c.Reference))
	s.Equal([]string{res.TransactionID}, c.LedgerTransactionIDs)
	s.Equal([]models.EventType{models.EventCreated}, s.eventTypes(c.Reference))

	s.now = s.now.Add(time.Hour)
	dispatched, err := s.service.Dispatch(s.ctx, c.Reference, consignor)
	s.Require().NoError(err)
	s.Equal(models.StatusInTransit, dispatched.Consignment.Status)
	s.NotEmpty(dispatched.Consignment.DocumentHash)
	s.Require().NotNil(dispatched.Consignment.DispatchedAt)
	s.True(dispatched.Consignment.DispatchedAt.Equal(s.now))

	ok, err := s.service.VerifyDocument(s.ctx, c.Reference)
	s.Require().NoError(err)
	s.True(ok)

	s.now = s.now.Add(24 * time.Hour)
	received, err := s.service.Receive(s.ctx, c.Reference, consignee)
	s.Require().NoError(err)
	s.Equal(models.StatusReceived, received.Consignment.Status)
	s.Len(received.Consignment.LedgerTransactionIDs, 3)

	s.Equal([]models.EventType{models.EventCreated, models.EventDispatched, models.EventReceived}, s.eventTypes(c.Reference))

	_, err = s.service.Dispatch(s.ctx, c.Reference, consignor)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Contains(err.Error(), "received")

	kinds := []ledger.Kind{}
	for _, e := range s.ledger.Submissions() {
		kinds = append(kinds, e.Kind)
	}
	s.Equal([]ledger.Kind{
		ledger.KindCreateConsignment,
		ledger.KindAnchorDocument,
		ledger.KindDispatchConsignment,
		ledger.KindReceiveConsignment,
	}, kinds)
}

func (s *ServiceSuite) TestAuthorizationIsCheckedBeforeStatus() {
	c := s.create()

	_, err := s.service.Receive(s.ctx, c.Reference, consignor)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "sender receiving a draft: %v", err)

	_, err = s.service.Dispatch(s.ctx, c.Reference, consignee)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Receive(s.ctx, c.Reference, consignee)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = s.service.Dispatch(s.ctx, c.Reference, consignor)
	s.Require().NoError(err)

	_, err = s.service.Receive(s.ctx, c.Reference, outsider)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	got, err := s.service.Get(s.ctx, c.Reference)
	s.Require().NoError(err)
	s.Equal(models.StatusInTransit, got.Status)
}

func (s *ServiceSuite) TestCreateValidation() {
	req := s.wineRequest()
	req.Quantity = decimal.Zero
	_, err := s.service.Create(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	req = s.wineRequest()
	req.Receiver = consignor
	_, err = s.service.Create(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Empty(s.ledger.Submissions())
}

func (s *ServiceSuite) TestCreateLedgerUnavailable() {
	s.ledger.FailNext(ledger.DefaultMaxAttempts, errors.New("node unreachable"))

	_, err := s.service.Create(s.ctx, s.wineRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeExhaustedRetries))

	list, err := s.service.ListByParty(s.ctx, consignor)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ServiceSuite) TestDispatchNotarizationFailureKeepsDraft() {
	c := s.create()
	s.ledger.FailNext(ledger.DefaultMaxAttempts, errors.New("node unreachable"))

	_, err := s.service.Dispatch(s.ctx, c.Reference, consignor)
	s.True(dErrors.HasCode(err, dErrors.CodeNotarizationFailed))

	got, err := s.service.Get(s.ctx, c.Reference)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, got.Status)
	s.Empty(got.DocumentHash)
	s.Equal([]models.EventType{models.EventCreated}, s.eventTypes(c.Reference))

	_, err = s.service.Dispatch(s.ctx, c.Reference, consignor)
	s.NoError(err)
}

func (s *ServiceSuite) TestUnknownReference() {
	_, err := s.service.Dispatch(s.ctx, "24EU00000000000000000", consignor)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Get(s.ctx, "24EU00000000000000000")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	events, err := s.service.ListEvents(s.ctx, "24EU00000000000000000")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestVerifyDocumentBeforeDispatch() {
	c := s.create()
	ok, err := s.service.VerifyDocument(s.ctx, c.Reference)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ServiceSuite) TestLedgerHistory() {
	c := s.create()
	_, err := s.service.Dispatch(s.ctx, c.Reference, consignor)
	s.Require().NoError(err)

	history, err := s.service.LedgerHistory(s.ctx, c.Reference)
	s.Require().NoError(err)
	s.Len(history, 3)
	s.Equal(ledger.KindDispatchConsignment, history[2].Kind)
	s.Equal(c.Reference, history[2].Reference)
}

func (s *ServiceSuite) TestSignerReachesLedger() {
	key, err := signer.FromSeed([]byte("operator"))
	s.Require().NoError(err)
	s.service = s.newService(WithSigner(key))

	s.create()
	subs := s.ledger.Submissions()
	s.Require().Len(subs, 1)
	s.Equal(key.Address(), subs[0].Signer)
}

func (s *ServiceSuite) TestRequestTimeIsUsedWithoutClock() {
	executor := ledger.NewExecutor(s.ledger)
	gen, err := arc.NewGenerator(ReferenceLookup{Store: s.store})
	s.Require().NoError(err)
	svc := New(s.store, gen, executor, notary.New(executor))

	pinned := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	res, err := svc.Create(requestcontext.WithTime(s.ctx, pinned), s.wineRequest())
	s.Require().NoError(err)
	s.True(res.Consignment.CreatedAt.Equal(pinned))
	s.True(res.Timestamp.Equal(pinned))
}

// microsecondStore returns timestamps at microsecond resolution, as
// Postgres TIMESTAMPTZ columns do.
type microsecondStore struct {
	*store.InMemory
}

func (m microsecondStore) FindByReference(ctx context.Context, reference string) (*models.Consignment, error) {
	c, err := m.InMemory.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.Round(time.Microsecond)
	if c.DispatchedAt != nil {
		at := c.DispatchedAt.Round(time.Microsecond)
		c.DispatchedAt = &at
	}
	return c, nil
}

func (s *ServiceSuite) TestVerifyDocumentSurvivesMicrosecondStorage() {
	s.now = time.Date(2024, 3, 14, 9, 30, 0, 123456789, time.UTC)
	st := microsecondStore{InMemory: s.store}
	executor := ledger.NewExecutor(s.ledger,
		ledger.WithSleep(func(context.Context, time.Duration) error { return nil }))
	gen, err := arc.NewGenerator(ReferenceLookup{Store: st})
	s.Require().NoError(err)
	clock := func() time.Time { return s.now }
	svc := New(st, gen, executor, notary.New(executor, notary.WithClock(clock)), WithClock(clock))

	res, err := svc.Create(s.ctx, s.wineRequest())
	s.Require().NoError(err)
	ref := res.Consignment.Reference
	_, err = svc.Dispatch(s.ctx, ref, consignor)
	s.Require().NoError(err)

	ok, err := svc.VerifyDocument(s.ctx, ref)
	s.Require().NoError(err)
	s.True(ok)

	c, err := svc.Get(s.ctx, ref)
	s.Require().NoError(err)
	s.Zero(c.DispatchedAt.Nanosecond() % int(time.Microsecond))
}

func (s *ServiceSuite) TestRequestTimeIsTruncatedToMicroseconds() {
	executor := ledger.NewExecutor(s.ledger)
	gen, err := arc.NewGenerator(ReferenceLookup{Store: s.store})
	s.Require().NoError(err)
	svc := New(s.store, gen, executor, notary.New(executor))

	pinned := time.Date(2025, 5, 5, 5, 5, 5, 999, time.UTC)
	res, err := svc.Create(requestcontext.WithTime(s.ctx, pinned), s.wineRequest())
	s.Require().NoError(err)
	s.True(res.Consignment.CreatedAt.Equal(pinned.Truncate(time.Microsecond)))
}
