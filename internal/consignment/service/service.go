// Package service implements the consignment lifecycle: creation, dispatch
// and receipt, each anchored on the ledger.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"emcs/internal/arc"
	"emcs/internal/consignment/metrics"
	"emcs/internal/consignment/models"
	"emcs/internal/consignment/store"
	"emcs/internal/ledger"
	"emcs/internal/notary"
	"emcs/internal/platform/logger"
	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
	"emcs/pkg/platform/sentinel"
	"emcs/pkg/requestcontext"
)

var tracer = otel.Tracer("emcs/internal/consignment/service")

// Store persists consignments. Execute must serialize calls per reference.
type Store interface {
	Create(ctx context.Context, c *models.Consignment, event *models.MovementEvent) error
	FindByReference(ctx context.Context, reference string) (*models.Consignment, error)
	Exists(ctx context.Context, reference string) (bool, error)
	ListByParty(ctx context.Context, party id.PartyID) ([]*models.Consignment, error)
	Execute(ctx context.Context, reference string, fn store.MutateFunc) (*models.Consignment, error)
	ListEvents(ctx context.Context, reference string) ([]*models.MovementEvent, error)
}

// CodeGenerator mints unique reference codes.
type CodeGenerator interface {
	Generate(ctx context.Context) (arc.Code, error)
}

// Ledger submits and reads ledger operations with retries.
type Ledger interface {
	Submit(ctx context.Context, op ledger.Operation, signer ledger.Signer) (ledger.TransactionID, error)
	GetByReference(ctx context.Context, reference string) ([]ledger.Event, error)
}

// Notarizer anchors document hashes and checks documents against them.
type Notarizer interface {
	Notarize(ctx context.Context, reference string, doc any, signer ledger.Signer) (*notary.Record, error)
	Verify(doc any, expected string) bool
}

// Service owns every consignment state transition.
type Service struct {
	store         Store
	codes         CodeGenerator
	ledger        Ledger
	notary        Notarizer
	buildDocument models.DocumentBuilder
	signer        ledger.Signer
	clock         func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDocumentBuilder replaces the e-AD layout that is notarized at dispatch.
func WithDocumentBuilder(b models.DocumentBuilder) Option {
	return func(s *Service) {
		if b != nil {
			s.buildDocument = b
		}
	}
}

// WithSigner sets the identity that signs ledger operations.
func WithSigner(signer ledger.Signer) Option {
	return func(s *Service) {
		if signer != nil {
			s.signer = signer
		}
	}
}

// WithClock overrides the request-scoped time used for lifecycle timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New constructs a Service. All collaborators are required.
func New(st Store, codes CodeGenerator, l Ledger, n Notarizer, opts ...Option) *Service {
	if st == nil || codes == nil || l == nil || n == nil {
		panic("consignment service: store, code generator, ledger and notarizer are required")
	}
	s := &Service{
		store:         st,
		codes:         codes,
		ledger:        l,
		notary:        n,
		buildDocument: models.BuildEAD,
		signer:        ledger.NoSigner{},
		logger:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req, mints a reference, records the creation on the
// ledger and persists the draft consignment.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (result *models.Result, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "consignment.Create")
	defer func() { s.finish(ctx, span, "create", start, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	code, err := s.codes.Generate(ctx)
	if err != nil {
		return nil, err
	}
	reference := code.String()
	span.SetAttributes(attribute.String("consignment.reference", reference))

	op := ledger.Operation{
		Kind:      ledger.KindCreateConsignment,
		Reference: reference,
		Parties:   []string{req.Sender.String(), req.Receiver.String()},
		Payload: map[string]any{
			"sender":         req.Sender.String(),
			"receiver":       req.Receiver.String(),
			"goods_category": string(req.GoodsCategory),
			"quantity":       req.Quantity.String(),
			"unit":           string(req.Unit),
		},
	}
	txID, err := s.ledger.Submit(ctx, op, s.signer)
	if err != nil {
		return nil, err
	}

	now := s.now(ctx)
	c, err := models.NewConsignment(reference, req.Sender, req.Receiver, req.GoodsCategory, req.Quantity, req.Unit, string(txID), now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	event := models.NewMovementEvent(reference, models.EventCreated, req.Sender, string(txID), "", now)
	if err := s.store.Create(ctx, c, event); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "reference code is already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consignment")
	}

	s.metrics.IncTransition("created")
	s.logger.InfoContext(ctx, "consignment created",
		"reference", reference,
		"sender", c.Sender,
		"receiver", c.Receiver,
		"tx_id", txID,
	)
	return &models.Result{Consignment: c, TransactionID: string(txID), Timestamp: now}, nil
}

// Dispatch moves a draft consignment into transit. Only the sender may
// dispatch. The e-AD document is notarized and its hash recorded.
func (s *Service) Dispatch(ctx context.Context, reference string, requester id.PartyID) (result *models.Result, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "consignment.Dispatch",
		trace.WithAttributes(attribute.String("consignment.reference", reference)))
	defer func() { s.finish(ctx, span, "dispatch", start, err) }()

	var (
		txID ledger.TransactionID
		at   time.Time
	)
	c, err := s.store.Execute(ctx, reference, func(c *models.Consignment) (*models.MovementEvent, error) {
		if err := c.CanDispatch(requester); err != nil {
			return nil, err
		}
		at = laterOf(s.now(ctx), c.CreatedAt)

		rec, err := s.notary.Notarize(ctx, c.Reference, s.buildDocument(c, at), s.signer)
		if err != nil {
			return nil, err
		}
		txID, err = s.ledger.Submit(ctx, ledger.Operation{
			Kind:      ledger.KindDispatchConsignment,
			Reference: c.Reference,
			Parties:   []string{c.Sender.String(), c.Receiver.String()},
			Payload: map[string]any{
				"document_hash": rec.DocumentHash,
				"anchor_tx_id":  string(rec.LedgerTransactionID),
				"dispatched_at": at.Format(time.RFC3339Nano),
				"dispatched_by": requester.String(),
			},
		}, s.signer)
		if err != nil {
			return nil, err
		}
		c.ApplyDispatch(rec.DocumentHash, string(txID), at)
		return models.NewMovementEvent(c.Reference, models.EventDispatched, requester, string(txID), rec.DocumentHash, at), nil
	})
	if err != nil {
		return nil, s.translate(err)
	}

	s.metrics.IncTransition("dispatched")
	s.logger.InfoContext(ctx, "consignment dispatched",
		"reference", reference,
		"document_hash", c.DocumentHash,
		"tx_id", txID,
	)
	return &models.Result{Consignment: c, TransactionID: string(txID), Timestamp: at}, nil
}

// Receive completes a consignment in transit. Only the receiver may receive.
func (s *Service) Receive(ctx context.Context, reference string, requester id.PartyID) (result *models.Result, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "consignment.Receive",
		trace.WithAttributes(attribute.String("consignment.reference", reference)))
	defer func() { s.finish(ctx, span, "receive", start, err) }()

	var (
		txID ledger.TransactionID
		at   time.Time
	)
	c, err := s.store.Execute(ctx, reference, func(c *models.Consignment) (*models.MovementEvent, error) {
		if err := c.CanReceive(requester); err != nil {
			return nil, err
		}
		at = s.now(ctx)
		if c.DispatchedAt != nil {
			at = laterOf(at, *c.DispatchedAt)
		}

		var err error
		txID, err = s.ledger.Submit(ctx, ledger.Operation{
			Kind:      ledger.KindReceiveConsignment,
			Reference: c.Reference,
			Parties:   []string{c.Sender.String(), c.Receiver.String()},
			Payload: map[string]any{
				"received_at": at.Format(time.RFC3339Nano),
				"received_by": requester.String(),
			},
		}, s.signer)
		if err != nil {
			return nil, err
		}
		c.ApplyReceipt(string(txID), at)
		return models.NewMovementEvent(c.Reference, models.EventReceived, requester, string(txID), "", at), nil
	})
	if err != nil {
		return nil, s.translate(err)
	}

	s.metrics.IncTransition("received")
	s.logger.InfoContext(ctx, "consignment received",
		"reference", reference,
		"tx_id", txID,
	)
	return &models.Result{Consignment: c, TransactionID: string(txID), Timestamp: at}, nil
}

// ListEvents returns the movement history in timestamp order. An unknown
// reference has an empty history.
func (s *Service) ListEvents(ctx context.Context, reference string) ([]*models.MovementEvent, error) {
	events, err := s.store.ListEvents(ctx, reference)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load movement events")
	}
	return events, nil
}

// Get returns a consignment by reference.
func (s *Service) Get(ctx context.Context, reference string) (*models.Consignment, error) {
	c, err := s.store.FindByReference(ctx, reference)
	if err != nil {
		return nil, s.translate(err)
	}
	return c, nil
}

// ListByParty returns consignments where party is sender or receiver.
func (s *Service) ListByParty(ctx context.Context, party id.PartyID) ([]*models.Consignment, error) {
	list, err := s.store.ListByParty(ctx, party)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consignments")
	}
	return list, nil
}

// VerifyDocument rebuilds the e-AD from stored state and compares it with the
// hash recorded at dispatch. Consignments not yet dispatched report false.
func (s *Service) VerifyDocument(ctx context.Context, reference string) (bool, error) {
	c, err := s.Get(ctx, reference)
	if err != nil {
		return false, err
	}
	if c.DocumentHash == "" || c.DispatchedAt == nil {
		return false, nil
	}
	return s.notary.Verify(s.buildDocument(c, *c.DispatchedAt), c.DocumentHash), nil
}

// LedgerHistory returns what the ledger recorded for reference.
func (s *Service) LedgerHistory(ctx context.Context, reference string) ([]ledger.Event, error) {
	return s.ledger.GetByReference(ctx, reference)
}

// translate maps store sentinels onto domain errors and leaves coded errors
// from collaborators untouched.
func (s *Service) translate(err error) error {
	var coded *dErrors.Error
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "consignment not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "consignment was modified concurrently")
	case errors.As(err, &coded):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "consignment operation failed")
	}
}

func (s *Service) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	s.metrics.ObserveOperation(operation, start)
	if err != nil {
		code := string(dErrors.CodeOf(err))
		s.metrics.IncFailure(operation, code)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		s.logger.WarnContext(ctx, "consignment operation failed",
			"operation", operation,
			"code", code,
			"error", err,
		)
	}
	span.End()
}

// timePrecision is the finest resolution every store keeps. Lifecycle times
// are truncated to it so a document rebuilt from a stored record hashes the
// same as the one anchored at dispatch.
const timePrecision = time.Microsecond

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock().UTC().Truncate(timePrecision)
	}
	return requestcontext.Now(ctx).UTC().Truncate(timePrecision)
}

func laterOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}
