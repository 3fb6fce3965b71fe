package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"emcs/internal/consignment/models"
	"emcs/internal/party"
	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
	"emcs/pkg/platform/httputil"
	"emcs/pkg/platform/sentinel"
	"emcs/pkg/requestcontext"
)

// Service defines the lifecycle operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.Result, error)
	Dispatch(ctx context.Context, reference string, requester id.PartyID) (*models.Result, error)
	Receive(ctx context.Context, reference string, requester id.PartyID) (*models.Result, error)
	Get(ctx context.Context, reference string) (*models.Consignment, error)
	ListEvents(ctx context.Context, reference string) ([]*models.MovementEvent, error)
	ListByParty(ctx context.Context, party id.PartyID) ([]*models.Consignment, error)
	VerifyDocument(ctx context.Context, reference string) (bool, error)
}

// PartyDirectory resolves registered operators.
type PartyDirectory interface {
	Lookup(ctx context.Context, address id.PartyID) (*party.PartyInfo, error)
}

// Handler wires consignment endpoints to the lifecycle service.
type Handler struct {
	service Service
	parties PartyDirectory
	logger  *slog.Logger
}

// New constructs a consignment handler. parties may be nil, which skips
// operator registration checks.
func New(service Service, parties PartyDirectory, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		parties: parties,
		logger:  logger,
	}
}

// Register mounts consignment endpoints on the router. The router must
// already authenticate the requesting party.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consignments", h.HandleCreate)
	r.Get("/consignments/{reference}", h.HandleGet)
	r.Post("/consignments/{reference}/dispatch", h.HandleDispatch)
	r.Post("/consignments/{reference}/receive", h.HandleReceive)
	r.Get("/consignments/{reference}/events", h.HandleListEvents)
	r.Get("/consignments/{reference}/verify", h.HandleVerify)
	r.Get("/parties/{party}/consignments", h.HandleListByParty)
}

// HandleCreate handles POST /consignments. The authenticated party is the
// consignor.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	requester, ok := h.requester(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateConsignmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.authorizeConsignor(ctx, requester, req.ParsedCategory()); err != nil {
		h.logger.WarnContext(ctx, "consignor not authorized",
			"request_id", requestID,
			"sender", requester,
			"goods_category", req.GoodsCategory,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Create(ctx, req.ToModel(requester))
	if err != nil {
		h.logger.ErrorContext(ctx, "consignment creation failed",
			"request_id", requestID,
			"sender", requester,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consignment created",
		"request_id", requestID,
		"reference", result.Consignment.Reference,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleGet handles GET /consignments/{reference}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := h.visibleConsignment(w, r)
	if !ok {
		return
	}
	resp := &ConsignmentResponse{Consignment: c}
	if h.parties != nil {
		resp.Parties = party.Enrich(ctx, h.parties, c.Sender, c.Receiver)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleDispatch handles POST /consignments/{reference}/dispatch.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "dispatch", h.service.Dispatch)
}

// HandleReceive handles POST /consignments/{reference}/receive.
func (h *Handler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "receive", h.service.Receive)
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	apply func(ctx context.Context, reference string, requester id.PartyID) (*models.Result, error),
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}
	reference := chi.URLParam(r, "reference")

	result, err := apply(ctx, reference, requester)
	if err != nil {
		h.logger.WarnContext(ctx, "consignment transition failed",
			"request_id", requestID,
			"operation", operation,
			"reference", reference,
			"requester", requester,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleListEvents handles GET /consignments/{reference}/events.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	c, ok := h.visibleConsignment(w, r)
	if !ok {
		return
	}
	events, err := h.service.ListEvents(r.Context(), c.Reference)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &EventsResponse{Reference: c.Reference, Events: events})
}

// HandleVerify handles GET /consignments/{reference}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	c, ok := h.visibleConsignment(w, r)
	if !ok {
		return
	}
	valid, err := h.service.VerifyDocument(r.Context(), c.Reference)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &VerifyResponse{
		Reference:    c.Reference,
		DocumentHash: c.DocumentHash,
		Valid:        valid,
	})
}

// HandleListByParty handles GET /parties/{party}/consignments. Parties may
// only list their own consignments.
func (h *Handler) HandleListByParty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}
	p, err := id.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if p != requester {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "parties may only list their own consignments"))
		return
	}
	list, err := h.service.ListByParty(ctx, p)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Party: p, Consignments: list})
}

func (h *Handler) requester(w http.ResponseWriter, r *http.Request) (id.PartyID, bool) {
	requester := requestcontext.Party(r.Context())
	if requester.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return requester, true
}

// visibleConsignment loads the consignment named in the path and hides it
// from parties that are not involved.
func (h *Handler) visibleConsignment(w http.ResponseWriter, r *http.Request) (*models.Consignment, bool) {
	requester, ok := h.requester(w, r)
	if !ok {
		return nil, false
	}
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if !c.Involves(requester) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "consignment belongs to other parties"))
		return nil, false
	}
	return c, true
}

func (h *Handler) authorizeConsignor(ctx context.Context, sender id.PartyID, category models.GoodsCategory) error {
	if h.parties == nil {
		return nil
	}
	info, err := h.parties.Lookup(ctx, sender)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "consignor is not a registered operator")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up consignor")
	}
	if !info.Authorizes(category) {
		return dErrors.Newf(dErrors.CodeForbidden, "consignor is not authorized for %s", category)
	}
	return nil
}
