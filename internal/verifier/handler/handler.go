// Package handler exposes the identity registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"idverifier/internal/platform/metrics"
	"idverifier/internal/platform/middleware"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
	"idverifier/pkg/platform/httputil"
	"idverifier/pkg/requestcontext"
)

// Service is the registry surface the handler drives.
type Service interface {
	Initialize(ctx context.Context, admin common.Address) error
	IsInitialized(ctx context.Context) (bool, error)
	GetAdmin(ctx context.Context) (common.Address, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.Registration, error)
	PrepayVerification(ctx context.Context, req models.PrepayRequest) (uint32, error)
	GetUser(ctx context.Context, user common.Address) (*models.UserSummary, error)
	GetDocument(ctx context.Context, user common.Address, index uint32) (*models.IdentityRecord, error)
	RequiresPayment(ctx context.Context, user common.Address) (*models.PaymentPreflight, error)
	IsNullifierConsumed(ctx context.Context, nullifier common.Hash) (bool, error)
	TotalVerifications(ctx context.Context) (uint64, error)
	ProofNonce(ctx context.Context, signer common.Address) (uint64, error)
	Approve(ctx context.Context, req models.ApproveRequest) error
	Fund(ctx context.Context, holder common.Address, amount *uint256.Int) (*uint256.Int, error)
	AssetBalance(ctx context.Context, holder common.Address) (*uint256.Int, error)
	Policy() models.PaymentMode
	Asset() common.Address
}

// Handler serves the /v1 registry routes.
type Handler struct {
	svc     Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	dev     bool
}

type Option func(*Handler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithDevRoutes enables the asset mint route used to fund local accounts.
func WithDevRoutes(enabled bool) Option {
	return func(h *Handler) {
		h.dev = enabled
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the registry routes under /v1.
func (h *Handler) Register(r chi.Router) {
	v1 := chi.NewRouter()
	v1.Use(middleware.Recovery(h.logger))
	v1.Use(middleware.RequestID)
	v1.Use(middleware.ClientMetadata)
	v1.Use(middleware.Logger(h.logger))
	v1.Use(middleware.Latency(h.metrics))

	v1.Post("/initialize", h.handleInitialize)
	v1.Post("/register", h.handleRegister)
	v1.Post("/prepay", h.handlePrepay)
	v1.Get("/users/{address}", h.handleGetUser)
	v1.Get("/users/{address}/documents/{index}", h.handleGetDocument)
	v1.Get("/users/{address}/payment", h.handlePayment)
	v1.Get("/nullifiers/{nullifier}", h.handleNullifier)
	v1.Get("/stats", h.handleStats)
	v1.Get("/accounts/{address}/nonce", h.handleNonce)
	v1.Post("/asset/approve", h.handleApprove)
	v1.Get("/asset/balances/{address}", h.handleBalance)
	if h.dev {
		v1.Post("/asset/mint", h.handleMint)
	}

	r.Mount("/v1", v1)
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "initialize", err)
		return
	}
	var p fieldParser
	admin := p.address("admin", req.Admin)
	if p.err != nil {
		h.fail(w, r, "initialize", p.err)
		return
	}
	if err := h.svc.Initialize(r.Context(), admin); err != nil {
		h.fail(w, r, "initialize", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, "register", err)
		return
	}
	req, err := body.toModel()
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	reg, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		User:     reg.User.Hex(),
		Index:    reg.Index,
		DocCount: reg.DocCount,
		Payment:  string(reg.Payment),
		Record:   toRecordResponse(&reg.Record),
	})
}

func (h *Handler) handlePrepay(w http.ResponseWriter, r *http.Request) {
	var body prepayRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, "prepay", err)
		return
	}
	req, err := body.toModel()
	if err != nil {
		h.fail(w, r, "prepay", err)
		return
	}
	credits, err := h.svc.PrepayVerification(r.Context(), req)
	if err != nil {
		h.fail(w, r, "prepay", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prepayResponse{User: req.User.Hex(), PrepaidCredits: credits})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.GetUser(r.Context(), user)
	if err != nil {
		h.fail(w, r, "get_user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(summary))
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 32)
	if err != nil {
		h.fail(w, r, "get_document", dErrors.New(dErrors.CodeBadRequest, "index must be a non-negative integer"))
		return
	}
	rec, err := h.svc.GetDocument(r.Context(), user, uint32(index))
	if err != nil {
		h.fail(w, r, "get_document", err)
		return
	}
	if rec == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	pre, err := h.svc.RequiresPayment(r.Context(), user)
	if err != nil {
		h.fail(w, r, "requires_payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, paymentResponse{
		DocCount:        pre.DocCount,
		PaymentRequired: pre.PaymentRequired,
		Policy:          string(pre.Policy),
		Amount:          pre.Amount.Dec(),
		PrepaidCredits:  pre.PrepaidCredits,
	})
}

func (h *Handler) handleNullifier(w http.ResponseWriter, r *http.Request) {
	var p fieldParser
	nullifier := p.hash("nullifier", chi.URLParam(r, "nullifier"))
	if p.err != nil {
		h.fail(w, r, "nullifier", p.err)
		return
	}
	consumed, err := h.svc.IsNullifierConsumed(r.Context(), nullifier)
	if err != nil {
		h.fail(w, r, "nullifier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"nullifier": nullifier.Hex(),
		"consumed":  consumed,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := h.svc.TotalVerifications(ctx)
	if err != nil {
		h.fail(w, r, "stats", err)
		return
	}
	out := statsResponse{
		TotalVerifications: total,
		PaymentPolicy:      string(h.svc.Policy()),
		PaymentAsset:       h.svc.Asset().Hex(),
	}
	initialized, err := h.svc.IsInitialized(ctx)
	if err != nil {
		h.fail(w, r, "stats", err)
		return
	}
	if initialized {
		admin, err := h.svc.GetAdmin(ctx)
		if err != nil {
			h.fail(w, r, "stats", err)
			return
		}
		out.Admin = hexOrEmpty(admin)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleNonce(w http.ResponseWriter, r *http.Request) {
	signer, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	nonce, err := h.svc.ProofNonce(r.Context(), signer)
	if err != nil {
		h.fail(w, r, "nonce", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonceResponse{Address: signer.Hex(), Nonce: nonce})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	var body approveRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, "approve", err)
		return
	}
	req, err := body.toModel()
	if err != nil {
		h.fail(w, r, "approve", err)
		return
	}
	if err := h.svc.Approve(r.Context(), req); err != nil {
		h.fail(w, r, "approve", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	balance, err := h.svc.AssetBalance(r.Context(), holder)
	if err != nil {
		h.fail(w, r, "balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		Address: holder.Hex(),
		Asset:   h.svc.Asset().Hex(),
		Balance: balance.Dec(),
	})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var body mintRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, "mint", err)
		return
	}
	var p fieldParser
	holder := p.address("holder", body.Holder)
	amount := p.amount("amount", body.Amount)
	if p.err != nil {
		h.fail(w, r, "mint", p.err)
		return
	}
	balance, err := h.svc.Fund(r.Context(), holder, amount)
	if err != nil {
		h.fail(w, r, "mint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		Address: holder.Hex(),
		Asset:   h.svc.Asset().Hex(),
		Balance: balance.Dec(),
	})
}

func (h *Handler) pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	var p fieldParser
	addr := p.address("address", chi.URLParam(r, "address"))
	if p.err != nil {
		h.fail(w, r, "path", p.err)
		return common.Address{}, false
	}
	return addr, true
}

// fail logs and writes err. Client errors log at warn, everything else at error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
