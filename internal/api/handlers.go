package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/config"
	"github.com/monistake/monistake-backend/internal/dashboard"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/monistake/monistake-backend/internal/store"
	"github.com/monistake/monistake-backend/internal/ws"
	"go.uber.org/zap"
)

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

// ChainPinger reports whether the RPC node answers
type ChainPinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	reader     onchain.SnapshotReader
	dispatcher onchain.WriteDispatcher
	chain      ChainPinger
	wsHub      *ws.Hub
	sseHandler *ws.SSEHandler
	cache      *store.Cache
	config     *config.Config
	logger     *zap.SugaredLogger
}

func NewHandler(
	reader onchain.SnapshotReader,
	dispatcher onchain.WriteDispatcher,
	chain ChainPinger,
	wsHub *ws.Hub,
	sseHandler *ws.SSEHandler,
	cache *store.Cache,
	config *config.Config,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		reader:     reader,
		dispatcher: dispatcher,
		chain:      chain,
		wsHub:      wsHub,
		sseHandler: sseHandler,
		cache:      cache,
		config:     config,
		logger:     logger,
	}
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	buyback := ""
	if b := h.config.Contracts.Buyback(); b != (common.Address{}) {
		buyback = b.Hex()
	}
	h.writeJSON(w, http.StatusOK, ConfigDTO{
		Chain: ChainDTO{
			ID:          h.config.Chain.ChainID,
			Name:        h.config.Chain.Name,
			RPCURL:      h.config.Chain.RPCURL,
			ExplorerURL: h.config.Chain.ExplorerURL,
		},
		Contracts: ContractsDTO{
			Token:         h.config.Contracts.Token().Hex(),
			Staking:       h.config.Contracts.Staking().Hex(),
			BuybackWallet: buyback,
		},
		WalletConnectProjectID: h.config.Wallet.WalletConnectProjectID,
		LockPresets:            h.config.Staking.LockPresets,
		TokenSymbol:            h.config.Staking.TokenSymbol,
		TokenDecimals:          h.config.Staking.TokenDecimals,
	})
}

// Dashboard endpoints
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	h.serveDashboard(w, r, h.reader.Snapshot)
}

func (h *Handler) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	h.serveDashboard(w, r, h.reader.Refresh)
}

type snapshotFunc func(ctx context.Context, owner *common.Address) (*onchain.Snapshot, error)

// serveDashboard takes the wallet from the {address} path segment, falling
// back to the address query parameter
func (h *Handler) serveDashboard(w http.ResponseWriter, r *http.Request, load snapshotFunc) {
	address := chi.URLParam(r, "address")
	if address == "" {
		address = r.URL.Query().Get("address")
	}
	owner, err := parseOwner(address)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
		return
	}

	snap, ok := h.loadSnapshot(w, r, load, owner)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, dashboard.Build(snap, h.viewOptions(owner)))
}

func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner, err := parseOwner(q.Get("address"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
		return
	}
	action, err := onchain.ParseAction(q.Get("action"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_ACTION", err.Error())
		return
	}
	var lockDays uint16
	if raw := q.Get("lock_days"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "INVALID_LOCK_DAYS", "lock_days must be a small positive integer")
			return
		}
		lockDays = uint16(v)
	}

	snap, ok := h.loadSnapshot(w, r, h.reader.Snapshot, owner)
	if !ok {
		return
	}
	intent := dashboard.Intent{Action: action, AmountText: q.Get("amount"), LockDays: lockDays}
	h.writeJSON(w, http.StatusOK, dashboard.BuildPreview(snap, intent, h.viewOptions(owner)))
}

func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r, h.reader.Snapshot, nil)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toSnapshotDTO(snap, false))
}

func (h *Handler) GetUserSnapshot(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(chi.URLParam(r, "address"))
	if err != nil || owner == nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_ADDRESS", "a valid 0x address is required")
		return
	}

	snap, ok := h.loadSnapshot(w, r, h.reader.Snapshot, owner)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toSnapshotDTO(snap, h.dispatcher.IsPending(*owner)))
}

// ParseUnits converts display text to a raw integer for clients without big
// number support. Decimals default to the token's on-chain value.
func (h *Handler) ParseUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("amount")
	decimals := h.tokenDecimals(r.Context())
	if raw := q.Get("decimals"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "INVALID_DECIMALS", "decimals must be between 0 and 255")
			return
		}
		decimals = int(v)
	}

	raw := calc.FromDisplayString(text, decimals)
	h.writeJSON(w, http.StatusOK, UnitsDTO{
		Amount:   text,
		Raw:      raw.String(),
		Decimals: decimals,
		Display:  calc.ToDisplayString(raw, decimals, decimals),
	})
}

// loadSnapshot serves stale snapshots with a warning; it only fails when
// there is nothing to show at all
func (h *Handler) loadSnapshot(w http.ResponseWriter, r *http.Request, load snapshotFunc, owner *common.Address) (*onchain.Snapshot, bool) {
	snap, err := load(r.Context(), owner)
	if snap == nil {
		msg := "snapshot unavailable"
		if err != nil {
			msg = err.Error()
		}
		h.writeError(w, r, http.StatusServiceUnavailable, "SNAPSHOT_UNAVAILABLE", msg)
		return nil, false
	}
	if err != nil {
		h.logger.Warnw("Serving stale snapshot", "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	return snap, true
}

// Transaction endpoints
func (h *Handler) BuildTransaction(w http.ResponseWriter, r *http.Request) {
	var dto WriteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	req, err := h.toWriteRequest(r.Context(), dto)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	call, err := h.dispatcher.Build(r.Context(), req)
	if err != nil {
		h.writeDispatchError(w, r, err)
		return
	}

	out := UnsignedCallDTO{
		UnsignedCall: call,
		ExplorerURL:  h.config.Chain.ExplorerAddressURL(call.To.Hex()),
	}
	if req.Amount != nil {
		out.Amount = req.Amount.String()
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	req, err := h.toWriteRequest(r.Context(), dto.WriteRequestDTO)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	raw, err := hexutil.Decode(dto.RawTx)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_TRANSACTION", "raw_tx must be 0x-prefixed hex")
		return
	}

	rec, err := h.dispatcher.SubmitSigned(r.Context(), req, raw)
	if err != nil && rec == nil {
		h.writeDispatchError(w, r, err)
		return
	}
	if err != nil {
		// submitted but rejected by the node; the failed record is still returned
		h.logger.Warnw("Signed transaction rejected", "request_id", middleware.GetReqID(r.Context()), "id", rec.ID, "error", err)
		h.writeJSON(w, http.StatusBadGateway, h.recordDTO(rec))
		return
	}

	h.logger.Infow("Signed transaction accepted", "request_id", middleware.GetReqID(r.Context()), "id", rec.ID, "action", rec.Action)
	h.writeJSON(w, http.StatusAccepted, h.recordDTO(rec))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_ID", "id must be a UUID")
		return
	}
	rec, err := h.dispatcher.Record(r.Context(), id)
	if err != nil {
		h.writeDispatchError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.recordDTO(rec))
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	check := func(name string, ping func(context.Context) error) {
		if err := ping(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			return
		}
		checks[name] = "ok"
	}
	if h.chain != nil {
		check("chain", h.chain.Ping)
	}
	if h.cache != nil {
		check("cache", h.cache.Ping)
	}

	out := ReadinessDTO{Status: "ready", Checks: checks}
	if status != http.StatusOK {
		out.Status = "degraded"
	}
	h.writeJSON(w, status, out)
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHub.HandleWebSocket(w, r)
}

func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseHandler.HandleSSE(w, r)
}

func (h *Handler) viewOptions(owner *common.Address) dashboard.Options {
	return dashboard.Options{
		Now:            time.Now(),
		Pending:        owner != nil && h.dispatcher.IsPending(*owner),
		TokenAddress:   h.config.Contracts.Token(),
		StakingAddress: h.config.Contracts.Staking(),
		LockPresets:    h.config.Staking.LockPresets,
	}
}

func (h *Handler) toWriteRequest(ctx context.Context, dto WriteRequestDTO) (onchain.WriteRequest, error) {
	action, err := onchain.ParseAction(dto.Action)
	if err != nil {
		return onchain.WriteRequest{}, err
	}
	if !common.IsHexAddress(dto.Owner) {
		return onchain.WriteRequest{}, fmt.Errorf("owner must be a 0x address")
	}
	req := onchain.WriteRequest{
		Action:   action,
		Owner:    common.HexToAddress(dto.Owner),
		LockDays: dto.LockDays,
	}
	if !action.NeedsAmount() {
		return req, nil
	}

	switch {
	case dto.AmountRaw != "":
		amount, ok := new(big.Int).SetString(dto.AmountRaw, 10)
		if !ok {
			return onchain.WriteRequest{}, fmt.Errorf("amount_raw must be a base-10 integer")
		}
		req.Amount = amount
	default:
		// malformed text parses to zero and is rejected as a precondition
		req.Amount = calc.FromDisplayString(dto.Amount, h.tokenDecimals(ctx))
	}
	return req, nil
}

// tokenDecimals prefers the on-chain value over the configured fallback
func (h *Handler) tokenDecimals(ctx context.Context) int {
	if snap, _ := h.reader.Snapshot(ctx, nil); snap != nil {
		return int(snap.Token.Decimals)
	}
	return h.config.Staking.TokenDecimals
}

func (h *Handler) recordDTO(rec *onchain.WriteRecord) WriteRecordDTO {
	out := WriteRecordDTO{WriteRecord: rec}
	if rec.TxHash != nil {
		out.ExplorerURL = h.config.Chain.ExplorerTxURL(rec.TxHash.Hex())
	}
	return out
}

func (h *Handler) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, onchain.ErrPrecondition):
		h.writeError(w, r, http.StatusUnprocessableEntity, "PRECONDITION_FAILED", err.Error())
	case errors.Is(err, onchain.ErrWritePending):
		h.writeError(w, r, http.StatusConflict, "WRITE_PENDING", err.Error())
	case errors.Is(err, onchain.ErrTxMismatch):
		h.writeError(w, r, http.StatusBadRequest, "TX_MISMATCH", err.Error())
	case errors.Is(err, onchain.ErrRecordNotFound):
		h.writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		h.writeError(w, r, http.StatusBadGateway, "CHAIN_ERROR", err.Error())
	}
}

func parseOwner(s string) (*common.Address, error) {
	if s == "" {
		return nil, nil
	}
	if !common.IsHexAddress(s) {
		return nil, fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	return &addr, nil
}

func toSnapshotDTO(snap *onchain.Snapshot, pending bool) SnapshotDTO {
	out := SnapshotDTO{
		Token: snap.Token,
		Pool: PoolDTO{
			TotalStaked:   bigString(snap.Pool.TotalStaked),
			RewardsInPool: bigString(snap.Pool.RewardsInPool),
			StakerCount:   bigString(snap.Pool.StakerCount),
			Fees:          snap.Pool.Fees,
			BuybackWallet: snap.Pool.BuybackWallet.Hex(),
		},
		Pending: pending,
		Stale:   snap.Stale,
		AsOf:    snap.AsOf.Unix(),
	}
	if snap.Owner != nil {
		out.Owner = snap.Owner.Hex()
	}
	if snap.Wallet != nil {
		out.Balance = bigString(snap.Wallet.Balance)
		out.Allowance = bigString(snap.Wallet.Allowance)
	}
	if snap.Position != nil {
		out.Position = &PositionDTO{
			Amount:     bigString(snap.Position.Amount),
			RewardDebt: bigString(snap.Position.RewardDebt),
			UnlockTime: snap.Position.UnlockTime,
			LockDays:   snap.Position.LockDays,
			Exists:     snap.Position.Exists,
		}
	}
	if snap.PendingRewards != nil {
		out.PendingRewards = snap.PendingRewards.String()
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.logger.Errorw("API error",
		"request_id", middleware.GetReqID(r.Context()),
		"code", code,
		"message", message,
		"status", status,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
