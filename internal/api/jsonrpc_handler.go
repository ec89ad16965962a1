package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/monistake/monistake-backend/internal/onchain"
)

// HandleJSONRPC handles JSON-RPC 2.0 requests
func (h *Handler) HandleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSONRPCError(w, nil, JSONRPCParseError, "Parse error", err.Error())
		return
	}

	if req.JSONRPC != "2.0" {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidRequest, "Invalid Request", "jsonrpc must be '2.0'")
		return
	}

	switch req.Method {
	case "getUnsignedTransaction":
		h.handleGetUnsignedTransaction(w, r, &req)
	case "getSnapshot":
		h.handleGetSnapshot(w, r, &req)
	case "getWriteStatus":
		h.handleGetWriteStatus(w, r, &req)
	default:
		h.sendJSONRPCError(w, req.ID, JSONRPCMethodNotFound, "Method not found", fmt.Sprintf("Method '%s' not found", req.Method))
	}
}

// decodeParams round-trips the loosely typed params into dest
func decodeParams(params interface{}, dest interface{}) error {
	if params == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (h *Handler) handleGetUnsignedTransaction(w http.ResponseWriter, r *http.Request, req *JSONRPCRequest) {
	var params GetUnsignedTransactionParams
	if err := decodeParams(req.Params, &params); err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params", err.Error())
		return
	}

	writeReq, err := h.toWriteRequest(r.Context(), WriteRequestDTO{
		Action:    params.Action,
		Owner:     params.Owner,
		Amount:    params.Amount,
		AmountRaw: params.AmountRaw,
		LockDays:  params.LockDays,
	})
	if err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params", err.Error())
		return
	}

	call, err := h.dispatcher.Build(r.Context(), writeReq)
	if err != nil {
		h.logger.Warnw("Failed to build transaction", "error", err, "action", params.Action, "owner", params.Owner)
		h.sendDispatchError(w, req.ID, err)
		return
	}

	h.sendJSONRPCResult(w, req.ID, GetUnsignedTransactionResult{Call: call})
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request, req *JSONRPCRequest) {
	var params GetSnapshotParams
	if err := decodeParams(req.Params, &params); err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params", err.Error())
		return
	}
	owner, err := parseOwner(params.Address)
	if err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid address", err.Error())
		return
	}

	snap, err := h.reader.Snapshot(r.Context(), owner)
	if snap == nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInternalError, "Snapshot unavailable", fmt.Sprint(err))
		return
	}
	pending := owner != nil && h.dispatcher.IsPending(*owner)
	h.sendJSONRPCResult(w, req.ID, toSnapshotDTO(snap, pending))
}

func (h *Handler) handleGetWriteStatus(w http.ResponseWriter, r *http.Request, req *JSONRPCRequest) {
	var params GetWriteStatusParams
	if err := decodeParams(req.Params, &params); err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params", err.Error())
		return
	}
	id, err := uuid.Parse(params.ID)
	if err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid id", "id must be a UUID")
		return
	}

	rec, err := h.dispatcher.Record(r.Context(), id)
	if err != nil {
		h.sendDispatchError(w, req.ID, err)
		return
	}
	h.sendJSONRPCResult(w, req.ID, h.recordDTO(rec))
}

func (h *Handler) sendDispatchError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, onchain.ErrPrecondition):
		h.sendJSONRPCError(w, id, JSONRPCPrecondition, "Precondition failed", err.Error())
	case errors.Is(err, onchain.ErrWritePending):
		h.sendJSONRPCError(w, id, JSONRPCWritePending, "Write pending", err.Error())
	case errors.Is(err, onchain.ErrRecordNotFound):
		h.sendJSONRPCError(w, id, JSONRPCNotFound, "Not found", err.Error())
	default:
		h.sendJSONRPCError(w, id, JSONRPCInternalError, "Internal error", err.Error())
	}
}

func (h *Handler) sendJSONRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (h *Handler) sendJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	errorResp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}

	w.WriteHeader(http.StatusOK) // JSON-RPC errors are sent with HTTP 200
	json.NewEncoder(w).Encode(errorResp)
}
