package api

import (
	"github.com/monistake/monistake-backend/internal/onchain"
)

// JSON-RPC 2.0 request structure
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// JSON-RPC 2.0 response structure
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSON-RPC 2.0 error structure
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// getUnsignedTransaction method parameters
type GetUnsignedTransactionParams struct {
	Action    string `json:"action"`
	Owner     string `json:"owner"`
	Amount    string `json:"amount,omitempty"`
	AmountRaw string `json:"amountRaw,omitempty"`
	LockDays  uint16 `json:"lockDays,omitempty"`
}

// getUnsignedTransaction method result
type GetUnsignedTransactionResult struct {
	Call *onchain.UnsignedCall `json:"call"`
}

type GetSnapshotParams struct {
	Address string `json:"address,omitempty"`
}

type GetWriteStatusParams struct {
	ID string `json:"id"`
}

// JSON-RPC error codes (following standard)
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Application error codes
const (
	JSONRPCPrecondition = -32001
	JSONRPCWritePending = -32002
	JSONRPCNotFound     = -32004
)
