package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error"`
}

func callRPC(t *testing.T, h *Handler, body interface{}) rpcReply {
	t.Helper()
	rec := serve(h, http.MethodPost, "/v1/jsonrpc", body)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[rpcReply](t, rec)
}

func TestJSONRPCHandler_GetUnsignedTransaction(t *testing.T) {
	h, _, dispatcher := createTestHandler(t)
	dispatcher.On("Build", mock.Anything, mock.MatchedBy(func(req onchain.WriteRequest) bool {
		return req.Action == onchain.ActionSyncRewards && req.Owner == testUser
	})).Return(&onchain.UnsignedCall{
		Action: onchain.ActionSyncRewards,
		Method: onchain.MethodSyncRewards,
		To:     testStaking,
	}, nil)

	reply := callRPC(t, h, JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      "req-1",
		Method:  "getUnsignedTransaction",
		Params:  GetUnsignedTransactionParams{Action: "sync", Owner: testUser.Hex()},
	})
	require.Nil(t, reply.Error)
	assert.Equal(t, "req-1", reply.ID)

	var result struct {
		Call struct {
			Method string `json:"method"`
			To     string `json:"to"`
		} `json:"call"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Equal(t, onchain.MethodSyncRewards, result.Call.Method)
	assert.True(t, strings.EqualFold(testStaking.Hex(), result.Call.To))
}

func TestJSONRPCHandler_Errors(t *testing.T) {
	h, _, dispatcher := createTestHandler(t)
	dispatcher.On("Build", mock.Anything, mock.Anything).Return(nil, onchain.ErrWritePending)

	tests := []struct {
		name string
		req  interface{}
		code int
	}{
		{"wrong version", JSONRPCRequest{JSONRPC: "1.0", ID: 1, Method: "getSnapshot"}, JSONRPCInvalidRequest},
		{"unknown method", JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "eth_sendTransaction"}, JSONRPCMethodNotFound},
		{"bad params", JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "getUnsignedTransaction", Params: GetUnsignedTransactionParams{Action: "mint", Owner: testUser.Hex()}}, JSONRPCInvalidParams},
		{"pending write", JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "getUnsignedTransaction", Params: GetUnsignedTransactionParams{Action: "claim", Owner: testUser.Hex()}}, JSONRPCWritePending},
		{"bad id", JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "getWriteStatus", Params: GetWriteStatusParams{ID: "x"}}, JSONRPCInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := callRPC(t, h, tt.req)
			require.NotNil(t, reply.Error)
			assert.Equal(t, tt.code, reply.Error.Code)
		})
	}
}

func TestJSONRPCHandler_ParseError(t *testing.T) {
	h, _, _ := createTestHandler(t)
	rec := serve(h, http.MethodPost, "/v1/jsonrpc", "{not json")
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[rpcReply](t, rec)
	require.NotNil(t, reply.Error)
	assert.Equal(t, JSONRPCParseError, reply.Error.Code)
}

func TestJSONRPCHandler_GetSnapshotAndStatus(t *testing.T) {
	h, reader, dispatcher := createTestHandler(t)
	reader.On("Snapshot", mock.Anything, mock.MatchedBy(isPool)).Return(poolSnapshot(), nil)
	id := uuid.New()
	dispatcher.On("Record", mock.Anything, id).Return(&onchain.WriteRecord{ID: id, Status: onchain.StatusConfirmed}, nil)

	reply := callRPC(t, h, JSONRPCRequest{JSONRPC: "2.0", ID: 2, Method: "getSnapshot"})
	require.Nil(t, reply.Error)
	var snap SnapshotDTO
	require.NoError(t, json.Unmarshal(reply.Result, &snap))
	assert.Equal(t, "7", snap.Pool.StakerCount)

	reply = callRPC(t, h, JSONRPCRequest{JSONRPC: "2.0", ID: 3, Method: "getWriteStatus", Params: GetWriteStatusParams{ID: id.String()}})
	require.Nil(t, reply.Error)
	assert.Contains(t, string(reply.Result), `"confirmed"`)
}
