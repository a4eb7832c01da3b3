package validatedaemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

// rpcRequest/rpcResponse model the minimal JSON-RPC 2.0 envelope the
// chain daemons speak for their Filecoin.* methods, grounded on the
// original implementation's request_lotus_api helper.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// callRPC posts a single JSON-RPC request to endpoint and, if out is
// non-nil, decodes the result field into it.
func callRPC(ctx context.Context, endpoint, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "encode rpc request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build rpc request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "rpc request to "+endpoint, err)
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeMalformedMessage, "decode rpc response", err)
	}
	if rr.Error != nil {
		return pipelineerrors.New(pipelineerrors.ErrCodeToolFailure, fmt.Sprintf("%s: %s", method, rr.Error.Message))
	}
	if out == nil || len(rr.Result) == 0 || string(rr.Result) == "null" {
		return nil
	}
	return json.Unmarshal(rr.Result, out)
}
