// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// hookRequestTimeout is the fixed connect+read deadline for hook calls
// (spec.md §4.9); it is never configurable per rule.
const hookRequestTimeout = 60 * time.Second

// HookAction delegates the allow/deny decision to an external service.
// The URL and optional static headers are fixed at config-load time.
type HookAction struct {
	URL     *url.URL
	Headers map[string][]string
}

// SkippableDecision is a hook's tri-state verdict: Allow/Deny terminate
// the rule chain, NoDecision falls through to the next rule exactly as
// if this rule hadn't matched.
type SkippableDecision string

const (
	HookAllow      SkippableDecision = "allow"
	HookDeny       SkippableDecision = "deny"
	HookNoDecision SkippableDecision = "noDecision"
)

// executeTxOkResponse is the hook's JSON response body.
type executeTxOkResponse struct {
	Decision    SkippableDecision `json:"decision"`
	UserMessage *string           `json:"userMessage,omitempty"`
}

// executeTxRequestPayload mirrors the original gas-station execute_tx
// payload forwarded to the hook so it can make the same decision the
// caller originally asked for.
type executeTxRequestPayload struct {
	ReservationID uint64      `json:"reservationId"`
	TxBytes       string      `json:"txBytes"`
	UserSig       string      `json:"userSig"`
	RequestType   RequestType `json:"requestType,omitempty"`
}

type executeTxGasStationRequest struct {
	Payload executeTxRequestPayload `json:"payload"`
	Headers map[string][]string     `json:"headers"`
}

type executeTxHookRequest struct {
	ExecuteTxRequest executeTxGasStationRequest `json:"executeTxRequest"`
}

func buildHookRequestPayload(ctx *TransactionContext) executeTxHookRequest {
	headers := make(map[string][]string, len(ctx.Headers))
	for k, v := range ctx.Headers {
		headers[k] = append([]string(nil), v...)
	}
	return executeTxHookRequest{
		ExecuteTxRequest: executeTxGasStationRequest{
			Payload: executeTxRequestPayload{
				ReservationID: ctx.ReservationID,
				TxBytes:       ctx.TxBytes,
				UserSig:       ctx.UserSig,
				RequestType:   ctx.RequestType,
			},
			Headers: headers,
		},
	}
}

// HookClient posts the hook request envelope and interprets the tri-state
// response. It has no per-call state and is safe for concurrent use.
type HookClient struct {
	httpClient *http.Client
}

func NewHookClient() *HookClient {
	return &HookClient{httpClient: &http.Client{Timeout: hookRequestTimeout}}
}

// Call invokes the hook bound to action and reports its decision. A
// non-2xx response is wrapped in a *HookError satisfying
// errors.Is(err, ErrHookFailed).
func (c *HookClient) Call(ctx context.Context, action HookAction, txCtx *TransactionContext) (executeTxOkResponse, error) {
	body := buildHookRequestPayload(txCtx)
	encoded, err := json.Marshal(body)
	if err != nil {
		return executeTxOkResponse{}, fmt.Errorf("accesscontrol: failed to encode hook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.URL.String(), bytes.NewReader(encoded))
	if err != nil {
		return executeTxOkResponse{}, fmt.Errorf("accesscontrol: failed to build hook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, values := range action.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return executeTxOkResponse{}, fmt.Errorf("%w: %v", ErrHookFailed, err)
	}
	defer cleanlyCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, hookErrorExcerptLimit))
		return executeTxOkResponse{}, newHookError(resp.StatusCode, string(excerpt))
	}

	var out executeTxOkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return executeTxOkResponse{}, fmt.Errorf("accesscontrol: failed to decode hook response: %w", err)
	}
	return out, nil
}

// cleanlyCloseBody drains and closes resp.Body so the underlying
// connection can be reused.
func cleanlyCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
