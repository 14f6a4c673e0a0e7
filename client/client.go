// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client talks to the node HTTP API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/desci/api"
	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database/plugin/metadata"
	"github.com/blinklabs-io/desci/ledger"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = time.Second
)

// APIError is a non-2xx response from the API. It unwraps to the contract
// error kind when the response carries a known code.
type APIError struct {
	StatusCode int
	Message    string
	Code       uint32
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Code == 0 {
		return nil
	}
	if cErr, ok := contract.ErrorFromCode(e.Code); ok {
		return cErr
	}
	return nil
}

// IsNotFound reports whether err is a not found response
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// Client is an HTTP client for the node API
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
}

type ClientOptionFunc func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOptionFunc {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) ClientOptionFunc {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPollInterval sets how often WaitForReceipt checks for a receipt
func WithPollInterval(interval time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

// New creates a client for the node at address, for example
// "http://localhost:8080". The API prefix is appended when missing.
func New(address string, opts ...ClientOptionFunc) *Client {
	baseURL := strings.TrimSuffix(address, "/")
	if !strings.HasSuffix(baseURL, api.APIPrefix) {
		baseURL += api.APIPrefix
	}
	c := &Client{
		baseURL:      baseURL,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return c
}

// do sends a request and decodes a successful response into dest. It returns
// the response status code.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	dest any,
) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(data, &errResp); err != nil {
			return resp.StatusCode, &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(data)),
			}
		}
		return resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errResp.Message,
			Code:       errResp.Code,
		}
	}
	if dest != nil {
		if err := json.Unmarshal(data, dest); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	_, err := c.do(ctx, http.MethodGet, path, nil, dest)
	return err
}

// SubmitCall queues a call on the node and returns its id
func (c *Client) SubmitCall(ctx context.Context, call ledger.Call) (string, error) {
	var resp api.SubmitCallResponse
	if _, err := c.do(ctx, http.MethodPost, "/calls", call, &resp); err != nil {
		return "", err
	}
	c.logger.Debug(
		"submitted call",
		"component", "client",
		"call_id", resp.ID,
		"method", call.Method,
	)
	return resp.ID, nil
}

// Receipt returns the receipt of an applied call. A nil receipt without error
// means the call is still pending.
func (c *Client) Receipt(ctx context.Context, id string) (*ledger.CallResult, error) {
	var raw json.RawMessage
	status, err := c.do(ctx, http.MethodGet, "/calls/"+url.PathEscape(id), nil, &raw)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, nil
	}
	var ret ledger.CallResult
	if err := json.Unmarshal(raw, &ret); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &ret, nil
}

// WaitForReceipt polls until the call has been applied or ctx is done
func (c *Client) WaitForReceipt(
	ctx context.Context,
	id string,
) (*ledger.CallResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.Receipt(ctx, id)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RecentReceipts returns up to count of the latest receipts, newest first
func (c *Client) RecentReceipts(
	ctx context.Context,
	count int,
) ([]ledger.CallResult, error) {
	var ret []ledger.CallResult
	err := c.get(ctx, "/calls?count="+strconv.Itoa(count), &ret)
	return ret, err
}

// Query runs a read-only method and returns the raw JSON result
func (c *Client) Query(
	ctx context.Context,
	method string,
	args any,
) (json.RawMessage, error) {
	if args == nil {
		args = struct{}{}
	}
	var ret json.RawMessage
	if _, err := c.do(
		ctx,
		http.MethodPost,
		"/query/"+url.PathEscape(method),
		args,
		&ret,
	); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) Height(ctx context.Context) (uint64, error) {
	var ret api.HeightResponse
	err := c.get(ctx, "/height", &ret)
	return ret.Height, err
}

func (c *Client) Balance(ctx context.Context, account contract.Account) (uint64, error) {
	var ret api.BalanceResponse
	err := c.get(ctx, "/accounts/"+url.PathEscape(string(account))+"/balance", &ret)
	return ret.Balance, err
}

func (c *Client) Researcher(
	ctx context.Context,
	account contract.Account,
) (*contract.ResearcherProfile, error) {
	var ret contract.ResearcherProfile
	if err := c.get(ctx, "/researchers/"+url.PathEscape(string(account)), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) Proposal(ctx context.Context, id uint64) (*contract.Proposal, error) {
	var ret contract.Proposal
	if err := c.get(ctx, "/proposals/"+strconv.FormatUint(id, 10), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Proposals lists indexed proposals matching filter
func (c *Client) Proposals(
	ctx context.Context,
	filter metadata.ProposalFilter,
) ([]contract.Proposal, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Researcher != "" {
		query.Set("researcher", filter.Researcher)
	}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Count > 0 {
		query.Set("count", strconv.Itoa(filter.Count))
	}
	path := "/proposals"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var ret []contract.Proposal
	err := c.get(ctx, path, &ret)
	return ret, err
}

func (c *Client) Milestones(
	ctx context.Context,
	proposalID uint64,
) ([]contract.Milestone, error) {
	var ret []contract.Milestone
	err := c.get(ctx, "/proposals/"+strconv.FormatUint(proposalID, 10)+"/milestones", &ret)
	return ret, err
}

func (c *Client) Milestone(ctx context.Context, id uint64) (*contract.Milestone, error) {
	var ret contract.Milestone
	if err := c.get(ctx, "/milestones/"+strconv.FormatUint(id, 10), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) Contribution(
	ctx context.Context,
	id uint64,
) (*contract.Contribution, error) {
	var ret contract.Contribution
	if err := c.get(ctx, "/contributions/"+strconv.FormatUint(id, 10), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) Token(ctx context.Context, id uint64) (*contract.ImpactToken, error) {
	var ret contract.ImpactToken
	if err := c.get(ctx, "/tokens/"+strconv.FormatUint(id, 10), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) TokenOwner(ctx context.Context, id uint64) (contract.Account, error) {
	var ret contract.Account
	err := c.get(ctx, "/tokens/"+strconv.FormatUint(id, 10)+"/owner", &ret)
	return ret, err
}

func (c *Client) LastTokenID(ctx context.Context) (uint64, error) {
	var ret uint64
	err := c.get(ctx, "/tokens/last", &ret)
	return ret, err
}

func (c *Client) Counter(ctx context.Context) (uint64, error) {
	var ret uint64
	err := c.get(ctx, "/counter", &ret)
	return ret, err
}
