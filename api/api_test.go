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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/desci/api"
	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/event"
	"github.com/blinklabs-io/desci/internal/test/testutil"
	"github.com/blinklabs-io/desci/ledger"
	"github.com/blinklabs-io/desci/mempool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(
		m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type testServer struct {
	t        *testing.T
	baseURL  string
	client   *http.Client
	ledger   *ledger.LedgerState
	mempool  *mempool.Mempool
	accounts map[string]contract.Account
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	eventBus := event.NewEventBus(nil, nil)
	t.Cleanup(eventBus.Stop)
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database: db,
		EventBus: eventBus,
		MinFee:   1,
	})
	require.NoError(t, err)
	accounts := map[string]contract.Account{}
	balances := map[contract.Account]uint64{}
	for _, name := range []string{"alice", "bob"} {
		acct, err := ledger.AccountFromSeed([]byte(name))
		require.NoError(t, err)
		accounts[name] = acct
		balances[acct] = 1000
	}
	require.NoError(t, ls.Genesis(balances))
	mp := mempool.NewMempool(mempool.MempoolConfig{
		Validator: ls,
		EventBus:  eventBus,
	})
	t.Cleanup(mp.Stop)
	srv := api.New(
		api.APIConfig{ListenAddress: "127.0.0.1:0"},
		api.NewNodeAdapter(ls, mp),
		nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() {
		cancel()
		require.NoError(t, srv.Stop(context.Background()))
	})
	return &testServer{
		t:        t,
		baseURL:  "http://" + srv.Addr().String() + api.APIPrefix,
		client:   &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
		ledger:   ls,
		mempool:  mp,
		accounts: accounts,
	}
}

func (s *testServer) do(method string, path string, body any) (int, []byte) {
	s.t.Helper()
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	require.NoError(s.t, err)
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, data
}

func (s *testServer) submit(caller string, method string, args any) string {
	s.t.Helper()
	call, err := ledger.NewCall(s.accounts[caller], method, args, 1)
	require.NoError(s.t, err)
	status, body := s.do(http.MethodPost, "/calls", call)
	require.Equal(s.t, http.StatusAccepted, status, string(body))
	var resp api.SubmitCallResponse
	require.NoError(s.t, json.Unmarshal(body, &resp))
	assert.Equal(s.t, call.ID, resp.ID)
	return resp.ID
}

// produce applies everything queued in the mempool
func (s *testServer) produce() {
	s.t.Helper()
	for _, call := range s.mempool.NextBatch(100) {
		_, err := s.ledger.Apply(call)
		require.NoError(s.t, err)
	}
	_, err := s.ledger.AdvanceHeight()
	require.NoError(s.t, err)
}

func TestServerEndToEnd(t *testing.T) {
	s := newTestServer(t)
	alice := s.accounts["alice"]

	registerID := s.submit("alice", ledger.MethodRegister, ledger.RegisterArgs{
		Name:        "Alice",
		Institution: "Open Lab",
	})
	status, _ := s.do(http.MethodGet, "/calls/"+registerID, nil)
	assert.Equal(t, http.StatusAccepted, status)

	s.produce()
	status, body := s.do(http.MethodGet, "/calls/"+registerID, nil)
	require.Equal(t, http.StatusOK, status)
	var receipt ledger.CallResult
	require.NoError(t, json.Unmarshal(body, &receipt))
	assert.True(t, receipt.Success, receipt.Error)

	status, body = s.do(http.MethodGet, "/researchers/"+string(alice), nil)
	require.Equal(t, http.StatusOK, status)
	var profile contract.ResearcherProfile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "Alice", profile.Name)

	s.submit("alice", ledger.MethodSubmitProposal, ledger.SubmitProposalArgs{
		Title:            "Soil microbiome",
		Abstract:         "Sampling",
		Category:         "biology",
		FundingRequested: 100,
	})
	s.produce()

	status, body = s.do(http.MethodGet, "/proposals?researcher="+string(alice), nil)
	require.Equal(t, http.StatusOK, status)
	var proposals []contract.Proposal
	require.NoError(t, json.Unmarshal(body, &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, "Soil microbiome", proposals[0].Title)

	status, _ = s.do(http.MethodGet, "/proposals/1", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodGet, "/proposals/2", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(http.MethodGet, "/accounts/"+string(alice)+"/balance", nil)
	require.Equal(t, http.StatusOK, status)
	var balance api.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &balance))
	assert.Equal(t, uint64(998), balance.Balance)

	status, body = s.do(http.MethodGet, "/height", nil)
	require.Equal(t, http.StatusOK, status)
	var height api.HeightResponse
	require.NoError(t, json.Unmarshal(body, &height))
	assert.Equal(t, uint64(2), height.Height)

	status, body = s.do(http.MethodGet, "/calls?count=10", nil)
	require.Equal(t, http.StatusOK, status)
	var recent []ledger.CallResult
	require.NoError(t, json.Unmarshal(body, &recent))
	assert.Len(t, recent, 2)
}

func TestServerFailedCallReceipt(t *testing.T) {
	s := newTestServer(t)
	id := s.submit("bob", ledger.MethodContribute, ledger.ContributeArgs{
		ProposalID: 99,
		Amount:     10,
	})
	s.produce()
	status, body := s.do(http.MethodGet, "/calls/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	var receipt ledger.CallResult
	require.NoError(t, json.Unmarshal(body, &receipt))
	assert.False(t, receipt.Success)
	assert.Equal(t, contract.ErrNotFound.Code, receipt.ErrorCode)
	assert.Equal(t, uint64(1), receipt.Fee)
}

func TestServerQueryRoutes(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(http.MethodGet, "/counter", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "0", string(body))

	status, body = s.do(http.MethodGet, "/tokens/last", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "0", string(body))

	status, _ = s.do(http.MethodGet, "/tokens/1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodPost, "/query/"+ledger.MethodIncrement, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/query/unknown-method", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServerRejectsUnfundedCaller(t *testing.T) {
	s := newTestServer(t)
	stranger, err := ledger.AccountFromSeed([]byte("stranger"))
	require.NoError(t, err)
	call, err := ledger.NewCall(stranger, ledger.MethodIncrement, nil, 1)
	require.NoError(t, err)
	status, body := s.do(http.MethodPost, "/calls", call)
	require.Equal(t, http.StatusPaymentRequired, status, string(body))
	assert.Equal(t, 0, s.mempool.Len())
}
