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

package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/desci/api"
	"github.com/blinklabs-io/desci/client"
	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/driver"
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

// newTestNode runs a ledger with a fast block driver behind an httptest server
func newTestNode(t *testing.T) (*client.Client, contract.Account) {
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
	alice, err := ledger.AccountFromSeed([]byte("alice"))
	require.NoError(t, err)
	require.NoError(t, ls.Genesis(map[contract.Account]uint64{alice: 1000}))
	mp := mempool.NewMempool(mempool.MempoolConfig{
		Validator: ls,
		EventBus:  eventBus,
	})
	t.Cleanup(mp.Stop)
	drv, err := driver.NewDriver(driver.DriverConfig{
		EventBus:      eventBus,
		Ledger:        ls,
		CallSource:    mp,
		BlockInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, drv.Start(context.Background()))
	t.Cleanup(drv.Stop)
	srv := httptest.NewServer(
		api.New(api.APIConfig{}, api.NewNodeAdapter(ls, mp), nil).Handler(),
	)
	t.Cleanup(srv.Close)
	c := client.New(
		srv.URL,
		client.WithHTTPClient(srv.Client()),
		client.WithPollInterval(10*time.Millisecond),
	)
	return c, alice
}

func submitAndWait(
	t *testing.T,
	c *client.Client,
	caller contract.Account,
	method string,
	args any,
) *ledger.CallResult {
	t.Helper()
	call, err := ledger.NewCall(caller, method, args, 1)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := c.SubmitCall(ctx, call)
	require.NoError(t, err)
	receipt, err := c.WaitForReceipt(ctx, id)
	require.NoError(t, err)
	return receipt
}

func TestSubmitAndWaitForReceipt(t *testing.T) {
	c, alice := newTestNode(t)
	ctx := context.Background()

	receipt := submitAndWait(t, c, alice, ledger.MethodRegister, ledger.RegisterArgs{
		Name:        "Alice",
		Institution: "Open Lab",
	})
	require.True(t, receipt.Success, receipt.Error)

	profile, err := c.Researcher(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)

	receipt = submitAndWait(t, c, alice, ledger.MethodSubmitProposal, ledger.SubmitProposalArgs{
		Title:            "Soil microbiome",
		Abstract:         "Sampling",
		Category:         "biology",
		FundingRequested: 50,
	})
	require.True(t, receipt.Success, receipt.Error)
	receipt = submitAndWait(t, c, alice, ledger.MethodContribute, ledger.ContributeArgs{
		ProposalID: 1,
		Amount:     50,
	})
	require.True(t, receipt.Success, receipt.Error)

	proposal, err := c.Proposal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, contract.ProposalStatusFunded, proposal.Status)
	assert.Equal(t, uint64(50), proposal.FundingReceived)

	lastToken, err := c.LastTokenID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lastToken)
	owner, err := c.TokenOwner(ctx, lastToken)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	balance, err := c.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000-3-50), balance)

	height, err := c.Height(ctx)
	require.NoError(t, err)
	assert.Greater(t, height, uint64(0))

	recent, err := c.RecentReceipts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestContractErrorsUnwrap(t *testing.T) {
	c, alice := newTestNode(t)
	ctx := context.Background()

	_, err := c.Proposal(ctx, 99)
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))
	assert.ErrorIs(t, err, contract.ErrNotFound)

	receipt := submitAndWait(t, c, alice, ledger.MethodApproveMilestone, ledger.IDArgs{ID: 7})
	assert.False(t, receipt.Success)
	assert.Equal(t, contract.ErrNotFound.Code, receipt.ErrorCode)

	_, err = c.Query(ctx, ledger.MethodIncrement, nil)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestPollerFollowsCounter(t *testing.T) {
	c, alice := newTestNode(t)
	poller, err := c.NewPoller(ledger.MethodGetCounter, nil, 10*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	results := poller.Run(ctx)

	first := testutil.RequireReceive(t, results, 5*time.Second, "first poll result")
	require.NoError(t, first.Err)
	assert.JSONEq(t, "0", string(first.Value))

	receipt := submitAndWait(t, c, alice, ledger.MethodIncrement, nil)
	require.True(t, receipt.Success, receipt.Error)

	deadline := time.After(5 * time.Second)
	for seen := false; !seen; {
		select {
		case res := <-results:
			require.NoError(t, res.Err)
			var value uint64
			require.NoError(t, json.Unmarshal(res.Value, &value))
			seen = value == 1
		case <-deadline:
			t.Fatal("poller never observed the incremented counter")
		}
	}

	cancel()
	for range results { //nolint:revive
		// drain until closed
	}
}

func TestNewPollerRejectsInterval(t *testing.T) {
	c := client.New("http://localhost:1")
	_, err := c.NewPoller(ledger.MethodGetCounter, nil, 0)
	assert.Error(t, err)
}

func TestNonJSONErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := client.New(srv.URL+"/", client.WithHTTPClient(srv.Client()))
	_, err := c.Height(context.Background())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream broke", apiErr.Message)
	assert.Nil(t, errors.Unwrap(apiErr))
}

func TestWaitForReceiptHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"x","pending":true}`))
	}))
	defer srv.Close()
	c := client.New(
		srv.URL,
		client.WithHTTPClient(srv.Client()),
		client.WithPollInterval(5*time.Millisecond),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.WaitForReceipt(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
