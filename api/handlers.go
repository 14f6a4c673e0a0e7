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

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database/plugin/metadata"
	"github.com/blinklabs-io/desci/ledger"
)

const maxRequestBodySize = 1 << 20

var (
	errInvalidID   = errors.New("invalid id")
	errInvalidBody = errors.New("invalid request body")
)

// argsFunc builds query arguments from the request path
type argsFunc func(c *gin.Context) (any, error)

// writeError writes an error response with the status and contract code
// mapped from err
func (a *API) writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error(
			"request failed",
			"path", c.FullPath(),
			"error", err,
		)
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
		Code:       code,
	})
}

func idParam(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errInvalidID, c.Param(name))
	}
	return id, nil
}

func accountParam(c *gin.Context) (contract.Account, error) {
	account := contract.Account(c.Param("account"))
	if err := ledger.ValidateAccount(account); err != nil {
		return "", err
	}
	return account, nil
}

func idArgs(c *gin.Context) (any, error) {
	id, err := idParam(c, "id")
	if err != nil {
		return nil, err
	}
	return ledger.IDArgs{ID: id}, nil
}

func accountArgs(c *gin.Context) (any, error) {
	account, err := accountParam(c)
	if err != nil {
		return nil, err
	}
	return ledger.AccountArgs{Account: account}, nil
}

// queryHandler returns a handler that runs a read-only method with arguments
// taken from the request path. An absent record is reported as not found.
func (a *API) queryHandler(method string, args argsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rawArgs json.RawMessage
		if args != nil {
			v, err := args(c)
			if err != nil {
				a.writeError(c, err)
				return
			}
			rawArgs, err = json.Marshal(v)
			if err != nil {
				a.writeError(c, err)
				return
			}
		}
		a.writeQueryResult(c, method, rawArgs)
	}
}

func (a *API) writeQueryResult(
	c *gin.Context,
	method string,
	args json.RawMessage,
) {
	ret, err := a.node.Query(method, args)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if bytes.Equal(ret, []byte("null")) {
		a.writeError(c, contract.ErrNotFound)
		return
	}
	c.Data(http.StatusOK, "application/json", ret)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		IsHealthy: true,
		Height:    a.node.Height(),
	})
}

func (a *API) handleHeight(c *gin.Context) {
	c.JSON(http.StatusOK, HeightResponse{
		Height: a.node.Height(),
	})
}

// handleSubmitCall handles POST /calls and queues the call in the mempool
func (a *API) handleSubmitCall(c *gin.Context) {
	var req SubmitCallRequest
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodySize))
	if err != nil {
		a.writeError(c, fmt.Errorf("%w: %w", errInvalidBody, err))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		a.writeError(c, fmt.Errorf("%w: %w", errInvalidBody, err))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := a.node.SubmitCall(req); err != nil {
		a.writeError(c, err)
		return
	}
	a.logger.Debug(
		"accepted call",
		"call_id", req.ID,
		"method", req.Method,
		"caller", string(req.Caller),
	)
	c.JSON(http.StatusAccepted, SubmitCallResponse{ID: req.ID})
}

// handleGetCall handles GET /calls/:id. A call still in the mempool is
// reported as pending.
func (a *API) handleGetCall(c *gin.Context) {
	id := c.Param("id")
	receipt, err := a.node.CallReceipt(id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if receipt != nil {
		c.JSON(http.StatusOK, receipt)
		return
	}
	if a.node.CallPending(id) {
		c.JSON(http.StatusAccepted, PendingCallResponse{ID: id, Pending: true})
		return
	}
	a.writeError(c, fmt.Errorf("call %s: %w", id, contract.ErrNotFound))
}

func (a *API) handleListCalls(c *gin.Context) {
	page, err := ParsePagination(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	receipts, err := a.node.RecentReceipts(page.Count)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipts)
}

func (a *API) handleBalance(c *gin.Context) {
	account, err := accountParam(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	balance, err := a.node.Balance(account)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Account: string(account),
		Balance: balance,
	})
}

func (a *API) handleListProposals(c *gin.Context) {
	page, err := ParsePagination(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	proposals, err := a.node.ListProposals(metadata.ProposalFilter{
		Status:     c.Query("status"),
		Researcher: c.Query("researcher"),
		Category:   c.Query("category"),
		Pagination: page,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposals)
}

func (a *API) handleProposalMilestones(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		a.writeError(c, err)
		return
	}
	milestones, err := a.node.ListMilestones(id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestones)
}

func (a *API) handleProposalContributions(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		a.writeError(c, err)
		return
	}
	page, err := ParsePagination(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	contributions, err := a.node.ListContributions(metadata.ContributionFilter{
		ProposalID: id,
		Donor:      c.Query("donor"),
		Pagination: page,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contributions)
}

func (a *API) handleAccountTokens(c *gin.Context) {
	account, err := accountParam(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	page, err := ParsePagination(c)
	if err != nil {
		a.writeError(c, err)
		return
	}
	tokens, err := a.node.ListTokensByOwner(account, page)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// handleQuery handles POST /query/:method with the request body as arguments
func (a *API) handleQuery(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodySize))
	if err != nil {
		a.writeError(c, fmt.Errorf("%w: %w", errInvalidBody, err))
		return
	}
	a.writeQueryResult(c, c.Param("method"), body)
}
