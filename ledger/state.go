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

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database"
	"github.com/blinklabs-io/desci/database/types"
	"github.com/blinklabs-io/desci/event"
)

const (
	heightKeyName  = "height"
	genesisKeyName = "genesis"
)

// FeeSinkAccount receives call fees when no fee account is configured
var FeeSinkAccount = mustAccountFromSeed([]byte("desci/fees"))

var (
	ErrGenesisApplied     = errors.New("genesis already applied")
	ErrDatabaseRequired   = errors.New("database is required")
	ErrInsufficientForFee = errors.New("balance does not cover fee")
)

type LedgerStateConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	FeeAccount   contract.Account
	MinFee       uint64
}

// LedgerState simulates the host ledger around the contract. Calls are applied
// one at a time against the persistent state.
type LedgerState struct {
	sync.RWMutex
	config  LedgerStateConfig
	db      *database.Database
	logger  *slog.Logger
	metrics stateMetrics
	height  uint64
}

func NewLedgerState(cfg LedgerStateConfig) (*LedgerState, error) {
	if cfg.Database == nil {
		return nil, ErrDatabaseRequired
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.FeeAccount == "" {
		cfg.FeeAccount = FeeSinkAccount
	}
	if err := ValidateAccount(cfg.FeeAccount); err != nil {
		return nil, fmt.Errorf("fee account: %w", err)
	}
	ls := &LedgerState{
		config: cfg,
		db:     cfg.Database,
		logger: cfg.Logger,
	}
	ls.metrics.init(cfg.PromRegistry)
	if err := ls.loadState(); err != nil {
		return nil, err
	}
	return ls, nil
}

func (ls *LedgerState) loadState() error {
	txn := database.NewBlobOnlyTxn(ls.db, false)
	defer txn.Release()
	height, err := readUint(txn, types.LedgerKey(heightKeyName))
	if err != nil {
		return fmt.Errorf("load ledger height: %w", err)
	}
	escrow, err := readUint(txn, types.BalanceKey(string(ContractAccount)))
	if err != nil {
		return fmt.Errorf("load escrow balance: %w", err)
	}
	ls.height = height
	ls.metrics.height.Set(float64(height))
	ls.metrics.escrowBalance.Set(float64(escrow))
	ls.logger.Info(
		fmt.Sprintf("loaded ledger state at height %d", height),
		"component", "ledger",
	)
	return nil
}

// Database returns the underlying database
func (ls *LedgerState) Database() *database.Database {
	return ls.db
}

// FeeAccount returns the account credited with call fees
func (ls *LedgerState) FeeAccount() contract.Account {
	return ls.config.FeeAccount
}

// MinFee returns the smallest fee accepted for a call
func (ls *LedgerState) MinFee() uint64 {
	return ls.config.MinFee
}

func (ls *LedgerState) Height() uint64 {
	ls.RLock()
	defer ls.RUnlock()
	return ls.height
}

// AdvanceHeight increments the persistent ledger height and returns the new value
func (ls *LedgerState) AdvanceHeight() (uint64, error) {
	ls.Lock()
	defer ls.Unlock()
	newHeight := ls.height + 1
	txn := database.NewTxn(ls.db, true)
	err := txn.Do(func(txn *database.Txn) error {
		return txn.BlobSet(
			types.LedgerKey(heightKeyName),
			types.Uint64ToBytes(newHeight),
		)
	})
	if err != nil {
		return ls.height, fmt.Errorf("advance height: %w", err)
	}
	ls.height = newHeight
	ls.metrics.height.Set(float64(newHeight))
	return newHeight, nil
}

// Genesis credits the initial balances. It can only be applied once per
// database and returns ErrGenesisApplied afterwards.
func (ls *LedgerState) Genesis(balances map[contract.Account]uint64) error {
	for account := range balances {
		if err := ValidateAccount(account); err != nil {
			return fmt.Errorf("genesis balance: %w", err)
		}
	}
	ls.Lock()
	defer ls.Unlock()
	var escrow uint64
	var escrowTouched bool
	txn := database.NewTxn(ls.db, true)
	err := txn.Do(func(txn *database.Txn) error {
		if _, err := txn.BlobGet(types.LedgerKey(genesisKeyName)); err == nil {
			return ErrGenesisApplied
		} else if !errors.Is(err, types.ErrBlobKeyNotFound) {
			return err
		}
		for account, amount := range balances {
			key := types.BalanceKey(string(account))
			current, err := readUint(txn, key)
			if err != nil {
				return err
			}
			if current+amount < current {
				return fmt.Errorf("genesis balance overflow for %s", account)
			}
			if err := txn.BlobSet(key, types.Uint64ToBytes(current+amount)); err != nil {
				return err
			}
			if account == ContractAccount {
				escrow = current + amount
				escrowTouched = true
			}
		}
		return txn.BlobSet(
			types.LedgerKey(genesisKeyName),
			types.Uint64ToBytes(uint64(len(balances))),
		)
	})
	if err != nil {
		return err
	}
	if escrowTouched {
		ls.metrics.escrowBalance.Set(float64(escrow))
	}
	ls.logger.Info(
		fmt.Sprintf("applied genesis balances for %d accounts", len(balances)),
		"component", "ledger",
	)
	return nil
}

// Balance returns the native currency balance of an account
func (ls *LedgerState) Balance(account contract.Account) (uint64, error) {
	txn := database.NewBlobOnlyTxn(ls.db, false)
	defer txn.Release()
	return readUint(txn, types.BalanceKey(string(account)))
}

// Receipt returns the stored result of an applied call, or nil when the call
// has not been applied
func (ls *LedgerState) Receipt(callID string) (*CallResult, error) {
	receipt, err := ls.db.Metadata().GetCallReceipt(callID, nil)
	if err != nil || receipt == nil {
		return nil, err
	}
	return CallResultFromReceipt(receipt), nil
}

func (ls *LedgerState) lookupCall(call Call) (method, error) {
	if _, err := uuid.Parse(call.ID); err != nil {
		return method{}, fmt.Errorf("%w: %w", ErrInvalidCallID, err)
	}
	applied, err := ls.db.Metadata().GetCallReceipt(call.ID, nil)
	if err != nil {
		return method{}, fmt.Errorf("look up receipt for call %s: %w", call.ID, err)
	}
	if applied != nil {
		return method{}, fmt.Errorf("%w: %s", ErrCallApplied, call.ID)
	}
	if err := ValidateAccount(call.Caller); err != nil {
		return method{}, fmt.Errorf("caller: %w", err)
	}
	m, ok := methods[call.Method]
	if !ok {
		return method{}, fmt.Errorf("%w: %q", ErrUnknownMethod, call.Method)
	}
	if err := m.validate(call.Args); err != nil {
		return method{}, err
	}
	if call.Fee < ls.config.MinFee {
		return method{}, fmt.Errorf(
			"%w: %d < %d",
			ErrFeeTooLow,
			call.Fee,
			ls.config.MinFee,
		)
	}
	return m, nil
}

// ValidateCall checks a call before it is queued. It verifies the call id
// (well formed and not yet applied),
// caller identity, method, arguments and fee, and that the caller can pay the
// fee at the current state.
func (ls *LedgerState) ValidateCall(call Call) error {
	if _, err := ls.lookupCall(call); err != nil {
		return err
	}
	balance, err := ls.Balance(call.Caller)
	if err != nil {
		return err
	}
	if balance < call.Fee {
		return fmt.Errorf(
			"%w: %w: %s has %d, fee is %d",
			ErrInsufficientForFee,
			contract.ErrInsufficientFunds,
			call.Caller,
			balance,
			call.Fee,
		)
	}
	return nil
}

// Apply runs a call at the current height. Contract failures are reported
// through the returned result and its stored receipt. The error return is
// reserved for failures to record the outcome.
func (ls *LedgerState) Apply(call Call) (*CallResult, error) {
	ls.Lock()
	defer ls.Unlock()
	result := newCallResult(call, ls.height)
	m, err := ls.lookupCall(call)
	if err != nil {
		result.fail(err)
		if errors.Is(err, ErrCallApplied) {
			// The stored receipt belongs to the earlier run
			ls.metrics.calls.WithLabelValues(call.Method, callResultRejected).Inc()
			return result, nil
		}
		return ls.finishFailed(result, callResultRejected)
	}
	if err := ls.chargeFee(call); err != nil {
		result.fail(err)
		return ls.finishFailed(result, callResultRejected)
	}
	result.Fee = call.Fee
	var cc *callContext
	txn := database.NewTxn(ls.db, true)
	err = txn.Do(func(txn *database.Txn) error {
		host := newTxnHost(txn, call.Caller, ls.height)
		cc = &callContext{
			ls:    ls,
			txn:   txn,
			host:  host,
			state: contract.NewState(&txnStore{txn: txn}, host),
		}
		value, err := m.exec(cc, call.Args)
		if err != nil {
			return err
		}
		if err := cc.indexTouchedTokens(); err != nil {
			return err
		}
		if err := result.succeed(value); err != nil {
			return err
		}
		return ls.db.Metadata().SetCallReceipt(
			result.receipt(time.Now().UnixMilli()),
			txn.Metadata(),
		)
	})
	if err != nil {
		if _, ok := contract.AsError(err); !ok {
			ls.logger.Warn(
				"call failed",
				"component", "ledger",
				"call_id", call.ID,
				"method", call.Method,
				"error", err,
			)
		}
		result.fail(err)
		return ls.finishFailed(result, callResultFailed)
	}
	ls.metrics.calls.WithLabelValues(call.Method, callResultSuccess).Inc()
	if cc.host.escrowTouched {
		ls.metrics.escrowBalance.Set(float64(cc.host.escrowBalance))
	}
	ls.logger.Debug(
		"applied call",
		"component", "ledger",
		"call_id", call.ID,
		"method", call.Method,
		"height", result.Height,
	)
	for _, evt := range cc.events {
		ls.publish(evt)
	}
	ls.publishCallApplied(result)
	return result, nil
}

// chargeFee moves the call fee to the fee account. The fee stays charged even
// when the call itself fails.
func (ls *LedgerState) chargeFee(call Call) error {
	if call.Fee == 0 {
		return nil
	}
	txn := database.NewTxn(ls.db, true)
	err := txn.Do(func(txn *database.Txn) error {
		host := newTxnHost(txn, call.Caller, ls.height)
		if err := host.Transfer(call.Caller, ls.config.FeeAccount, call.Fee); err != nil {
			if errors.Is(err, contract.ErrInsufficientFunds) {
				return fmt.Errorf("%w: %w", ErrInsufficientForFee, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	ls.metrics.feesCollected.Add(float64(call.Fee))
	return nil
}

// finishFailed stores the receipt of a failed call in its own transaction
func (ls *LedgerState) finishFailed(
	result *CallResult,
	kind string,
) (*CallResult, error) {
	ls.metrics.calls.WithLabelValues(result.Method, kind).Inc()
	txn := database.NewMetadataOnlyTxn(ls.db, true)
	err := txn.Do(func(txn *database.Txn) error {
		return ls.db.Metadata().SetCallReceipt(
			result.receipt(time.Now().UnixMilli()),
			txn.Metadata(),
		)
	})
	if err != nil {
		return result, fmt.Errorf("store receipt for call %s: %w", result.CallID, err)
	}
	ls.logger.Debug(
		"call failed",
		"component", "ledger",
		"call_id", result.CallID,
		"method", result.Method,
		"result", kind,
		"error", result.Error,
	)
	ls.publishCallApplied(result)
	return result, nil
}

func (ls *LedgerState) publish(evt event.Event) {
	if ls.config.EventBus == nil {
		return
	}
	ls.config.EventBus.Publish(evt.Type, evt)
}

func (ls *LedgerState) publishCallApplied(result *CallResult) {
	ls.publish(
		event.NewEvent(
			event.CallAppliedEventType,
			event.CallAppliedEvent{
				CallID:    result.CallID,
				Caller:    result.Caller,
				Method:    result.Method,
				Error:     result.Error,
				Height:    result.Height,
				Fee:       result.Fee,
				ErrorCode: result.ErrorCode,
				Success:   result.Success,
			},
		),
	)
}

// Query runs a read-only method against the committed state
func (ls *LedgerState) Query(name string, args json.RawMessage) (json.RawMessage, error) {
	m, ok := methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	if !m.readOnly {
		return nil, fmt.Errorf("%w: %s", ErrNotReadOnly, name)
	}
	txn := database.NewBlobOnlyTxn(ls.db, false)
	defer txn.Release()
	host := newTxnHost(txn, "", ls.Height())
	cc := &callContext{
		ls:    ls,
		txn:   txn,
		host:  host,
		state: contract.NewState(&txnStore{txn: txn}, host),
	}
	value, err := m.exec(cc, args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
