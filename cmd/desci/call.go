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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/desci/client"
	"github.com/blinklabs-io/desci/internal/config"
	"github.com/blinklabs-io/desci/ledger"
)

type callFlags struct {
	api     string
	from    string
	seed    string
	args    string
	file    string
	pairs   []string
	fee     uint64
	timeout time.Duration
	wait    bool
}

func callCommand() *cobra.Command {
	flags := callFlags{}
	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Submit a contract call to a running node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callRun(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.api, "api", "", "node API address")
	cmd.Flags().StringVar(&flags.from, "from", "", "caller account")
	cmd.Flags().StringVar(&flags.seed, "seed", "", "derive the caller account from a seed")
	cmd.Flags().StringVar(&flags.args, "args", "", "method arguments as a JSON object")
	cmd.Flags().StringArrayVar(&flags.pairs, "arg", nil, "method argument as key=value, may be repeated")
	cmd.Flags().StringVar(&flags.file, "file", "", "deliverable file to hash into the 'hash' argument")
	cmd.Flags().Uint64Var(&flags.fee, "fee", 0, "call fee, defaults to the configured minimum fee")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "wait for the call to be applied")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", time.Minute, "how long to wait for the receipt")
	return cmd
}

func callRun(cmd *cobra.Command, method string, flags callFlags) error {
	cfg := config.FromContext(cmd.Context())
	caller, err := resolveCaller(flags.from, flags.seed)
	if err != nil {
		return err
	}
	pairs := flags.pairs
	if flags.file != "" {
		hash, err := hashFile(flags.file)
		if err != nil {
			return err
		}
		// Quoted so an all-digit digest stays a JSON string
		pairs = append(pairs, `hash="`+hash.String()+`"`)
	}
	args, err := buildArgs(flags.args, pairs)
	if err != nil {
		return err
	}
	fee := flags.fee
	if fee == 0 && cfg != nil {
		fee = cfg.MinFee
	}
	call, err := ledger.NewCall(caller, method, args, fee)
	if err != nil {
		return err
	}
	c := client.New(
		apiAddress(flags.api, cfg),
		client.WithLogger(clientLogger()),
	)
	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()
	id, err := c.SubmitCall(ctx, call)
	if err != nil {
		return err
	}
	if !flags.wait {
		return printJSON(os.Stdout, map[string]string{"id": id})
	}
	receipt, err := c.WaitForReceipt(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("call %s not applied within %s", id, flags.timeout)
		}
		return err
	}
	if err := printJSON(os.Stdout, receipt); err != nil {
		return err
	}
	if !receipt.Success {
		return fmt.Errorf("call failed: %s", receipt.Error)
	}
	return nil
}

type queryFlags struct {
	api      string
	args     string
	pairs    []string
	interval time.Duration
	watch    bool
}

func queryCommand() *cobra.Command {
	flags := queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <method>",
		Short: "Run a read-only contract method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryRun(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.api, "api", "", "node API address")
	cmd.Flags().StringVar(&flags.args, "args", "", "method arguments as a JSON object")
	cmd.Flags().StringArrayVar(&flags.pairs, "arg", nil, "method argument as key=value, may be repeated")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "repeat the query until interrupted")
	cmd.Flags().DurationVar(&flags.interval, "interval", client.DefaultPollInterval, "time between queries with --watch")
	return cmd
}

func queryRun(cmd *cobra.Command, method string, flags queryFlags) error {
	cfg := config.FromContext(cmd.Context())
	args, err := buildArgs(flags.args, flags.pairs)
	if err != nil {
		return err
	}
	c := client.New(
		apiAddress(flags.api, cfg),
		client.WithLogger(clientLogger()),
	)
	if !flags.watch {
		ret, err := c.Query(cmd.Context(), method, args)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, ret)
	}
	poller, err := c.NewPoller(method, args, flags.interval)
	if err != nil {
		return err
	}
	ctx, stop := notifyContext(cmd.Context())
	defer stop()
	var last json.RawMessage
	for result := range poller.Run(ctx) {
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", result.Time.Format(time.RFC3339), result.Err)
			continue
		}
		if string(result.Value) == string(last) {
			continue
		}
		last = result.Value
		if err := printJSON(os.Stdout, result.Value); err != nil {
			return err
		}
	}
	return nil
}
