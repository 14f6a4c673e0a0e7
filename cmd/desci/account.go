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
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/desci/ledger"
)

const accountSeedSize = 32

func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func accountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account utilities",
	}
	cmd.AddCommand(accountNewCommand())
	return cmd
}

func accountNewCommand() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Derive an account address from a seed, or a random one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == "" {
				buf := make([]byte, accountSeedSize)
				if _, err := rand.Read(buf); err != nil {
					return err
				}
				seed = hex.EncodeToString(buf)
			}
			account, err := ledger.AccountFromSeed([]byte(seed))
			if err != nil {
				return err
			}
			return printJSON(
				os.Stdout,
				map[string]string{
					"account": string(account),
					"seed":    seed,
				},
			)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "seed to derive the account from")
	return cmd
}
