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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/internal/config"
	"github.com/blinklabs-io/desci/ledger"
)

// buildArgs merges a raw JSON object with key=value pairs. Values that parse
// as JSON are used as-is, anything else becomes a JSON string.
func buildArgs(rawArgs string, pairs []string) (json.RawMessage, error) {
	args := make(map[string]json.RawMessage)
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("invalid args JSON: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		if json.Valid([]byte(value)) {
			args[key] = json.RawMessage(value)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		args[key] = encoded
	}
	return json.Marshal(args)
}

// hashFile returns the blake2b-256 digest of a deliverable file
func hashFile(path string) (contract.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return contract.Hash{}, err
	}
	defer f.Close()
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return contract.Hash{}, err
	}
	if _, err := io.Copy(hasher, f); err != nil {
		return contract.Hash{}, fmt.Errorf("read %s: %w", path, err)
	}
	return contract.NewHash(hasher.Sum(nil))
}

// resolveCaller picks the caller account from an explicit account or a seed
func resolveCaller(account, seed string) (contract.Account, error) {
	switch {
	case account != "" && seed != "":
		return "", errors.New("only one of --from and --seed may be given")
	case account != "":
		if err := ledger.ValidateAccount(contract.Account(account)); err != nil {
			return "", err
		}
		return contract.Account(account), nil
	case seed != "":
		return ledger.AccountFromSeed([]byte(seed))
	default:
		return "", errors.New("a caller is required, use --from or --seed")
	}
}

// apiAddress returns the API base URL, defaulting to the configured API port
// on localhost
func apiAddress(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	port := uint(8080)
	if cfg != nil && cfg.ApiPort > 0 {
		port = cfg.ApiPort
	}
	return "http://" + net.JoinHostPort(
		"127.0.0.1",
		strconv.FormatUint(uint64(port), 10),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
