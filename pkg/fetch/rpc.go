// Package fetch dumps on-chain program binaries over Solana JSON-RPC,
// resolving upgradeable-loader indirection so callers always receive the
// raw ELF bytes.
package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Well-known loader program IDs. The loader owning the account decides how
// the ELF bytes are wrapped.
const (
	loaderDeprecated  = "BPFLoader1111111111111111111111111111111111"
	loaderV2          = "BPFLoader2111111111111111111111111111111111"
	loaderUpgradeable = "BPFLoaderUpgradeab1e11111111111111111111111"
)

// Upgradeable loader account layouts (bincode): a u32 tag, then the state.
const (
	stateBuffer      = 1
	stateProgram     = 2
	stateProgramData = 3

	// tag + option<pubkey> authority
	bufferMetadataLen = 4 + 1 + 32
	// tag + u64 slot + option<pubkey> authority
	programDataMetadataLen = 4 + 8 + 1 + 32
)

var (
	// ErrAccountNotFound means the RPC node knows nothing about the address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotAProgram means the account exists but is not owned by a BPF loader.
	ErrNotAProgram = errors.New("account is not an sBPF program")
	// ErrInvalidProgramID means the address is not a valid base58 pubkey.
	ErrInvalidProgramID = errors.New("invalid program id")
	// ErrProgramClosed means the program's data account has been closed.
	ErrProgramClosed = errors.New("program has been closed")
)

// Client is a minimal Solana JSON-RPC client; it only speaks getAccountInfo.
type Client struct {
	rpcURL string
	hc     *http.Client
	log    *slog.Logger
}

func NewClient(rpcURL string, timeout time.Duration) *Client {
	return &Client{
		rpcURL: rpcURL,
		hc:     &http.Client{Timeout: timeout},
		log:    slog.With("component", "fetch.Client"),
	}
}

type account struct {
	Owner string
	Data  []byte
}

// ProgramDump fetches the ELF image of an on-chain program. For
// upgradeable-loader programs it follows the programdata indirection and
// strips the loader metadata prefix.
func (c *Client) ProgramDump(ctx context.Context, programID string) ([]byte, error) {
	if !validPubkey(programID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProgramID, programID)
	}

	acc, err := c.accountInfo(ctx, programID)
	if err != nil {
		return nil, err
	}

	switch acc.Owner {
	case loaderDeprecated, loaderV2:
		return acc.Data, nil
	case loaderUpgradeable:
		return c.upgradeableDump(ctx, programID, acc)
	default:
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotAProgram, programID, acc.Owner)
	}
}

func (c *Client) upgradeableDump(ctx context.Context, programID string, acc *account) ([]byte, error) {
	if len(acc.Data) < 4 {
		return nil, fmt.Errorf("%w: truncated loader state for %s", ErrNotAProgram, programID)
	}
	switch binary.LittleEndian.Uint32(acc.Data) {
	case stateProgram:
		if len(acc.Data) < 4+32 {
			return nil, fmt.Errorf("%w: truncated program account %s", ErrNotAProgram, programID)
		}
		dataAddr := base58Encode(acc.Data[4 : 4+32])
		c.log.Debug("following programdata account", "program", programID, "programdata", dataAddr)

		dataAcc, err := c.accountInfo(ctx, dataAddr)
		if errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProgramClosed, programID)
		} else if err != nil {
			return nil, err
		}
		if len(dataAcc.Data) < programDataMetadataLen ||
			binary.LittleEndian.Uint32(dataAcc.Data) != stateProgramData {
			return nil, fmt.Errorf("%w: %s", ErrProgramClosed, programID)
		}
		return dataAcc.Data[programDataMetadataLen:], nil
	case stateBuffer:
		if len(acc.Data) < bufferMetadataLen {
			return nil, fmt.Errorf("%w: truncated buffer account %s", ErrNotAProgram, programID)
		}
		return acc.Data[bufferMetadataLen:], nil
	default:
		return nil, fmt.Errorf("%w: %s is not an upgradeable program or buffer", ErrNotAProgram, programID)
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result struct {
		Value *struct {
			Owner string   `json:"owner"`
			Data  []string `json:"data"`
		} `json:"value"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) accountInfo(ctx context.Context, address string) (*account, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params: []any{address, map[string]string{
			"encoding":   "base64",
			"commitment": "confirmed",
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", c.rpcURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("RPC endpoint returned status %d", resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decoding RPC response: %w", err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", rr.Error.Code, rr.Error.Message)
	}
	if rr.Result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if len(rr.Result.Value.Data) < 1 {
		return nil, fmt.Errorf("RPC response for %s carries no account data", address)
	}

	raw, err := base64.StdEncoding.DecodeString(rr.Result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decoding account data: %w", err)
	}
	return &account{Owner: rr.Result.Value.Owner, Data: raw}, nil
}
