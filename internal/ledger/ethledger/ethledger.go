// Package ethledger talks to the Bug smart contract over Ethereum JSON-RPC.
//
// Reads are eth_call against the contract. Writes are eth_sendTransaction
// from an identity the node holds unlocked (Ganache, anvil, geth --dev);
// they return once the transaction is mined, and a failed receipt is
// reported as ledger.ErrReverted.
//
// This package is the transport layer, so it owns timeouts: Config.CallTimeout
// bounds every individual RPC round trip.
package ethledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Mschirtzinger/bugledger/internal/ledger"
)

// DefaultEndpoint is the local Ganache endpoint.
const DefaultEndpoint = "http://127.0.0.1:7545"

// Config holds configuration for the Ethereum ledger.
type Config struct {
	// Contract is the address of the deployed Bug contract.
	Contract string

	// CallTimeout bounds each RPC round trip. Zero means no timeout.
	CallTimeout time.Duration

	// ReceiptPollInterval is how often to poll for a mined receipt.
	ReceiptPollInterval time.Duration

	// Logger for ledger activity
	Logger *log.Logger
}

// Dialer opens Ethereum ledger connections.
type Dialer struct {
	Config Config
}

// Dial implements ledger.Dialer.
//
// Dial performs an eth_accounts handshake so unreachable endpoints fail
// here rather than on the first read.
func (d Dialer) Dial(ctx context.Context, endpoint string) (ledger.Conn, error) {
	cfg := d.Config
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = 250 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Contract)
	}

	parsed, err := abi.JSON(strings.NewReader(BugContractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	c := &Conn{
		rpc:      rpcClient,
		client:   ethclient.NewClient(rpcClient),
		abi:      parsed,
		contract: common.HexToAddress(cfg.Contract),
		cfg:      cfg,
	}

	if _, err := c.Identities(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("handshake with %s failed: %w", endpoint, err)
	}

	cfg.Logger.Printf("Connected to %s (contract %s)", endpoint, c.contract.Hex())
	return c, nil
}

// Conn is a connection to the Bug contract.
type Conn struct {
	rpc      *rpc.Client
	client   *ethclient.Client
	abi      abi.ABI
	contract common.Address
	cfg      Config
}

var _ ledger.Conn = (*Conn)(nil)

// txArgs is the eth_sendTransaction parameter object.
type txArgs struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`
	Gas  hexutil.Uint64  `json:"gas"`
	Data hexutil.Bytes   `json:"data"`
}

// Identities implements ledger.Conn using eth_accounts.
func (c *Conn) Identities(ctx context.Context) ([]ledger.Identity, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts failed: %w", err)
	}

	ids := make([]ledger.Identity, len(accounts))
	for i, a := range accounts {
		ids[i] = ledger.Identity(a.Hex())
	}
	return ids, nil
}

// RecordCount implements ledger.Reader.
func (c *Conn) RecordCount(ctx context.Context, opts ledger.CallOpts) (int, error) {
	out, err := c.call(ctx, opts, methodCount)
	if err != nil {
		return 0, err
	}

	n, ok := out[0].(*big.Int)
	if !ok || !n.IsInt64() || n.Sign() < 0 {
		return 0, fmt.Errorf("unexpected %s result %v", methodCount, out[0])
	}
	return int(n.Int64()), nil
}

// Record implements ledger.Reader.
func (c *Conn) Record(ctx context.Context, opts ledger.CallOpts, index int) (ledger.Record, error) {
	if index < 0 {
		return ledger.Record{}, outOfRange(index)
	}

	out, err := c.call(ctx, opts, methodGet, big.NewInt(int64(index)))
	if err != nil {
		return ledger.Record{}, err
	}
	if len(out) != 4 {
		return ledger.Record{}, fmt.Errorf("unexpected %s result length %d", methodGet, len(out))
	}

	id, ok1 := out[0].(string)
	desc, ok2 := out[1].(string)
	resolved, ok3 := out[3].(bool)
	code, ok4 := toInt64(out[2])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return ledger.Record{}, fmt.Errorf("unexpected %s result types %T %T %T %T", methodGet, out[0], out[1], out[2], out[3])
	}

	return ledger.Record{
		ID:              id,
		Description:     desc,
		CriticalityCode: code,
		IsResolved:      resolved,
	}, nil
}

// AddRecord implements ledger.Writer.
func (c *Conn) AddRecord(ctx context.Context, opts ledger.CallOpts, id, description string, criticality uint8) error {
	return c.send(ctx, opts, methodAdd, id, description, criticality)
}

// SetResolved implements ledger.Writer.
func (c *Conn) SetResolved(ctx context.Context, opts ledger.CallOpts, index int, resolved bool) error {
	if index < 0 {
		return outOfRange(index)
	}
	return c.send(ctx, opts, methodStatus, big.NewInt(int64(index)), resolved)
}

// RemoveRecord implements ledger.Writer.
func (c *Conn) RemoveRecord(ctx context.Context, opts ledger.CallOpts, index int) error {
	if index < 0 {
		return outOfRange(index)
	}
	return c.send(ctx, opts, methodDelete, big.NewInt(int64(index)))
}

// Close implements ledger.Conn.
func (c *Conn) Close() error {
	c.rpc.Close()
	return nil
}

// call runs a read-only contract method.
func (c *Conn) call(ctx context.Context, opts ledger.CallOpts, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	to := c.contract
	msg := ethereum.CallMsg{
		From: common.HexToAddress(string(opts.From)),
		To:   &to,
		Gas:  opts.Gas,
		Data: data,
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	raw, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, classify(err))
	}

	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}

// send submits a transaction and waits for it to be mined.
func (c *Conn) send(ctx context.Context, opts ledger.CallOpts, method string, args ...any) error {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}

	to := c.contract
	tx := txArgs{
		From: common.HexToAddress(string(opts.From)),
		To:   &to,
		Gas:  hexutil.Uint64(opts.Gas),
		Data: data,
	}

	var hash common.Hash
	sendCtx, cancel := c.withTimeout(ctx)
	err = c.rpc.CallContext(sendCtx, &hash, "eth_sendTransaction", tx)
	cancel()
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, classify(err))
	}

	c.cfg.Logger.Printf("Submitted %s: %s", method, hash.Hex())

	receipt, err := c.waitMined(ctx, hash)
	if err != nil {
		return fmt.Errorf("%s: waiting for %s: %w", method, hash.Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return fmt.Errorf("%s: %w", method, ledger.Revert(fmt.Errorf("transaction %s failed", hash.Hex())))
	}

	c.cfg.Logger.Printf("Mined %s: %s (gas used %d)", method, hash.Hex(), receipt.GasUsed)
	return nil
}

// waitMined polls for the receipt of hash.
func (c *Conn) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		rctx, cancel := c.withTimeout(ctx)
		receipt, err := c.client.TransactionReceipt(rctx, hash)
		cancel()

		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Conn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

// classify marks execution failures as ledger reverts.
func classify(err error) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) || strings.Contains(strings.ToLower(err.Error()), "revert") {
		return ledger.Revert(err)
	}
	return err
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case uint8:
		return int64(n), true
	case *big.Int:
		if !n.IsInt64() {
			return 0, false
		}
		return n.Int64(), true
	default:
		return 0, false
	}
}

func outOfRange(index int) error {
	return ledger.Revert(fmt.Errorf("%w: %d", ledger.ErrIndexOutOfRange, index))
}
