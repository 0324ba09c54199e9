package ethledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mschirtzinger/bugledger/internal/ledger"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type callParams struct {
	From  common.Address  `json:"from"`
	Input hexutil.Bytes   `json:"input"`
	Data  hexutil.Bytes   `json:"data"`
	Gas   *hexutil.Uint64 `json:"gas"`
}

func (p callParams) payload() []byte {
	if len(p.Input) > 0 {
		return p.Input
	}
	return p.Data
}

type fakeBug struct {
	id, desc    string
	criticality uint8
	resolved    bool
}

// fakeNode is a minimal JSON-RPC node running the Bug contract in memory.
type fakeNode struct {
	t   *testing.T
	abi abi.ABI

	mu         sync.Mutex
	accounts   []common.Address
	bugs       []fakeBug
	receipts   map[common.Hash]bool // hash -> success
	pendingFor map[common.Hash]int  // polls before the receipt appears
	revertNext bool
	gasSeen    []uint64
	nonce      int64
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(BugContractABI))
	if err != nil {
		t.Fatalf("abi.JSON() failed: %v", err)
	}
	return &fakeNode{
		t:          t,
		abi:        parsed,
		accounts:   []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000aa")},
		receipts:   make(map[common.Hash]bool),
		pendingFor: make(map[common.Hash]int),
	}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, rpcErr := n.handle(req)

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = map[string]any{"code": 3, "message": rpcErr.Error(), "data": "0x"}
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) handle(req rpcRequest) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch req.Method {
	case "eth_accounts":
		return n.accounts, nil

	case "eth_call":
		var p callParams
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			return nil, err
		}
		if p.Gas != nil {
			n.gasSeen = append(n.gasSeen, uint64(*p.Gas))
		}
		return n.call(p.payload())

	case "eth_sendTransaction":
		var p callParams
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			return nil, err
		}
		if p.Gas != nil {
			n.gasSeen = append(n.gasSeen, uint64(*p.Gas))
		}
		ok := n.transact(p.payload())
		n.nonce++
		hash := common.BigToHash(big.NewInt(n.nonce))
		n.receipts[hash] = ok
		n.pendingFor[hash] = 1
		return hash, nil

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := json.Unmarshal(req.Params[0], &hash); err != nil {
			return nil, err
		}
		if n.pendingFor[hash] > 0 {
			n.pendingFor[hash]--
			return nil, nil
		}
		status := types.ReceiptStatusSuccessful
		if !n.receipts[hash] {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{
			Status:            status,
			CumulativeGasUsed: 21000,
			GasUsed:           21000,
			Logs:              []*types.Log{},
			TxHash:            hash,
			BlockNumber:       big.NewInt(1),
		}, nil
	}

	return nil, errors.New("method not found: " + req.Method)
}

func (n *fakeNode) call(data []byte) (any, error) {
	method, err := n.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	var out []byte
	switch method.Name {
	case methodCount:
		out, err = method.Outputs.Pack(big.NewInt(int64(len(n.bugs))))
	case methodGet:
		i := args[0].(*big.Int).Int64()
		if i >= int64(len(n.bugs)) {
			return nil, errors.New("execution reverted: Invalid index")
		}
		b := n.bugs[i]
		out, err = method.Outputs.Pack(b.id, b.desc, b.criticality, b.resolved)
	default:
		return nil, errors.New("not a view method")
	}
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(out), nil
}

func (n *fakeNode) transact(data []byte) bool {
	if n.revertNext {
		n.revertNext = false
		return false
	}

	method, err := n.abi.MethodById(data[:4])
	if err != nil {
		return false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return false
	}

	switch method.Name {
	case methodAdd:
		n.bugs = append(n.bugs, fakeBug{id: args[0].(string), desc: args[1].(string), criticality: args[2].(uint8)})
	case methodStatus:
		i := args[0].(*big.Int).Int64()
		if i >= int64(len(n.bugs)) {
			return false
		}
		n.bugs[i].resolved = args[1].(bool)
	case methodDelete:
		i := args[0].(*big.Int).Int64()
		if i >= int64(len(n.bugs)) {
			return false
		}
		n.bugs = append(n.bugs[:i], n.bugs[i+1:]...)
	default:
		return false
	}
	return true
}

func dialFake(t *testing.T) (*fakeNode, ledger.Conn) {
	t.Helper()

	node := newFakeNode(t)
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	d := Dialer{Config: Config{
		Contract:            testContract,
		CallTimeout:         5 * time.Second,
		ReceiptPollInterval: 5 * time.Millisecond,
	}}
	conn, err := d.Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return node, conn
}

func TestBugContractABI_Parses(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(BugContractABI))
	if err != nil {
		t.Fatalf("abi.JSON() failed: %v", err)
	}
	for _, name := range []string{methodCount, methodGet, methodAdd, methodStatus, methodDelete} {
		if _, ok := parsed.Methods[name]; !ok {
			t.Errorf("ABI is missing %s", name)
		}
	}
}

func TestDial_InvalidContract(t *testing.T) {
	d := Dialer{Config: Config{Contract: "not-an-address"}}
	if _, err := d.Dial(context.Background(), DefaultEndpoint); err == nil {
		t.Error("Dial() with invalid contract should fail")
	}
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := Dialer{Config: Config{Contract: testContract, CallTimeout: time.Second}}
	if _, err := d.Dial(context.Background(), url); err == nil {
		t.Error("Dial() to a closed endpoint should fail")
	}
}

func TestIdentities(t *testing.T) {
	node, conn := dialFake(t)

	ids, err := conn.Identities(context.Background())
	if err != nil {
		t.Fatalf("Identities() failed: %v", err)
	}
	if len(ids) != 1 || string(ids[0]) != node.accounts[0].Hex() {
		t.Errorf("Identities() = %v", ids)
	}
}

func TestReadWriteCycle(t *testing.T) {
	node, conn := dialFake(t)
	ctx := context.Background()
	from := ledger.Identity(node.accounts[0].Hex())
	opts := ledger.CallOpts{From: from, Gas: 3000000}

	if err := conn.AddRecord(ctx, opts, "BUG-1", "null pointer", 1); err != nil {
		t.Fatalf("AddRecord() failed: %v", err)
	}
	if err := conn.AddRecord(ctx, opts, "BUG-2", "race", 2); err != nil {
		t.Fatalf("AddRecord() failed: %v", err)
	}

	count, err := conn.RecordCount(ctx, opts)
	if err != nil {
		t.Fatalf("RecordCount() failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("RecordCount() = %d, want 2", count)
	}

	if err := conn.SetResolved(ctx, opts, 0, true); err != nil {
		t.Fatalf("SetResolved() failed: %v", err)
	}

	rec, err := conn.Record(ctx, opts, 0)
	if err != nil {
		t.Fatalf("Record(0) failed: %v", err)
	}
	want := ledger.Record{ID: "BUG-1", Description: "null pointer", CriticalityCode: 1, IsResolved: true}
	if rec != want {
		t.Errorf("Record(0) = %+v, want %+v", rec, want)
	}

	if err := conn.RemoveRecord(ctx, opts, 0); err != nil {
		t.Fatalf("RemoveRecord() failed: %v", err)
	}
	rec, err = conn.Record(ctx, opts, 0)
	if err != nil {
		t.Fatalf("Record(0) after delete failed: %v", err)
	}
	if rec.ID != "BUG-2" {
		t.Errorf("Record(0).ID = %q after delete, want BUG-2", rec.ID)
	}

	for _, gas := range node.gasSeen {
		if gas != 3000000 {
			t.Errorf("call sent with gas %d, want 3000000", gas)
		}
	}
}

func TestSend_FailedReceiptIsRevert(t *testing.T) {
	node, conn := dialFake(t)
	node.mu.Lock()
	node.revertNext = true
	node.mu.Unlock()

	err := conn.AddRecord(context.Background(), ledger.CallOpts{From: ledger.Identity(node.accounts[0].Hex()), Gas: 1}, "x", "y", 0)
	if !errors.Is(err, ledger.ErrReverted) {
		t.Errorf("AddRecord() error = %v, want ErrReverted", err)
	}
}

func TestCall_RevertClassified(t *testing.T) {
	_, conn := dialFake(t)

	_, err := conn.Record(context.Background(), ledger.CallOpts{}, 3)
	if !errors.Is(err, ledger.ErrReverted) {
		t.Errorf("Record(3) error = %v, want ErrReverted", err)
	}
}

func TestNegativeIndexRejectedLocally(t *testing.T) {
	_, conn := dialFake(t)

	err := conn.RemoveRecord(context.Background(), ledger.CallOpts{}, -1)
	if !errors.Is(err, ledger.ErrIndexOutOfRange) {
		t.Errorf("RemoveRecord(-1) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestTxArgsEncoding(t *testing.T) {
	to := common.HexToAddress(testContract)
	raw, err := json.Marshal(txArgs{From: common.HexToAddress("0x01"), To: &to, Gas: 300000, Data: []byte{0xde, 0xad}})
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"gas":"0x493e0"`)) || !bytes.Contains(raw, []byte(`"data":"0xdead"`)) {
		t.Errorf("unexpected encoding %s", raw)
	}
}
