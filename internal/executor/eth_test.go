package executor

import (
	"context"
	"math/big"
	"testing"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/chainops/agentdash/internal/rpc"
	"github.com/chainops/agentdash/pkg/types"
)

// Anvil's well-known first dev account key.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewEthExecutor_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EthConfig
		wantErr bool
	}{
		{"missing client", EthConfig{ChainID: 1, AgentKeyHex: testKeyHex}, true},
		{"bad chain id", EthConfig{Client: &HTTPStub{}, ChainID: 0, AgentKeyHex: testKeyHex}, true},
		{"bad agent key", EthConfig{Client: &HTTPStub{}, ChainID: 1, AgentKeyHex: "zz"}, true},
		{"bad faucet key", EthConfig{Client: &HTTPStub{}, ChainID: 1, AgentKeyHex: testKeyHex, FaucetKeyHex: "zz"}, true},
		{"valid", EthConfig{Client: &HTTPStub{}, ChainID: 1, AgentKeyHex: testKeyHex}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEthExecutor(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEthExecutor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEthExecutor_AgentAddress(t *testing.T) {
	e, err := NewEthExecutor(EthConfig{Client: &HTTPStub{}, ChainID: 1, AgentKeyHex: testKeyHex})
	if err != nil {
		t.Fatalf("NewEthExecutor: %v", err)
	}
	// Address derived from the well-known anvil key.
	if got := e.AgentAddress().Hex(); got != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Errorf("unexpected agent address: %s", got)
	}
}

func TestEthExecutor_TransferAsset(t *testing.T) {
	stub := &HTTPStub{
		Hash:    "0xdeadbeef",
		Receipt: &rpc.TransactionReceipt{Status: 1, GasUsed: 21000, BlockNumber: 7},
	}
	e, err := NewEthExecutor(EthConfig{Client: stub, ChainID: 84532, AgentKeyHex: testKeyHex, GasTipCap: 1_000_000_000})
	if err != nil {
		t.Fatalf("NewEthExecutor: %v", err)
	}

	result, err := e.Execute(context.Background(), types.OpTransferAsset, map[string]any{
		"recipient": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"amount":    0.5,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Hash != "0xdeadbeef" {
		t.Errorf("unexpected hash %q", result.Hash)
	}
	if result.GasUsed != 21000 {
		t.Errorf("unexpected gas %d", result.GasUsed)
	}
}

func TestEthExecutor_TransferGasLimit(t *testing.T) {
	tests := []struct {
		name     string
		gasLimit uint64
		want     uint64
	}{
		{"configured limit", 30000, 30000},
		{"zero falls back to default", 0, DefaultTransferGas},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &HTTPStub{
				Hash:    "0xdeadbeef",
				Receipt: &rpc.TransactionReceipt{Status: 1, GasUsed: 21000, BlockNumber: 7},
			}
			e, err := NewEthExecutor(EthConfig{
				Client:      stub,
				ChainID:     84532,
				AgentKeyHex: testKeyHex,
				GasTipCap:   1_000_000_000,
				GasLimit:    tt.gasLimit,
			})
			if err != nil {
				t.Fatalf("NewEthExecutor: %v", err)
			}

			_, err = e.Execute(context.Background(), types.OpTransferAsset, map[string]any{
				"recipient": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
				"amount":    0.1,
			})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}

			var tx ethtypes.Transaction
			if err := tx.UnmarshalBinary(stub.LastRawTx); err != nil {
				t.Fatalf("decode sent transaction: %v", err)
			}
			if tx.Gas() != tt.want {
				t.Errorf("gas limit = %d, want %d", tx.Gas(), tt.want)
			}
		})
	}
}

func TestEthExecutor_TransferAsset_BadParams(t *testing.T) {
	e, err := NewEthExecutor(EthConfig{Client: &HTTPStub{}, ChainID: 1, AgentKeyHex: testKeyHex})
	if err != nil {
		t.Fatalf("NewEthExecutor: %v", err)
	}

	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing recipient", map[string]any{"amount": 1.0}},
		{"bad address", map[string]any{"recipient": "nope", "amount": 1.0}},
		{"missing amount", map[string]any{"recipient": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}},
		{"negative amount", map[string]any{"recipient": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "amount": -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Execute(context.Background(), types.OpTransferAsset, tt.params); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEthExecutor_FaucetWithoutKey(t *testing.T) {
	e, err := NewEthExecutor(EthConfig{Client: &HTTPStub{}, ChainID: 1, AgentKeyHex: testKeyHex})
	if err != nil {
		t.Fatalf("NewEthExecutor: %v", err)
	}
	if _, err := e.Execute(context.Background(), types.OpRequestFaucetFunds, nil); err == nil {
		t.Error("expected error without faucet key")
	}
}

func TestEthExecutor_UnsupportedOperation(t *testing.T) {
	e, err := NewEthExecutor(EthConfig{Client: &HTTPStub{}, ChainID: 1, AgentKeyHex: testKeyHex})
	if err != nil {
		t.Fatalf("NewEthExecutor: %v", err)
	}
	if _, err := e.Execute(context.Background(), types.OpOther, nil); err == nil {
		t.Error("expected error for unsupported operation")
	}
}

func TestParamString(t *testing.T) {
	params := map[string]any{"recipient": "0xabc", "amount": 1.5}

	if _, err := paramString(params, "missing"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := paramString(params, "amount"); err == nil {
		t.Error("expected error for non-string value")
	}
	if v, err := paramString(params, "recipient"); err != nil || v != "0xabc" {
		t.Errorf("got %q, %v", v, err)
	}
}

func TestParamFloat(t *testing.T) {
	params := map[string]any{
		"float":  1.5,
		"string": "2.5",
		"bad":    "not a number",
		"bool":   true,
	}

	tests := []struct {
		key     string
		want    float64
		wantErr bool
	}{
		{"float", 1.5, false},
		{"string", 2.5, false},
		{"bad", 0, true},
		{"bool", 0, true},
		{"missing", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := paramFloat(params, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("paramFloat(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("paramFloat(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestEthToWei(t *testing.T) {
	tests := []struct {
		eth  float64
		want *big.Int
	}{
		{1, big.NewInt(1e18)},
		{0.01, big.NewInt(1e16)},
		{0, big.NewInt(0)},
	}

	for _, tt := range tests {
		if got := ethToWei(tt.eth); got.Cmp(tt.want) != 0 {
			t.Errorf("ethToWei(%v) = %s, want %s", tt.eth, got, tt.want)
		}
	}
}
