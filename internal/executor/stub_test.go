package executor

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/chainops/agentdash/internal/rpc"
)

// HTTPStub is a canned rpc.Client for tests that never hit the network.
type HTTPStub struct {
	Nonce    uint64
	GasPrice uint64
	Receipt  *rpc.TransactionReceipt
	SendErr  error
	Hash     string

	LastRawTx []byte // captured by SendRawTransaction
}

func (s *HTTPStub) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	return json.RawMessage(`null`), nil
}

func (s *HTTPStub) SendRawTransaction(ctx context.Context, txRLP []byte) (string, error) {
	if s.SendErr != nil {
		return "", s.SendErr
	}
	s.LastRawTx = txRLP
	return s.Hash, nil
}

func (s *HTTPStub) GetNonce(ctx context.Context, address string) (uint64, error) {
	return s.Nonce, nil
}

func (s *HTTPStub) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (s *HTTPStub) GetGasPrice(ctx context.Context) (uint64, error) {
	if s.GasPrice == 0 {
		return 1_000_000_000, nil
	}
	return s.GasPrice, nil
}

func (s *HTTPStub) GetBlockNumber(ctx context.Context) (uint64, error) {
	return 1, nil
}

func (s *HTTPStub) GetTransactionReceipt(ctx context.Context, txHash string) (*rpc.TransactionReceipt, error) {
	return s.Receipt, nil
}
