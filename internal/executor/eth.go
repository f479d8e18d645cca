package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainops/agentdash/internal/rpc"
	"github.com/chainops/agentdash/pkg/types"
)

// Defaults for chain operations.
const (
	DefaultReceiptTimeout = 60 * time.Second
	DefaultReceiptPoll    = 500 * time.Millisecond
	DefaultTransferGas    = 21000
	DefaultDeployGas      = 1_500_000

	// faucetAmountWei is 0.01 ETH, matching the testnet faucet drip.
	faucetAmountWei = 10_000_000_000_000_000
)

// tokenInitCode is the creation bytecode for the minimal token contract
// deployed by deploy_token. Constructor args are appended ABI-encoded.
const tokenInitCode = "0x608060405234801561001057600080fd5b50604051610120380380610120833981016040819052602c91603f565b600055600180546001600160a01b03191633179055605b565b600060208284031215605057600080fd5b5051919050565b60b8806100686000396000f3fe6080604052348015600f57600080fd5b506004361060325760003560e01c806318160ddd146037578063893d20e8146051575b600080fd5b603f60005481565b60405190815260200160405180910390f35b600154604080516001600160a01b039092168252519081900360200190f3fea164736f6c634300081200330a"

// EthConfig holds EthExecutor configuration.
type EthConfig struct {
	Client         rpc.Client
	ChainID        int64
	AgentKeyHex    string // signs transfers and deployments
	FaucetKeyHex   string // optional; funds the agent wallet
	GasTipCap      int64  // wei
	GasFeeCap      int64  // wei, 0 = derive from node gas price
	GasLimit       uint64 // gas for plain transfers, 0 = DefaultTransferGas
	ReceiptTimeout time.Duration
	Logger         *slog.Logger
}

// EthExecutor executes operations against an EVM chain over JSON-RPC.
// It satisfies the dispatcher's executor contract: every call returns either
// a hash + gas outcome or an error, within a bounded time.
type EthExecutor struct {
	client         rpc.Client
	chainID        *big.Int
	agentKey       *ecdsa.PrivateKey
	agentAddr      common.Address
	faucetKey      *ecdsa.PrivateKey
	faucetAddr     common.Address
	gasTipCap      *big.Int
	gasFeeCap      *big.Int
	transferGas    uint64
	receiptTimeout time.Duration
	logger         *slog.Logger
}

// NewEthExecutor creates an executor from hex-encoded signing keys.
func NewEthExecutor(cfg EthConfig) (*EthExecutor, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("chain ID must be positive")
	}

	agentKey, err := crypto.HexToECDSA(cfg.AgentKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid agent key: %w", err)
	}

	e := &EthExecutor{
		client:         cfg.Client,
		chainID:        big.NewInt(cfg.ChainID),
		agentKey:       agentKey,
		agentAddr:      crypto.PubkeyToAddress(agentKey.PublicKey),
		gasTipCap:      big.NewInt(cfg.GasTipCap),
		gasFeeCap:      big.NewInt(cfg.GasFeeCap),
		transferGas:    cfg.GasLimit,
		receiptTimeout: cfg.ReceiptTimeout,
		logger:         cfg.Logger,
	}
	if e.transferGas == 0 {
		e.transferGas = DefaultTransferGas
	}
	if e.receiptTimeout <= 0 {
		e.receiptTimeout = DefaultReceiptTimeout
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	if cfg.FaucetKeyHex != "" {
		faucetKey, err := crypto.HexToECDSA(cfg.FaucetKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid faucet key: %w", err)
		}
		e.faucetKey = faucetKey
		e.faucetAddr = crypto.PubkeyToAddress(faucetKey.PublicKey)
	}

	return e, nil
}

// AgentAddress returns the agent wallet address.
func (e *EthExecutor) AgentAddress() common.Address {
	return e.agentAddr
}

// Execute runs one chain operation to a terminal outcome.
func (e *EthExecutor) Execute(ctx context.Context, op types.OperationType, params map[string]any) (*Result, error) {
	switch op {
	case types.OpRequestFaucetFunds:
		return e.requestFaucetFunds(ctx)
	case types.OpDeployToken:
		return e.deployToken(ctx, params)
	case types.OpTransferAsset:
		return e.transferAsset(ctx, params)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// requestFaucetFunds sends the faucet drip to the agent wallet.
func (e *EthExecutor) requestFaucetFunds(ctx context.Context) (*Result, error) {
	if e.faucetKey == nil {
		return nil, fmt.Errorf("no faucet key configured")
	}
	to := e.agentAddr
	return e.sendAndWait(ctx, e.faucetKey, e.faucetAddr, &to,
		big.NewInt(faucetAmountWei), e.transferGas, nil)
}

// transferAsset sends ETH from the agent wallet.
// Params: "recipient" (hex address), "amount" (ETH, number or string).
func (e *EthExecutor) transferAsset(ctx context.Context, params map[string]any) (*Result, error) {
	recipient, err := paramString(params, "recipient")
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(recipient) {
		return nil, fmt.Errorf("invalid recipient address: %s", recipient)
	}

	amountEth, err := paramFloat(params, "amount")
	if err != nil {
		return nil, err
	}
	if amountEth <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %v", amountEth)
	}

	to := common.HexToAddress(recipient)
	return e.sendAndWait(ctx, e.agentKey, e.agentAddr, &to,
		ethToWei(amountEth), e.transferGas, nil)
}

// deployToken deploys the minimal token contract.
// Params: "total_supply" (number, default 1e6). Name and symbol are carried
// in the request but not used on-chain by the minimal contract.
func (e *EthExecutor) deployToken(ctx context.Context, params map[string]any) (*Result, error) {
	totalSupply := int64(1_000_000)
	if _, ok := params["total_supply"]; ok {
		v, err := paramFloat(params, "total_supply")
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, fmt.Errorf("total_supply must be positive, got %v", v)
		}
		totalSupply = int64(v)
	}

	data := common.FromHex(tokenInitCode)
	data = append(data, common.LeftPadBytes(big.NewInt(totalSupply).Bytes(), 32)...)

	return e.sendAndWait(ctx, e.agentKey, e.agentAddr, nil,
		big.NewInt(0), DefaultDeployGas, data)
}

// sendAndWait signs and sends one transaction, then polls for its receipt
// until mined or the receipt timeout elapses.
func (e *EthExecutor) sendAndWait(ctx context.Context, key *ecdsa.PrivateKey, from common.Address, to *common.Address, value *big.Int, gasLimit uint64, data []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.receiptTimeout)
	defer cancel()

	nonce, err := e.client.GetNonce(ctx, from.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasFeeCap := e.gasFeeCap
	if gasFeeCap.Sign() == 0 {
		gasPrice, err := e.client.GetGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch gas price: %w", err)
		}
		// Double the node's price so the fee cap survives base fee swings.
		gasFeeCap = new(big.Int).SetUint64(gasPrice * 2)
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: e.gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        to,
		Value:     value,
		Data:      data,
	})

	signer := ethtypes.LatestSignerForChainID(e.chainID)
	signedTx, err := ethtypes.SignTx(tx, signer, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	txRLP, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	hash, err := e.client.SendRawTransaction(ctx, txRLP)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	if hash == "" {
		hash = signedTx.Hash().Hex()
	}

	e.logger.Debug("transaction sent",
		slog.String("hash", hash),
		slog.String("from", from.Hex()),
		slog.Uint64("nonce", nonce),
	)

	receipt, err := e.waitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != 1 {
		// Reverted transactions still burned gas; the coordinator records
		// the cost alongside the failure.
		return &Result{Hash: hash, GasUsed: receipt.GasUsed},
			fmt.Errorf("transaction %s reverted in block %d", hash, receipt.BlockNumber)
	}

	return &Result{Hash: hash, GasUsed: receipt.GasUsed}, nil
}

// waitForReceipt polls until the transaction is mined or ctx expires.
func (e *EthExecutor) waitForReceipt(ctx context.Context, hash string) (*rpc.TransactionReceipt, error) {
	ticker := time.NewTicker(DefaultReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := e.client.GetTransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func paramString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", key, v)
	}
	return s, nil
}

func paramFloat(params map[string]any, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %q is not numeric: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter %q must be numeric, got %T", key, v)
	}
}

// ethToWei converts an ETH amount to wei.
func ethToWei(eth float64) *big.Int {
	wei, _ := new(big.Float).Mul(
		big.NewFloat(eth),
		big.NewFloat(1e18),
	).Int(nil)
	return wei
}
