// Package types contains public API types for the agent dashboard.
// These types form the external interface and must remain backwards-compatible.
package types

import "time"

// OperationType identifies a requested blockchain action.
type OperationType string

const (
	OpRequestFaucetFunds OperationType = "request_faucet_funds"
	OpDeployToken        OperationType = "deploy_token"
	OpTransferAsset      OperationType = "transfer_asset"
	OpOther              OperationType = "other"
)

// TxStatus represents the state of a transaction record.
type TxStatus string

const (
	StatusPending TxStatus = "pending"
	StatusSuccess TxStatus = "success"
	StatusFailed  TxStatus = "failed"
)

// OperationRequest is an immutable request to execute a chain operation.
// Params carries operation-specific fields (amount, recipient, token name...)
// as decoded from the API body.
type OperationRequest struct {
	Type     OperationType  `json:"operation_type"`
	WalletID string         `json:"wallet_id"`
	Params   map[string]any `json:"params,omitempty"`
}

// TransactionRecord is the ledger's unit of storage. Once a record reaches
// a terminal status (success or failed) it is never mutated again.
type TransactionRecord struct {
	ID          int64         `json:"id"`
	Type        OperationType `json:"operation_type"`
	WalletID    string        `json:"wallet_id"`
	Hash        string        `json:"hash,omitempty"`
	Status      TxStatus      `json:"status"`
	GasUsed     *uint64       `json:"gas_used,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ErrorDetail string        `json:"error_detail,omitempty"`
}

// Terminal reports whether the record will never change again.
func (r *TransactionRecord) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

// OverallStats summarizes all recorded operations.
type OverallStats struct {
	TotalOperations int64   `json:"total_operations"`
	SuccessRate     float64 `json:"success_rate"` // percent, 0 when no records
	AvgGasUsed      float64 `json:"avg_gas_used"`
}

// OperationStats summarizes all recorded operations of one type.
type OperationStats struct {
	TotalOperations int64   `json:"total_operations"`
	SuccessRate     float64 `json:"success_rate"` // percent, 0 when no records
	AvgGasUsed      float64 `json:"avg_gas_used"`
}

// GasTrendPoint is one calendar day of gas usage. Only days with at least
// one successful gas-bearing record appear in a trend.
type GasTrendPoint struct {
	Date            string  `json:"date"` // YYYY-MM-DD (UTC)
	AvgGasUsed      float64 `json:"avg_gas_used"`
	TotalOperations int64   `json:"total_operations"`
}

// MetricsReport is the derived view returned by GET /api/metrics.
type MetricsReport struct {
	OverallStats   OverallStats              `json:"overall_stats"`
	GasTrends      []GasTrendPoint           `json:"gas_trends"`
	OperationTypes map[string]OperationStats `json:"operation_types"`
}

// WalletInfo describes the agent wallet for dashboard display.
type WalletInfo struct {
	Address string `json:"address"`
	Network string `json:"network"`
	Balance string `json:"balance"` // wei, decimal string
}

// Event is pushed to WebSocket subscribers whenever new terminal records
// occur. Either field may be empty.
type Event struct {
	Wallet       *WalletInfo         `json:"wallet,omitempty"`
	Transactions []TransactionRecord `json:"transactions,omitempty"`
}

// SubmitResponse is returned by POST /api/transaction.
type SubmitResponse struct {
	Status      string             `json:"status"`
	Transaction *TransactionRecord `json:"transaction,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// MetricsResponse is returned by GET /api/metrics.
type MetricsResponse struct {
	Status  string        `json:"status"`
	Metrics MetricsReport `json:"metrics"`
}

// TransactionsResponse is returned by GET /api/transactions.
type TransactionsResponse struct {
	Status       string              `json:"status"`
	Transactions []TransactionRecord `json:"transactions"`
}

// WalletResponse is returned by GET /api/wallet.
type WalletResponse struct {
	Status string      `json:"status"`
	Data   *WalletInfo `json:"data"`
}

// ValidOperationTypes lists every operation the dispatcher accepts.
var ValidOperationTypes = map[OperationType]bool{
	OpRequestFaucetFunds: true,
	OpDeployToken:        true,
	OpTransferAsset:      true,
	OpOther:              true,
}
