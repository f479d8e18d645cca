package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers all dashboard tools on the MCP server.
func RegisterTools(s *server.MCPServer, client *Client) {
	registerSubmitOperation(s, client)
	registerMetrics(s, client)
	registerGasTrends(s, client)
	registerHistory(s, client)
	registerWallet(s, client)
	registerHealth(s, client)
}

func registerSubmitOperation(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("agent_submit_operation",
		gomcp.WithDescription("Execute a blockchain operation through the agent. This is a MUTATING operation that spends real (testnet) funds. Operations: request_faucet_funds, deploy_token, transfer_asset."),
		gomcp.WithString("operation_type",
			gomcp.Required(),
			gomcp.Description("Operation: request_faucet_funds, deploy_token, transfer_asset"),
		),
		gomcp.WithString("wallet_id",
			gomcp.Required(),
			gomcp.Description("Wallet identifier; operations for the same wallet run one at a time"),
		),
		gomcp.WithString("recipient",
			gomcp.Description("Recipient hex address (transfer_asset)"),
		),
		gomcp.WithNumber("amount",
			gomcp.Description("Amount in ETH (transfer_asset)"),
		),
		gomcp.WithNumber("total_supply",
			gomcp.Description("Token total supply (deploy_token, default 1000000)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		opType, err := req.RequireString("operation_type")
		if err != nil {
			return gomcp.NewToolResultError("operation_type is required"), nil
		}
		walletID, err := req.RequireString("wallet_id")
		if err != nil {
			return gomcp.NewToolResultError("wallet_id is required"), nil
		}

		params := map[string]any{}
		if v := req.GetString("recipient", ""); v != "" {
			params["recipient"] = v
		}
		if v := req.GetFloat("amount", 0); v > 0 {
			params["amount"] = v
		}
		if v := req.GetFloat("total_supply", 0); v > 0 {
			params["total_supply"] = v
		}

		payload := map[string]any{
			"operation_type": opType,
			"wallet_id":      walletID,
			"params":         params,
		}

		raw, err := client.Post("/api/transaction", payload)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Submit failed: %v\n\nIs the dashboard running?", err)), nil
		}
		return gomcp.NewToolResultText(formatSubmitResult(raw)), nil
	})
}

func registerMetrics(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("agent_metrics",
		gomcp.WithDescription("Get aggregate agent performance: total operations, success rate, average gas, per-type breakdown, and daily gas trends."),
		gomcp.WithString("operation_type",
			gomcp.Description("Narrow the per-type breakdown to one operation type"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		path := "/api/metrics"
		if v := req.GetString("operation_type", ""); v != "" {
			path += "?operation_type=" + url.QueryEscape(v)
		}
		raw, err := client.Get(path)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Dashboard unreachable: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatMetrics(raw)), nil
	})
}

func registerGasTrends(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("agent_gas_trends",
		gomcp.WithDescription("Get per-day gas usage trends for successful operations."),
		gomcp.WithNumber("days",
			gomcp.Description("Trend window in days (default 7)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		path := "/api/gas-trends"
		if d := req.GetInt("days", 0); d > 0 {
			path += "?days=" + strconv.Itoa(d)
		}
		raw, err := client.Get(path)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Dashboard unreachable: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatGasTrends(raw)), nil
	})
}

func registerHistory(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("agent_history",
		gomcp.WithDescription("List recorded operations, newest first (paginated, filterable)."),
		gomcp.WithString("wallet_id",
			gomcp.Description("Only operations for this wallet"),
		),
		gomcp.WithString("status",
			gomcp.Description("Only operations with this status: success or failed"),
		),
		gomcp.WithNumber("limit",
			gomcp.Description("Max results to return (default: 10, max: 500)"),
		),
		gomcp.WithNumber("offset",
			gomcp.Description("Results offset for pagination (default: 0)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(req.GetInt("limit", 10)))
		q.Set("offset", strconv.Itoa(req.GetInt("offset", 0)))
		if v := req.GetString("wallet_id", ""); v != "" {
			q.Set("wallet_id", v)
		}
		if v := req.GetString("status", ""); v != "" {
			q.Set("status", v)
		}

		raw, err := client.Get("/api/transactions?" + q.Encode())
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("History failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatHistory(raw)), nil
	})
}

func registerWallet(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("agent_wallet",
		gomcp.WithDescription("Get the agent wallet address, network, and current balance."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Get("/api/wallet")
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Wallet lookup failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatWallet(raw)), nil
	})
}

func registerHealth(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("agent_health",
		gomcp.WithDescription("Quick health check for the dashboard. Checks chain RPC connectivity."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		raw, err := client.Get("/ready")
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Dashboard unhealthy: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatHealth(raw)), nil
	})
}

// Response formatting functions

func formatSubmitResult(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing response: %v", err)
	}

	tx, ok := m["transaction"].(map[string]any)
	if !ok {
		return "Operation accepted but no record returned."
	}

	lines := joinLines(
		heading("Operation Recorded"),
		kv("ID", groupDigits(getNum(tx, "id"))),
		kv("Type", getStr(tx, "operation_type")),
		kv("Status", getStr(tx, "status")),
	)
	if hash := getStr(tx, "hash"); hash != "" {
		lines += "\n" + kv("Hash", hash)
	}
	if gas := getNum(tx, "gas_used"); gas > 0 {
		lines += "\n" + kv("Gas Used", groupDigits(gas))
	}
	if errDetail := getStr(tx, "error_detail"); errDetail != "" {
		lines += "\n" + kv("Error", errDetail)
	}
	return lines
}

func formatMetrics(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing metrics: %v", err)
	}

	metrics, ok := m["metrics"].(map[string]any)
	if !ok {
		return "No metrics available."
	}

	lines := heading("Agent Performance")
	if overall, ok := metrics["overall_stats"].(map[string]any); ok {
		lines += "\n" + joinLines(
			kv("Total Operations", groupDigits(getNum(overall, "total_operations"))),
			kv("Success Rate", pct(getNum(overall, "success_rate"))),
			kv("Avg Gas Used", groupDigits(getNum(overall, "avg_gas_used"))),
		)
	}

	if perType, ok := metrics["operation_types"].(map[string]any); ok && len(perType) > 0 {
		names := make([]string, 0, len(perType))
		for name := range perType {
			names = append(names, name)
		}
		sort.Strings(names)

		lines += "\n\n" + heading("By Operation Type")
		for _, name := range names {
			st, ok := perType[name].(map[string]any)
			if !ok {
				continue
			}
			lines += "\n" + fmt.Sprintf("  %-22s %s ops, %s success, avg %s gas",
				name,
				groupDigits(getNum(st, "total_operations")),
				pct(getNum(st, "success_rate")),
				groupDigits(getNum(st, "avg_gas_used")),
			)
		}
	}

	if trends, ok := metrics["gas_trends"].([]any); ok && len(trends) > 0 {
		lines += "\n\n" + heading("Gas Trends")
		lines += "\n" + formatTrendLines(trends)
	}

	return lines
}

func formatGasTrends(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing gas trends: %v", err)
	}

	trends, ok := m["gas_trends"].([]any)
	if !ok || len(trends) == 0 {
		return heading("Gas Trends") + "\nNo gas usage recorded yet."
	}

	return heading("Gas Trends") + "\n" + formatTrendLines(trends)
}

func formatTrendLines(trends []any) string {
	lines := ""
	for _, t := range trends {
		point, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if lines != "" {
			lines += "\n"
		}
		lines += fmt.Sprintf("  %s  avg %s gas over %s ops",
			getStr(point, "date"),
			groupDigits(getNum(point, "avg_gas_used")),
			groupDigits(getNum(point, "total_operations")),
		)
	}
	return lines
}

func formatHistory(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing history: %v", err)
	}

	txs, ok := m["transactions"].([]any)
	if !ok || len(txs) == 0 {
		return heading("Operation History") + "\nNo operations recorded."
	}

	lines := heading("Operation History")
	for _, t := range txs {
		tx, ok := t.(map[string]any)
		if !ok {
			continue
		}

		ts := getStr(tx, "timestamp")
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ts = parsed.Format("2006-01-02 15:04:05")
		}

		line := fmt.Sprintf("  [%d] %s  %-20s %s",
			int64(getNum(tx, "id")),
			ts,
			getStr(tx, "operation_type"),
			getStr(tx, "status"),
		)
		if hash := getStr(tx, "hash"); hash != "" {
			line += "  " + truncateHash(hash)
		}
		lines += "\n" + line
	}
	return lines
}

func formatWallet(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing wallet: %v", err)
	}

	data, ok := m["data"].(map[string]any)
	if !ok {
		return "Wallet not available."
	}

	return joinLines(
		heading("Agent Wallet"),
		kv("Address", getStr(data, "address")),
		kv("Network", getStr(data, "network")),
		kv("Balance (wei)", getStr(data, "balance")),
	)
}

func formatHealth(raw json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("Error parsing health: %v", err)
	}

	ready, _ := m["ready"].(bool)
	state := "READY"
	if !ready {
		state = "NOT READY"
	}

	lines := heading("Dashboard Health: " + state)

	if checks, ok := m["checks"].([]any); ok {
		for _, c := range checks {
			if check, ok := c.(map[string]any); ok {
				name := getStr(check, "name")
				status := getStr(check, "status")
				latencyMs := getNum(check, "latency_ms")
				errMsg := getStr(check, "error")
				line := fmt.Sprintf("  %-15s %s (%dms)", name, status, int64(latencyMs))
				if errMsg != "" {
					line += " - " + errMsg
				}
				lines += "\n" + line
			}
		}
	}

	return lines
}

// Helper functions
func getStr(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getNum(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		if n, ok := v.(float64); ok {
			return n
		}
	}
	return 0
}

func truncateHash(hash string) string {
	if len(hash) <= 18 {
		return hash
	}
	return hash[:18] + "..."
}
