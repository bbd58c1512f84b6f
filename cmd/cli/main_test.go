package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/receipt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const testConfig = `
[api]
base_url = "http://127.0.0.1:1"

[auth]
credentials_path = "/nonexistent/credentials.json"
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", writeConfig(t, testConfig)}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "findash", root.Use)
	assert.Contains(t, root.Short, "finance dashboard")
	assert.Contains(t, root.Long, "insights")

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "register", "logout", "profile", "snapshot", "metrics", "insights", "goals", "transactions", "say", "stocks", "receipt", "history", "watch", "export"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestStocksCommand(t *testing.T) {
	out, err := execute(t, "stocks", "aapl")
	require.NoError(t, err)

	// 175 against an average of 172.25 is more than 1% above.
	assert.Contains(t, out, "AAPL: Sell")
	assert.Contains(t, out, "last 175.00, average of previous closes 172.25")
}

func TestStocksCommand_RequiresSymbol(t *testing.T) {
	_, err := execute(t, "stocks")
	assert.Error(t, err)
}

func TestReceiptParseCommand(t *testing.T) {
	text := "BIG BAZAAR\n123 MG Road\nDate: 15/03/2026\nMilk 45.00\nBread ₹30\nEggs 72.50\n\nSubtotal: 147.50\nTax: 7.38\nTotal: 154.88\nThank you"
	path := filepath.Join(t.TempDir(), "receipt.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	out, err := execute(t, "receipt", "parse", path, "--confidence", "0.9")
	require.NoError(t, err)

	var result receipt.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "BIG BAZAAR", result.Receipt.Vendor)
	assert.Equal(t, "2026-03-15", result.Receipt.Date)
	assert.Equal(t, "154.88", result.Receipt.Total.String())
	assert.Equal(t, 0.9, result.Receipt.Confidence)
	assert.Len(t, result.Receipt.Items, 3)
}

func TestReceiptParseCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "receipt", "parse", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")
}

func TestReceiptScanCommand_RequiresGeminiKey(t *testing.T) {
	t.Setenv("FINDASH_GEMINI_API_KEY", "")
	_, err := execute(t, "receipt", "scan", "receipt.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini.api_key")
}

func TestHistoryCommand_RequiresBigQuery(t *testing.T) {
	t.Setenv("FINDASH_BIGQUERY_ENABLED", "false")
	_, err := execute(t, "history", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bigquery.enabled")
}

func TestGoalsAdd_InvalidAmount(t *testing.T) {
	_, err := execute(t, "goals", "add", "--title", "Car", "--amount", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --amount")
}

func TestExportCommand_RequiresNotionToken(t *testing.T) {
	t.Setenv("FINDASH_NOTION_TOKEN", "")
	_, err := execute(t, "export", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token")
}

func TestListCommands_SignedOutPrintEmptyTable(t *testing.T) {
	out, err := execute(t, "goals", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "TITLE", "TYPE", "TARGET", "PROGRESS", "TIMELINE"}, strings.Fields(out))

	out, err = execute(t, "transactions", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"DATE", "TYPE", "AMOUNT", "CATEGORY", "DESCRIPTION"}, strings.Fields(out))
}
