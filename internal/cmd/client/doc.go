// Package client provides the `ledgerq` command-line client.
//
// The CLI talks to the ledgerq HTTP endpoints to perform common ledger
// and obligation operations from a terminal. It is primarily intended
// for developers and operators.
//
// Installation
//
//	go install github.com/ledgerq/ledgerq/cmd/ledgerq@latest
//
// Or build from this repo and use the embedded `ledgerq` binary.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it
// defaults to http://127.0.0.1:8080 and can be overridden with the
// LEDGERQ_HTTP environment variable.
//
// Usage
//
//	ledgerq ledger create --name billing
//	ledgerq ledger list
//
//	ledgerq ob register --ledger billing --subject acct-42 --amount 1500
//
//	# Process up to 50 obligations through a fulfillment webhook
//	ledgerq ob run --ledger billing --limit 50 --webhook http://localhost:9090/fulfill
//
//	ledgerq ob status --ledger billing
//	ledgerq ob get --ledger billing --subject acct-42
//
//	# Reclaim stale sequence slots
//	ledgerq ob compact --ledger billing --max-scan 1000
//
//	# Read fulfillment history, newest first
//	ledgerq ob history --ledger billing --limit 20 --reverse
//
//	ledgerq ob pause --ledger billing
//	ledgerq ob resume --ledger billing
//
// Notes
//
//   - run returns the committed batch result. When the fulfiller fails
//     mid-batch the server responds 502 and the CLI still prints the
//     partial result that was durably committed before the failure.
//   - history accepts --start with a resume position returned by a
//     previous call; 0 starts from the oldest retained record.
package client
