// Package obligsvc provides the obligation-processing service facade: ledger
// management, registration, guarded batch runs and compactions, fulfillment
// history, and pause/resume. It wires per-ledger queues with their stored
// policies (failure policy, scan budget, CEL eligibility expression), records
// fulfillments in the journal, and feeds the Prometheus collectors.
package obligsvc
