package obligsvc

// RunResult summarizes one batch run.
type RunResult struct {
	RunID     string `json:"runId"`
	Processed int    `json:"processed"`
	Scanned   int    `json:"scanned"`
	Requeued  int    `json:"requeued"`
	Cursor    uint64 `json:"cursor"`
}

// CompactResult summarizes one compaction pass.
type CompactResult struct {
	RunID   string `json:"runId"`
	Removed int    `json:"removed"`
}

// Status is a point-in-time view of a ledger's queue.
type Status struct {
	Ledger         string  `json:"ledger"`
	Cursor         uint64  `json:"cursor"`
	CursorPosition uint64  `json:"cursorPosition"`
	LastSeq        uint64  `json:"lastSeq"`
	SequenceLength uint64  `json:"sequenceLength"`
	LiveCount      uint64  `json:"liveCount"`
	StaleRatio     float64 `json:"staleRatio"`
	Paused         bool    `json:"paused"`
}

// HistoryItem is one fulfillment record exposed over the API.
type HistoryItem struct {
	Seq     uint64 `json:"seq"`
	TsMs    int64  `json:"tsMs"`
	Subject string `json:"subject"`
	Amount  uint64 `json:"amount"`
	Slot    uint64 `json:"slot"`
}
