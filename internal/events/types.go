// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Ledger and holdings events
	TradeRecorded   EventType = "TRADE_RECORDED"
	HoldingsChanged EventType = "HOLDINGS_CHANGED"
	PricesUpdated   EventType = "PRICES_UPDATED"

	// Wash-sale restriction events
	RestrictionsUpdated EventType = "RESTRICTIONS_UPDATED"

	// Rebalancing events
	ProposalCreated    EventType = "PROPOSAL_CREATED"
	RebalanceCompleted EventType = "REBALANCE_COMPLETED"

	// Model and configuration events
	ModelChanged    EventType = "MODEL_CHANGED"
	SettingsChanged EventType = "SETTINGS_CHANGED"

	// System events
	SnapshotSaved       EventType = "SNAPSHOT_SAVED"
	BackupCompleted     EventType = "BACKUP_COMPLETED"
	SystemStatusChanged EventType = "SYSTEM_STATUS_CHANGED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)
