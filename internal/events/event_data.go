package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TradeRecordedData contains data for TradeRecorded events
type TradeRecordedData struct {
	AccountID  string  `json:"account_id"`
	Ticker     string  `json:"ticker"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	ExternalID string  `json:"external_id,omitempty"`
}

// EventType returns the event type for TradeRecordedData
func (d *TradeRecordedData) EventType() EventType {
	return TradeRecorded
}

// HoldingsChangedData contains data for HoldingsChanged events
type HoldingsChangedData struct {
	AccountID string `json:"account_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// EventType returns the event type for HoldingsChangedData
func (d *HoldingsChangedData) EventType() EventType {
	return HoldingsChanged
}

// PricesUpdatedData contains data for PricesUpdated events
type PricesUpdatedData struct {
	Count int `json:"count"`
}

// EventType returns the event type for PricesUpdatedData
func (d *PricesUpdatedData) EventType() EventType {
	return PricesUpdated
}

// RestrictionsUpdatedData contains data for RestrictionsUpdated events
type RestrictionsUpdatedData struct {
	Added       int `json:"added"`
	Expired     int `json:"expired"`
	ActiveCount int `json:"active_count"`
}

// EventType returns the event type for RestrictionsUpdatedData
func (d *RestrictionsUpdatedData) EventType() EventType {
	return RestrictionsUpdated
}

// ProposalCreatedData contains data for ProposalCreated events
type ProposalCreatedData struct {
	ProposalID   string `json:"proposal_id"`
	GroupID      string `json:"group_id"`
	Method       string `json:"method"`
	TradeCount   int    `json:"trade_count"`
	BlockedCount int    `json:"blocked_count,omitempty"`
}

// EventType returns the event type for ProposalCreatedData
func (d *ProposalCreatedData) EventType() EventType {
	return ProposalCreated
}

// RebalanceCompletedData contains data for RebalanceCompleted events
type RebalanceCompletedData struct {
	ProposalID string  `json:"proposal_id"`
	GroupID    string  `json:"group_id"`
	Method     string  `json:"method"`
	TradeCount int     `json:"trade_count"`
	DurationMS float64 `json:"duration_ms"`
}

// EventType returns the event type for RebalanceCompletedData
func (d *RebalanceCompletedData) EventType() EventType {
	return RebalanceCompleted
}

// ModelChangedData contains data for ModelChanged events
type ModelChangedData struct {
	ModelID int64  `json:"model_id"`
	Action  string `json:"action"`
	Name    string `json:"name,omitempty"`
}

// EventType returns the event type for ModelChangedData
func (d *ModelChangedData) EventType() EventType {
	return ModelChanged
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// SnapshotSavedData contains data for SnapshotSaved events
type SnapshotSavedData struct {
	GroupID    string  `json:"group_id"`
	TotalValue float64 `json:"total_value"`
}

// EventType returns the event type for SnapshotSavedData
func (d *SnapshotSavedData) EventType() EventType {
	return SnapshotSaved
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Databases int     `json:"databases"`
	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case TradeRecorded:
			eventData = &TradeRecordedData{}
		case HoldingsChanged:
			eventData = &HoldingsChangedData{}
		case PricesUpdated:
			eventData = &PricesUpdatedData{}
		case RestrictionsUpdated:
			eventData = &RestrictionsUpdatedData{}
		case ProposalCreated:
			eventData = &ProposalCreatedData{}
		case RebalanceCompleted:
			eventData = &RebalanceCompletedData{}
		case ModelChanged:
			eventData = &ModelChangedData{}
		case SettingsChanged:
			eventData = &SettingsChangedData{}
		case SnapshotSaved:
			eventData = &SnapshotSavedData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case SystemStatusChanged:
			eventData = &SystemStatusChangedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		default:
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Data: rawData}
		}

		if eventData != nil {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
			e.Data = eventData
		}
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
