// Package allocation manages allocation models: named sleeve structures
// that rebalancing groups are assigned to. A sleeve is a target-weight
// bucket holding rank-ordered, mutually substitutable securities; weights
// are expressed in basis points of the model total.
package allocation

// Model represents an allocation model
type Model struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Sleeve represents one target-weight bucket within a model
type Sleeve struct {
	ID        int64  `json:"id"`
	ModelID   int64  `json:"model_id"`
	Name      string `json:"name"`
	TargetBPS int    `json:"target_bps"`
}

// SleeveMember is a security's membership in a sleeve. Rank 1 is the most
// preferred security; substitution during tax-loss harvesting walks down
// the rank order. Inactive members are skipped as buy candidates but still
// count toward the sleeve's held value. Legacy members are held positions
// that are never bought again.
type SleeveMember struct {
	SleeveID int64  `json:"sleeve_id"`
	Ticker   string `json:"ticker"`
	Rank     int    `json:"rank"`
	IsActive bool   `json:"is_active"`
	IsLegacy bool   `json:"is_legacy"`
}

// SleeveDetail is a sleeve with its members, ordered by rank
type SleeveDetail struct {
	Sleeve
	Members []SleeveMember `json:"members"`
}

// ModelDetail is a model with its full sleeve structure
type ModelDetail struct {
	Model
	Sleeves []SleeveDetail `json:"sleeves"`
}

// MemberUpsert is a sleeve member in a model save request
type MemberUpsert struct {
	Ticker   string `json:"ticker"`
	Rank     int    `json:"rank"`
	IsActive *bool  `json:"is_active,omitempty"` // defaults to true
	IsLegacy bool   `json:"is_legacy,omitempty"`
}

// SleeveUpsert is a sleeve in a model save request
type SleeveUpsert struct {
	Name      string         `json:"name"`
	TargetBPS int            `json:"target_bps"`
	Members   []MemberUpsert `json:"members"`
}

// ModelUpsert is a model create/update request
type ModelUpsert struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Sleeves     []SleeveUpsert `json:"sleeves"`
}
