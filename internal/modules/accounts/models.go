// Package accounts manages brokerage accounts and rebalancing groups. A
// group is the unit of rebalancing: a set of accounts managed together
// against one allocation model.
package accounts

import "github.com/ballastd/ballast/internal/domain"

// Account represents a brokerage account in portfolio.db
type Account struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Type      domain.AccountType `json:"account_type"`
	CreatedAt int64              `json:"created_at"`
	UpdatedAt int64              `json:"updated_at"`
}

// Group represents a rebalancing group. ModelID points into universe.db;
// the cross-database link is checked in code when the group is saved and
// again when a rebalance runs.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ModelID   *int64 `json:"model_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// GroupDetail is a group with its member accounts
type GroupDetail struct {
	Group
	Accounts []Account `json:"accounts"`
}

// AccountUpsert is an account create/update request. A blank ID gets a
// generated UUID; brokers' own account numbers work as IDs too.
type AccountUpsert struct {
	ID   string             `json:"id,omitempty"`
	Name string             `json:"name"`
	Type domain.AccountType `json:"account_type"`
}

// GroupUpsert is a group create/update request
type GroupUpsert struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name"`
	ModelID    *int64   `json:"model_id,omitempty"`
	AccountIDs []string `json:"account_ids"`
}
