package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Requisition statuses as reported by GoCardless.
const (
	RequisitionCreated  = "CR"
	RequisitionLinked   = "LN"
	RequisitionRejected = "RJ"
	RequisitionExpired  = "EX"
)

// Connection states of the authorization flow.
const (
	ConnectionIdle       = "idle"
	ConnectionConnecting = "connecting"
	ConnectionLinked     = "linked"
	ConnectionRejected   = "rejected"
)

type Bank struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Logo    string `json:"logo,omitempty"`
	Country string `json:"country"`
}

// Requisition is a one-shot authorization session. It is created for a single
// connection attempt and discarded once it reaches a terminal status.
type Requisition struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	InstitutionID string    `json:"institution_id"`
	Link          string    `json:"link,omitempty"`
	Status        string    `json:"status"`
	Accounts      []string  `json:"accounts,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Terminal reports whether the requisition can no longer change status.
func (r *Requisition) Terminal() bool {
	return r.Status == RequisitionLinked ||
		r.Status == RequisitionRejected ||
		r.Status == RequisitionExpired
}

type AccountLink struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	AccountID string    `json:"account_id"`
	BankName  string    `json:"bank_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	AccountID   string          `json:"account_id"`
	ExternalID  string          `json:"external_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	BookedAt    time.Time       `json:"booked_at"`
	Category    string          `json:"category"`
	ColorHint   string          `json:"color_hint"`
}

// SyncResult reports how far a sync got. Persisted may be lower than Fetched
// when the store fails mid-batch; re-running the sync is safe because
// persistence is an idempotent upsert.
type SyncResult struct {
	AccountID string `json:"account_id"`
	Fetched   int    `json:"fetched"`
	Persisted int    `json:"persisted"`
}
