package models

import "time"

// TransactionType gives a point transaction its sign.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// Reserved metadata keys. Callers may attach arbitrary additional keys;
// these are the ones the ledger itself reads or writes.
const (
	MetaCounterpartUserID = "counterpart_user_id" // transfers: the other side of the pair
	MetaPurchaseAmount    = "purchase_amount"     // cashback awards: the purchase total
	MetaActivityType      = "activity_type"       // activity awards: the activity code
)

// ReasonPurchase marks the debits the RFM engine treats as purchases.
const ReasonPurchase = "purchase"

// Metadata is an opaque key-value bag attached to a transaction.
// It round-trips caller-supplied data through a JSON column.
type Metadata map[string]any

// PointTransaction is one row of the append-only point ledger.
// Rows are never updated or deleted; the user's balance is the
// materialized aggregate kept in sync transactionally.
type PointTransaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Type      TransactionType `gorm:"not null" json:"type"`
	Amount    int64           `gorm:"type:bigint;not null" json:"amount"` // magnitude, always positive
	Reason    string          `gorm:"not null" json:"reason"`
	Metadata  Metadata        `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
