package models

// User represents a loyalty program member. Users are keyed externally by
// the identity that first contacted the program (e.g. a telegram id);
// the numeric primary key is internal to the store.
type User struct {
	Base
	ExternalID string `gorm:"uniqueIndex;not null" json:"external_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`

	// Points is the materialized balance: always equal to the sum of credit
	// transactions minus debit transactions for this user. Mutated only by
	// the points ledger, inside the same transaction as the ledger row.
	Points int64 `gorm:"not null;default:0" json:"points"`

	// Status caches the tier key derived from Points.
	Status string `gorm:"not null;default:'bronze'" json:"status"`

	// Linked social identities, unique when present.
	VKID        *string `gorm:"uniqueIndex" json:"vk_id,omitempty"`
	InstagramID *string `gorm:"uniqueIndex" json:"instagram_id,omitempty"`
	TelegramID  *string `gorm:"uniqueIndex" json:"telegram_id,omitempty"`

	Transactions []PointTransaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
}
