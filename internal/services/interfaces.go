package services

import (
	"time"

	"gorm.io/gorm"

	"bonuspark/internal/models"
	"bonuspark/internal/pagination"
)

// CreateUserData holds the fields accepted when registering a new member.
type CreateUserData struct {
	ExternalID  string
	FirstName   string
	LastName    string
	Username    string
	VKID        *string
	InstagramID *string
	TelegramID  *string
}

// UserUpdateFields holds the mutable profile fields. Nil pointers are left
// unchanged; anything not listed here cannot be updated through the directory.
type UserUpdateFields struct {
	Username    *string
	FirstName   *string
	LastName    *string
	VKID        *string
	InstagramID *string
	TelegramID  *string
}

// UserServicer defines the contract of the user directory.
type UserServicer interface {
	// FindByExternalID returns (nil, nil) when no user matches; absence is
	// not an error at this level.
	FindByExternalID(externalID string) (*models.User, error)
	Create(data CreateUserData) (*models.User, error)
	Update(userID uint, fields UserUpdateFields) (*models.User, error)
	Exists(externalID string) (bool, error)
}

// ActivityType is a closed code for point-awarding activities.
type ActivityType string

const (
	ActivityWelcome          ActivityType = "welcome"
	ActivityReferralReferrer ActivityType = "referral_referrer"
	ActivityReferralReferee  ActivityType = "referral_referee"
	ActivityVKPost           ActivityType = "vk_post"
	ActivityInstagramPost    ActivityType = "instagram_post"
	ActivityTelegramJoin     ActivityType = "telegram_join"
	ActivityPurchaseCashback ActivityType = "purchase_cashback"
)

// ActivityReward is one row of the immutable award table.
type ActivityReward struct {
	Points int64
	Reason string
}

// AwardConfig maps activity codes to their rewards. Constructed once at
// startup and passed by injection; never mutated afterwards.
type AwardConfig map[ActivityType]ActivityReward

// DefaultAwards returns the standard award table. Purchase cashback carries
// no fixed amount; it is computed from the buyer's tier rate.
func DefaultAwards() AwardConfig {
	return AwardConfig{
		ActivityWelcome:          {Points: 100, Reason: "Welcome bonus"},
		ActivityReferralReferrer: {Points: 300, Reason: "Referral bonus (referrer)"},
		ActivityReferralReferee:  {Points: 150, Reason: "Referral bonus (new member)"},
		ActivityVKPost:           {Points: 50, Reason: "VK post"},
		ActivityInstagramPost:    {Points: 50, Reason: "Instagram post"},
		ActivityTelegramJoin:     {Points: 30, Reason: "Telegram channel join"},
		ActivityPurchaseCashback: {Points: 0, Reason: "Purchase cashback"},
	}
}

// MutationResult reports the outcome of a single balance mutation.
type MutationResult struct {
	Balance       int64          `json:"balance"`
	TransactionID uint           `json:"transaction_id"`
	Upgrade       *StatusUpgrade `json:"upgrade,omitempty"`
}

// TransferResult reports the outcome of a peer-to-peer transfer.
type TransferResult struct {
	FromBalance         int64 `json:"from_balance"`
	ToBalance           int64 `json:"to_balance"`
	DebitTransactionID  uint  `json:"debit_transaction_id"`
	CreditTransactionID uint  `json:"credit_transaction_id"`
}

// LedgerStats holds aggregate ledger reporting data.
type LedgerStats struct {
	TotalCredited    int64   `json:"total_credited"`
	TotalDebited     int64   `json:"total_debited"`
	TransactionCount int64   `json:"transaction_count"`
	AvgBalance       float64 `json:"avg_balance"`
	MinBalance       int64   `json:"min_balance"`
	MaxBalance       int64   `json:"max_balance"`
}

// PointsServicer is the sole authority for balance mutation. Every change is
// applied to the materialized balance and recorded as an immutable ledger row
// within one atomic unit.
type PointsServicer interface {
	AddPoints(userID uint, amount int64, reason string, metadata models.Metadata) (*MutationResult, error)
	DeductPoints(userID uint, amount int64, reason string, metadata models.Metadata) (*MutationResult, error)
	GetBalance(userID uint) (int64, error)
	GetHistory(userID uint, window pagination.Window) ([]models.PointTransaction, error)
	AwardPointsForActivity(userID uint, activity ActivityType, metadata models.Metadata) (*MutationResult, error)
	TransferPoints(fromUserID, toUserID uint, amount int64, reason string) (*TransferResult, error)
	GetStats() (*LedgerStats, error)

	// AwardForActivityWithDB composes an award into a caller-owned database
	// transaction (e.g. the welcome credit inside user creation).
	AwardForActivityWithDB(tx *gorm.DB, userID uint, activity ActivityType, metadata models.Metadata) (*models.PointTransaction, error)
}

// Tier describes one loyalty level.
type Tier struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	MinPoints   int64    `json:"min_points"`
	CashbackPct int64    `json:"cashback_pct"`
	Color       string   `json:"color"`
	Benefits    []string `json:"benefits"`
}

// StatusProgress describes where a balance sits within its tier band.
type StatusProgress struct {
	Current         Tier  `json:"current"`
	Next            *Tier `json:"next,omitempty"`
	PointsToNext    int64 `json:"points_to_next"`
	ProgressPercent int   `json:"progress_percent"`
}

// PointsUsage is the accepted outcome of a checkout usage validation.
type PointsUsage struct {
	Discount         int64 `json:"discount"`
	RemainingBalance int64 `json:"remaining_balance"`
	MaxUsage         int64 `json:"max_usage"`
}

// PurchaseDetails is the full breakdown of a purchase with points applied.
type PurchaseDetails struct {
	OriginalAmount int64  `json:"original_amount"`
	Discount       int64  `json:"discount"`
	FinalAmount    int64  `json:"final_amount"`
	Cashback       int64  `json:"cashback"`
	TotalSavings   int64  `json:"total_savings"`
	Status         string `json:"status"`
}

// StatusUpgrade reports a tier change detected after a balance mutation.
type StatusUpgrade struct {
	From    Tier   `json:"from"`
	To      Tier   `json:"to"`
	Message string `json:"message"`
}

// Recommendation is one actionable suggestion for a member.
type Recommendation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// StatusServicer defines the pure loyalty tier engine. No method touches
// the store.
type StatusServicer interface {
	CalculateStatus(points int64) Tier
	GetStatusInfo(statusKey string) (*Tier, error)
	CalculateCashback(statusKey string, amount int64) (int64, error)
	GetStatusProgress(points int64) *StatusProgress
	ValidatePointsUsage(userPoints, requestedPoints, purchaseAmount int64) (*PointsUsage, error)
	CalculatePurchaseDetails(amount, pointsUsed int64, statusKey string) (*PurchaseDetails, error)
	CheckStatusUpgrade(oldPoints, newPoints int64) *StatusUpgrade
	GetRecommendations(points int64, lastActivity *time.Time) []Recommendation
	Tiers() []Tier
}

// BatchResult reports an all-users RFM run.
type BatchResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Total     int `json:"total"`
}

// SegmentSummary aggregates one segment over the reporting window.
type SegmentSummary struct {
	Segment        string  `json:"segment"`
	Count          int64   `json:"count"`
	AvgRecencyDays float64 `json:"avg_recency_days"`
	AvgFrequency   float64 `json:"avg_frequency"`
	AvgMonetary    float64 `json:"avg_monetary"`
	Percentage     int     `json:"percentage"`
}

// SegmentUser is one member of a segment with display fields attached.
type SegmentUser struct {
	UserID         uint   `json:"user_id"`
	ExternalID     string `json:"external_id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	RecencyScore   int    `json:"recency_score"`
	FrequencyScore int    `json:"frequency_score"`
	MonetaryScore  int    `json:"monetary_score"`
	MonetaryValue  int64  `json:"monetary_value"`
}

// SegmentDefinition is the static description of one RFM segment.
type SegmentDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Strategy    string `json:"strategy"`
	Color       string `json:"color"`
	Priority    int    `json:"priority"`
}

// RFMServicer defines the contract of the RFM analytics engine.
type RFMServicer interface {
	CalculateRFMForAllUsers() (*BatchResult, error)
	// CalculateUserRFM returns (nil, nil) for users with no purchases;
	// a non-purchaser cannot be segmented.
	CalculateUserRFM(externalID string) (*models.RFMSegment, error)
	GetUserRFM(externalID string) (*models.RFMSegment, error)
	GetSegmentsSummary() ([]SegmentSummary, error)
	GetSegmentUsers(segmentName string, limit int) ([]SegmentUser, error)
	GetAllSegments() []SegmentDefinition
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]any)
}
