package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"bonuspark/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a member with a unique external ID and zero points.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithPoints(t, db, 0)
}

// CreateTestUserWithPoints creates a member with the given balance. The
// cached status column matches the tier the balance falls into.
func CreateTestUserWithPoints(t *testing.T, db *gorm.DB, points int64) *models.User {
	t.Helper()

	n := nextID()
	user := &models.User{
		ExternalID: fmt.Sprintf("ext-%d", n),
		Username:   fmt.Sprintf("member%d", n),
		FirstName:  fmt.Sprintf("Test%d", n),
		Points:     points,
		Status:     statusForPoints(points),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func statusForPoints(points int64) string {
	switch {
	case points >= 5000:
		return "platinum"
	case points >= 1500:
		return "gold"
	case points >= 500:
		return "silver"
	default:
		return "bronze"
	}
}

// CreateTestPurchase records a purchase debit at the given time. The row is
// inserted directly; the member's balance is not touched.
func CreateTestPurchase(t *testing.T, db *gorm.DB, userID uint, amount int64, at time.Time) *models.PointTransaction {
	t.Helper()

	tx := &models.PointTransaction{
		UserID:    userID,
		Type:      models.TransactionTypeDebit,
		Amount:    amount,
		Reason:    models.ReasonPurchase,
		CreatedAt: at,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test purchase: %v", err)
	}
	return tx
}

// CreateTestSegment inserts a precomputed segment row calculated at the
// given time.
func CreateTestSegment(t *testing.T, db *gorm.DB, userID uint, externalID, segment string, r, f, m int, calculatedAt time.Time) *models.RFMSegment {
	t.Helper()

	row := &models.RFMSegment{
		UserID:         userID,
		ExternalID:     externalID,
		RecencyScore:   r,
		FrequencyScore: f,
		MonetaryScore:  m,
		Segment:        segment,
		RecencyDays:    10,
		FrequencyCount: f,
		MonetaryValue:  int64(m) * 100,
		CalculatedAt:   calculatedAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("failed to create test segment: %v", err)
	}
	return row
}
