package services

import (
	"fmt"
	"time"

	apperrors "bonuspark/internal/errors"
)

// Points spent at checkout may not exceed this share of the purchase amount.
const maxUsageSharePct = 50

// Members inactive for this long get an activity nudge.
const inactivityThreshold = 7 * 24 * time.Hour

// DefaultTiers returns the standard four-tier ladder. Thresholds are
// strictly increasing; the entry tier is the floor for any balance.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Key:       "bronze",
			Name:      "Bronze",
			MinPoints: 0,
			Color:     "#cd7f32",
			Benefits:  []string{"Earn points on every purchase"},
		},
		{
			Key:         "silver",
			Name:        "Silver",
			MinPoints:   500,
			CashbackPct: 5,
			Color:       "#c0c0c0",
			Benefits:    []string{"5% cashback", "Early access to promotions"},
		},
		{
			Key:         "gold",
			Name:        "Gold",
			MinPoints:   1500,
			CashbackPct: 7,
			Color:       "#ffd700",
			Benefits:    []string{"7% cashback", "Priority support", "Birthday gift"},
		},
		{
			Key:         "platinum",
			Name:        "Platinum",
			MinPoints:   5000,
			CashbackPct: 10,
			Color:       "#e5e4e2",
			Benefits:    []string{"10% cashback", "Personal manager", "Exclusive events"},
		},
	}
}

// statusService is the pure loyalty tier engine. It holds an immutable tier
// table and never touches the store.
type statusService struct {
	tiers []Tier // ascending by MinPoints
	byKey map[string]int
}

// NewStatusService creates a StatusServicer over the given tier table.
func NewStatusService(tiers []Tier) StatusServicer {
	byKey := make(map[string]int, len(tiers))
	for i, t := range tiers {
		byKey[t.Key] = i
	}
	return &statusService{tiers: tiers, byKey: byKey}
}

// CalculateStatus returns the tier whose threshold is the largest one not
// exceeding points. The lowest tier is the default floor.
func (s *statusService) CalculateStatus(points int64) Tier {
	current := s.tiers[0]
	for _, t := range s.tiers[1:] {
		if points >= t.MinPoints {
			current = t
		}
	}
	return current
}

// GetStatusInfo returns the tier for a status key.
func (s *statusService) GetStatusInfo(statusKey string) (*Tier, error) {
	i, ok := s.byKey[statusKey]
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidStatus, "Unknown loyalty status: "+statusKey)
	}
	tier := s.tiers[i]
	return &tier, nil
}

// CalculateCashback computes the cashback for a purchase amount at the
// given status, rounded down.
func (s *statusService) CalculateCashback(statusKey string, amount int64) (int64, error) {
	tier, err := s.GetStatusInfo(statusKey)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, nil
	}
	return amount * tier.CashbackPct / 100, nil
}

// GetStatusProgress reports the current tier, the next one (if any), the
// points remaining, and the percentage progress within the current band.
func (s *statusService) GetStatusProgress(points int64) *StatusProgress {
	current := s.CalculateStatus(points)
	idx := s.byKey[current.Key]

	if idx == len(s.tiers)-1 {
		// Top tier: nothing left to reach.
		return &StatusProgress{Current: current, PointsToNext: 0, ProgressPercent: 100}
	}

	next := s.tiers[idx+1]
	pointsToNext := next.MinPoints - points
	if pointsToNext < 0 {
		pointsToNext = 0
	}

	band := next.MinPoints - current.MinPoints
	progress := int((points - current.MinPoints) * 100 / band)
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return &StatusProgress{
		Current:         current,
		Next:            &next,
		PointsToNext:    pointsToNext,
		ProgressPercent: progress,
	}
}

// ValidatePointsUsage enforces the two independent checkout caps: the
// requested points must not exceed the balance, and must not exceed half of
// the purchase amount. Points convert to discount at a 1:1 rate.
func (s *statusService) ValidatePointsUsage(userPoints, requestedPoints, purchaseAmount int64) (*PointsUsage, error) {
	if requestedPoints <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	maxUsage := purchaseAmount * maxUsageSharePct / 100

	if requestedPoints > userPoints {
		return nil, apperrors.WithDetails(apperrors.ErrInsufficientBalance, map[string]any{
			"balance":   userPoints,
			"shortfall": requestedPoints - userPoints,
			"max_usage": maxUsage,
		})
	}
	if requestedPoints > maxUsage {
		return nil, apperrors.WithDetails(apperrors.ErrUsageLimitExceeded, map[string]any{
			"max_usage": maxUsage,
		})
	}

	return &PointsUsage{
		Discount:         requestedPoints,
		RemainingBalance: userPoints - requestedPoints,
		MaxUsage:         maxUsage,
	}, nil
}

// CalculatePurchaseDetails breaks down a purchase with points applied.
// Cashback is computed on the discounted final amount.
func (s *statusService) CalculatePurchaseDetails(amount, pointsUsed int64, statusKey string) (*PurchaseDetails, error) {
	tier, err := s.GetStatusInfo(statusKey)
	if err != nil {
		return nil, err
	}

	discount := pointsUsed
	finalAmount := amount - discount
	if finalAmount < 0 {
		finalAmount = 0
	}
	cashback := finalAmount * tier.CashbackPct / 100

	return &PurchaseDetails{
		OriginalAmount: amount,
		Discount:       discount,
		FinalAmount:    finalAmount,
		Cashback:       cashback,
		TotalSavings:   discount + cashback,
		Status:         tier.Key,
	}, nil
}

// CheckStatusUpgrade compares tiers before and after a balance change and
// returns the upgrade details when they differ. Detection only; the caller
// decides whether to notify.
func (s *statusService) CheckStatusUpgrade(oldPoints, newPoints int64) *StatusUpgrade {
	oldTier := s.CalculateStatus(oldPoints)
	newTier := s.CalculateStatus(newPoints)
	if oldTier.Key == newTier.Key {
		return nil
	}

	return &StatusUpgrade{
		From:    oldTier,
		To:      newTier,
		Message: fmt.Sprintf("Congratulations! You have reached %s status and now earn %d%% cashback.", newTier.Name, newTier.CashbackPct),
	}
}

// GetRecommendations produces an ordered list of actionable suggestions.
func (s *statusService) GetRecommendations(points int64, lastActivity *time.Time) []Recommendation {
	recs := []Recommendation{}

	progress := s.GetStatusProgress(points)
	if progress.Next != nil {
		recs = append(recs, Recommendation{
			Type:     "status_progress",
			Message:  fmt.Sprintf("Earn %d more points to reach %s status", progress.PointsToNext, progress.Next.Name),
			Priority: "high",
		})
	}

	if lastActivity == nil || time.Since(*lastActivity) >= inactivityThreshold {
		recs = append(recs, Recommendation{
			Type:     "activity",
			Message:  "It has been a while since your last activity. Make a purchase or share a post to keep earning points.",
			Priority: "medium",
		})
	}

	if points >= 100 {
		recs = append(recs, Recommendation{
			Type:     "spend",
			Message:  fmt.Sprintf("You have %d points. Use them for a discount on your next purchase.", points),
			Priority: "low",
		})
	}

	return recs
}

// Tiers returns the tier table in ascending order.
func (s *statusService) Tiers() []Tier {
	return s.tiers
}
