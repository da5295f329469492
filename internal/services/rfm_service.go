package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"bonuspark/internal/cache"
	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/logger"
	"bonuspark/internal/metrics"
	"bonuspark/internal/models"
)

const (
	// A segment row older than this is stale and recomputed on demand.
	segmentFreshness = 7 * 24 * time.Hour

	// Reporting and breakpoint window over computed segment rows.
	segmentWindow = 30 * 24 * time.Hour

	// Empirical quantiles need at least this many data points; below it
	// the fixed fallback breakpoints apply.
	minQuantileSample = 10

	defaultSegmentUsersLimit = 10
	maxSegmentUsersLimit     = 100
)

// breakpoints holds the four cut points dividing each metric's population
// into five scoring bands.
type breakpoints struct {
	recency   [4]int64
	frequency [4]int64
	monetary  [4]int64
}

// fallbackBreakpoints apply while the computed-segment population is too
// small to trust empirical quantiles.
var fallbackBreakpoints = breakpoints{
	recency:   [4]int64{7, 30, 90, 365},
	frequency: [4]int64{1, 2, 5, 10},
	monetary:  [4]int64{100, 500, 1500, 5000},
}

// segmentRule pairs a segment name with its score predicate. Rules are
// evaluated in order and the first match wins; the order is part of the
// contract, not an implementation detail. Predicates are shaped so every
// rule is reachable under that order (e.g. "At Risk" is capped at F<=3 so
// "Cannot Lose Them" behind it can still fire on F>=4).
type segmentRule struct {
	name    string
	matches func(r, f, m int) bool
}

var segmentRules = []segmentRule{
	{"Champions", func(r, f, m int) bool { return r >= 4 && f >= 4 && m >= 4 }},
	{"Loyal Customers", func(r, f, m int) bool { return r >= 3 && f >= 4 && m >= 3 }},
	{"Potential Loyalists", func(r, f, m int) bool { return r >= 4 && f >= 2 && m >= 2 }},
	{"New Customers", func(r, f, m int) bool { return r >= 4 && f <= 2 }},
	{"Promising", func(r, f, m int) bool { return r == 3 && f <= 2 }},
	{"Need Attention", func(r, f, m int) bool { return r >= 2 && r <= 3 && f >= 3 && m >= 3 }},
	{"About to Sleep", func(r, f, m int) bool { return r >= 2 && r <= 3 && f <= 2 }},
	{"At Risk", func(r, f, m int) bool { return r <= 2 && f >= 2 && f <= 3 }},
	{"Cannot Lose Them", func(r, f, m int) bool { return r <= 2 && f >= 4 }},
	// Hibernating is the catch-all; see classify.
}

const segmentHibernating = "Hibernating"

var segmentDefinitions = []SegmentDefinition{
	{"Champions", "Bought recently, buy often, spend the most", "Reward them; they can become ambassadors and early adopters", "#2ecc71", 1},
	{"Loyal Customers", "Buy regularly and respond well to promotions", "Upsell higher-value products; ask for reviews", "#27ae60", 2},
	{"Potential Loyalists", "Recent customers with average frequency", "Offer the membership program and personalized recommendations", "#3498db", 3},
	{"New Customers", "Bought most recently, but only once or twice", "Provide onboarding support and early success", "#9b59b6", 4},
	{"Promising", "Recent shoppers who have not spent much", "Create brand awareness; offer free trials", "#f1c40f", 5},
	{"Need Attention", "Above-average recency and frequency, slipping", "Reactivate with limited-time offers", "#e67e22", 6},
	{"About to Sleep", "Below-average recency and frequency", "Share valuable resources and popular products at a discount", "#d35400", 7},
	{"At Risk", "Spent big and purchased often, but long ago", "Send personalized reactivation campaigns; offer renewals", "#e74c3c", 8},
	{"Cannot Lose Them", "Made the biggest purchases, often, but not recently", "Win them back via renewals or newer products; talk to them", "#c0392b", 9},
	{segmentHibernating, "Last purchase was long ago, few and low-value orders", "Recreate brand value with relevant offers", "#7f8c8d", 10},
}

// rfmService computes and serves Recency/Frequency/Monetary segmentation
// from the purchase ledger. It is the only component writing rfm_segments.
type rfmService struct {
	db    *gorm.DB
	cache *cache.Cache // optional
}

// NewRFMService creates a new RFMServicer. The cache may be nil.
func NewRFMService(db *gorm.DB, c *cache.Cache) RFMServicer {
	return &rfmService{db: db, cache: c}
}

// CalculateRFMForAllUsers recomputes segments for every member with at
// least one purchase. Per-user failures are counted and logged; the batch
// continues. Progress is durable per user, so a rerun is idempotent.
func (s *rfmService) CalculateRFMForAllUsers() (*BatchResult, error) {
	var userIDs []uint
	if err := s.db.Model(&models.PointTransaction{}).
		Where("type = ? AND reason = ?", models.TransactionTypeDebit, models.ReasonPurchase).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := &BatchResult{Total: len(userIDs)}
	for _, userID := range userIDs {
		var user models.User
		if err := s.db.First(&user, userID).Error; err != nil {
			result.Errors++
			logger.Get().Errorw("RFM batch: failed to load user", "error", err, "user_id", userID)
			continue
		}
		if _, err := s.computeForUser(&user); err != nil {
			result.Errors++
			metrics.RFMRuns.WithLabelValues("error").Inc()
			logger.Get().Errorw("RFM batch: computation failed", "error", err, "user_id", userID)
			continue
		}
		result.Processed++
		metrics.RFMRuns.WithLabelValues("ok").Inc()
	}

	s.invalidateSummary()
	logger.Get().Infow("RFM batch finished",
		"processed", result.Processed,
		"errors", result.Errors,
		"total", result.Total,
	)
	return result, nil
}

// CalculateUserRFM recomputes one member's segment. It returns (nil, nil)
// for members with no purchases.
func (s *rfmService) CalculateUserRFM(externalID string) (*models.RFMSegment, error) {
	var user models.User
	if err := s.db.Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.computeForUser(&user)
}

func (s *rfmService) computeForUser(user *models.User) (*models.RFMSegment, error) {
	var purchases []models.PointTransaction
	if err := s.db.Where("user_id = ? AND type = ? AND reason = ?",
		user.ID, models.TransactionTypeDebit, models.ReasonPurchase).
		Order("created_at DESC").
		Find(&purchases).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(purchases) == 0 {
		return nil, nil
	}

	recencyDays := int(time.Since(purchases[0].CreatedAt).Hours() / 24)
	frequency := len(purchases)
	var monetary int64
	for i := range purchases {
		amount := purchases[i].Amount
		if amount < 0 {
			amount = -amount
		}
		monetary += amount
	}

	bp, err := s.breakpoints()
	if err != nil {
		return nil, err
	}

	segment := &models.RFMSegment{
		UserID:         user.ID,
		ExternalID:     user.ExternalID,
		RecencyScore:   scoreInverse(int64(recencyDays), bp.recency),
		FrequencyScore: scoreDirect(int64(frequency), bp.frequency),
		MonetaryScore:  scoreDirect(monetary, bp.monetary),
		RecencyDays:    recencyDays,
		FrequencyCount: frequency,
		MonetaryValue:  monetary,
		CalculatedAt:   time.Now(),
	}
	segment.Segment = classify(segment.RecencyScore, segment.FrequencyScore, segment.MonetaryScore)

	if err := s.upsert(segment); err != nil {
		return nil, err
	}
	return segment, nil
}

// breakpoints returns empirical quantiles over the recent computed-segment
// population when it is large enough, else the fixed fallbacks. The pooling
// is population-wide on purpose: score bands follow the customer base.
func (s *rfmService) breakpoints() (breakpoints, error) {
	var rows []models.RFMSegment
	since := time.Now().Add(-segmentWindow)
	if err := s.db.Where("calculated_at >= ?", since).
		Select("recency_days, frequency_count, monetary_value").
		Find(&rows).Error; err != nil {
		return breakpoints{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(rows) < minQuantileSample {
		return fallbackBreakpoints, nil
	}

	recency := make([]int64, len(rows))
	frequency := make([]int64, len(rows))
	monetary := make([]int64, len(rows))
	for i := range rows {
		recency[i] = int64(rows[i].RecencyDays)
		frequency[i] = int64(rows[i].FrequencyCount)
		monetary[i] = rows[i].MonetaryValue
	}

	return breakpoints{
		recency:   quantilesByIndex(recency),
		frequency: quantilesByIndex(frequency),
		monetary:  quantilesByIndex(monetary),
	}, nil
}

// quantilesByIndex picks the four cut points by index over the sorted
// slice: floor(n*0.25), floor(n*0.5), floor(n*0.75), floor(n*0.9).
// No interpolation.
func quantilesByIndex(values []int64) [4]int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	return [4]int64{
		sorted[n*25/100],
		sorted[n*50/100],
		sorted[n*75/100],
		sorted[n*90/100],
	}
}

// scoreInverse scores recency: fewer days since the last purchase is
// better. Boundary ties round toward the lower band's score.
func scoreInverse(value int64, q [4]int64) int {
	switch {
	case value <= q[0]:
		return 5
	case value <= q[1]:
		return 4
	case value <= q[2]:
		return 3
	case value <= q[3]:
		return 2
	default:
		return 1
	}
}

// scoreDirect scores frequency and monetary: more is better.
func scoreDirect(value int64, q [4]int64) int {
	switch {
	case value >= q[3]:
		return 5
	case value >= q[2]:
		return 4
	case value >= q[1]:
		return 3
	case value >= q[0]:
		return 2
	default:
		return 1
	}
}

// classify runs the ordered rule list; Hibernating is the catch-all.
func classify(r, f, m int) string {
	for _, rule := range segmentRules {
		if rule.matches(r, f, m) {
			return rule.name
		}
	}
	return segmentHibernating
}

// upsert replaces the member's segment row.
func (s *rfmService) upsert(segment *models.RFMSegment) error {
	var existing models.RFMSegment
	err := s.db.Where("user_id = ?", segment.UserID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.db.Create(segment).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	segment.ID = existing.ID
	if err := s.db.Model(&existing).Updates(map[string]interface{}{
		"external_id":     segment.ExternalID,
		"recency_score":   segment.RecencyScore,
		"frequency_score": segment.FrequencyScore,
		"monetary_score":  segment.MonetaryScore,
		"segment":         segment.Segment,
		"recency_days":    segment.RecencyDays,
		"frequency_count": segment.FrequencyCount,
		"monetary_value":  segment.MonetaryValue,
		"calculated_at":   segment.CalculatedAt,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetUserRFM returns the member's segment, recomputing transparently when
// the cached row is absent or older than the freshness window.
func (s *rfmService) GetUserRFM(externalID string) (*models.RFMSegment, error) {
	var segment models.RFMSegment
	err := s.db.Where("external_id = ?", externalID).First(&segment).Error
	if err == nil && time.Since(segment.CalculatedAt) < segmentFreshness {
		return &segment, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.CalculateUserRFM(externalID)
}

// GetSegmentsSummary aggregates rows computed within the reporting window:
// per-segment count, metric averages, and share of the total.
func (s *rfmService) GetSegmentsSummary() ([]SegmentSummary, error) {
	if s.cache != nil {
		var cached []SegmentSummary
		ok, err := s.cache.GetSummary(context.Background(), &cached)
		if err != nil {
			logger.Get().Warnw("summary cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	since := time.Now().Add(-segmentWindow)
	var summaries []SegmentSummary
	if err := s.db.Model(&models.RFMSegment{}).
		Select("segment, COUNT(*) AS count, AVG(recency_days) AS avg_recency_days, AVG(frequency_count) AS avg_frequency, AVG(monetary_value) AS avg_monetary").
		Where("calculated_at >= ?", since).
		Group("segment").
		Order("count DESC").
		Scan(&summaries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var total int64
	for i := range summaries {
		total += summaries[i].Count
	}
	if total > 0 {
		for i := range summaries {
			summaries[i].Percentage = int((summaries[i].Count*100 + total/2) / total)
		}
	}

	if s.cache != nil {
		if err := s.cache.SetSummary(context.Background(), summaries); err != nil {
			logger.Get().Warnw("summary cache write failed", "error", err)
		}
	}
	return summaries, nil
}

// GetSegmentUsers returns the top members of a segment by monetary value.
func (s *rfmService) GetSegmentUsers(segmentName string, limit int) ([]SegmentUser, error) {
	if !isKnownSegment(segmentName) {
		return nil, apperrors.WithMessage(apperrors.ErrUnknownSegment, "Unknown segment name: "+segmentName)
	}
	if limit <= 0 {
		limit = defaultSegmentUsersLimit
	}
	if limit > maxSegmentUsersLimit {
		limit = maxSegmentUsersLimit
	}

	var users []SegmentUser
	if err := s.db.Table("rfm_segments").
		Select("rfm_segments.user_id, rfm_segments.external_id, users.username, users.first_name, users.last_name, rfm_segments.recency_score, rfm_segments.frequency_score, rfm_segments.monetary_score, rfm_segments.monetary_value").
		Joins("JOIN users ON users.id = rfm_segments.user_id AND users.deleted_at IS NULL").
		Where("rfm_segments.segment = ?", segmentName).
		Order("rfm_segments.monetary_value DESC").
		Limit(limit).
		Scan(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}

// GetAllSegments returns the static segment definition table.
func (s *rfmService) GetAllSegments() []SegmentDefinition {
	return segmentDefinitions
}

func (s *rfmService) invalidateSummary() {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSummary(context.Background()); err != nil {
		logger.Get().Warnw("summary cache invalidation failed", "error", err)
	}
}

func isKnownSegment(name string) bool {
	for _, def := range segmentDefinitions {
		if def.Name == name {
			return true
		}
	}
	return false
}
