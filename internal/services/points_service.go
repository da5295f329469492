package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"bonuspark/internal/cache"
	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/logger"
	"bonuspark/internal/metrics"
	"bonuspark/internal/models"
	"bonuspark/internal/notify"
	"bonuspark/internal/pagination"
)

// pointsService is the sole authority over users.points and the
// point_transactions ledger.
type pointsService struct {
	db       *gorm.DB
	status   StatusServicer
	awards   AwardConfig
	cache    *cache.Cache // optional
	notifier notify.Notifier
}

// NewPointsService creates a new PointsServicer. The cache may be nil.
func NewPointsService(db *gorm.DB, status StatusServicer, awards AwardConfig, c *cache.Cache, notifier notify.Notifier) PointsServicer {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &pointsService{
		db:       db,
		status:   status,
		awards:   awards,
		cache:    c,
		notifier: notifier,
	}
}

// AddPoints atomically increments a user's balance and records a credit row.
func (s *pointsService) AddPoints(userID uint, amount int64, reason string, metadata models.Metadata) (*MutationResult, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	var (
		result MutationResult
		ptx    *models.PointTransaction
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		ptx, txErr = s.creditWithDB(tx, userID, amount, reason, metadata)
		if txErr != nil {
			return txErr
		}
		balance, txErr := s.balanceWithDB(tx, userID)
		if txErr != nil {
			return txErr
		}
		result.Balance = balance
		result.TransactionID = ptx.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PointsCredited.Inc()
	s.invalidateBalance(userID)
	result.Upgrade = s.status.CheckStatusUpgrade(result.Balance-amount, result.Balance)
	if result.Upgrade != nil {
		s.notifyUpgrade(userID, result.Upgrade)
	}
	return &result, nil
}

// DeductPoints atomically decrements a user's balance and records a debit
// row. The decrement is guarded so that two concurrent debits can never
// overdraw the balance.
func (s *pointsService) DeductPoints(userID uint, amount int64, reason string, metadata models.Metadata) (*MutationResult, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	var result MutationResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ptx, txErr := s.debitWithDB(tx, userID, amount, reason, metadata)
		if txErr != nil {
			return txErr
		}
		balance, txErr := s.balanceWithDB(tx, userID)
		if txErr != nil {
			return txErr
		}
		result.Balance = balance
		result.TransactionID = ptx.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PointsDebited.Inc()
	s.invalidateBalance(userID)
	return &result, nil
}

// creditWithDB applies a credit inside a caller-owned transaction.
func (s *pointsService) creditWithDB(tx *gorm.DB, userID uint, amount int64, reason string, metadata models.Metadata) (*models.PointTransaction, error) {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("points", gorm.Expr("points + ?", amount))
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrUserNotFound
	}

	ptx := &models.PointTransaction{
		UserID:   userID,
		Type:     models.TransactionTypeCredit,
		Amount:   amount,
		Reason:   reason,
		Metadata: metadata,
	}
	if err := tx.Create(ptx).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.refreshStatusWithDB(tx, userID); err != nil {
		return nil, err
	}
	return ptx, nil
}

// debitWithDB applies a debit inside a caller-owned transaction. The UPDATE
// carries the balance guard; zero rows affected means either a missing user
// or an insufficient balance, distinguished by a follow-up read.
func (s *pointsService) debitWithDB(tx *gorm.DB, userID uint, amount int64, reason string, metadata models.Metadata) (*models.PointTransaction, error) {
	res := tx.Model(&models.User{}).
		Where("id = ? AND points >= ?", userID, amount).
		Update("points", gorm.Expr("points - ?", amount))
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrUserNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil, apperrors.WithDetails(apperrors.ErrInsufficientBalance, map[string]any{
			"balance":   user.Points,
			"shortfall": amount - user.Points,
		})
	}

	ptx := &models.PointTransaction{
		UserID:   userID,
		Type:     models.TransactionTypeDebit,
		Amount:   amount,
		Reason:   reason,
		Metadata: metadata,
	}
	if err := tx.Create(ptx).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.refreshStatusWithDB(tx, userID); err != nil {
		return nil, err
	}
	return ptx, nil
}

// refreshStatusWithDB re-derives the cached status column from the balance.
func (s *pointsService) refreshStatusWithDB(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	tier := s.status.CalculateStatus(user.Points)
	if user.Status == tier.Key {
		return nil
	}
	if err := tx.Model(&user).Update("status", tier.Key).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *pointsService) balanceWithDB(tx *gorm.DB, userID uint) (int64, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrUserNotFound
		}
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user.Points, nil
}

// GetBalance reads a user's balance, through the cache when configured.
func (s *pointsService) GetBalance(userID uint) (int64, error) {
	if s.cache != nil {
		balance, ok, err := s.cache.GetBalance(context.Background(), userID)
		if err != nil {
			logger.Get().Warnw("balance cache read failed", "error", err, "user_id", userID)
		} else if ok {
			return balance, nil
		}
	}

	balance, err := s.balanceWithDB(s.db, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetBalance(context.Background(), userID, balance); err != nil {
			logger.Get().Warnw("balance cache write failed", "error", err, "user_id", userID)
		}
	}
	return balance, nil
}

// GetHistory returns a user's transactions newest-first.
func (s *pointsService) GetHistory(userID uint, window pagination.Window) ([]models.PointTransaction, error) {
	if _, err := s.balanceWithDB(s.db, userID); err != nil {
		return nil, err
	}

	window.Normalize()

	var transactions []models.PointTransaction
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Scopes(pagination.Scope(window)).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}

// AwardPointsForActivity credits points for a coded activity. Cashback
// awards derive their amount from the buyer's current tier rate.
func (s *pointsService) AwardPointsForActivity(userID uint, activity ActivityType, metadata models.Metadata) (*MutationResult, error) {
	amount, reason, err := s.resolveAward(s.db, userID, activity, metadata)
	if err != nil {
		return nil, err
	}
	return s.AddPoints(userID, amount, reason, withActivityType(metadata, activity))
}

// AwardForActivityWithDB composes an award into a caller-owned transaction.
func (s *pointsService) AwardForActivityWithDB(tx *gorm.DB, userID uint, activity ActivityType, metadata models.Metadata) (*models.PointTransaction, error) {
	amount, reason, err := s.resolveAward(tx, userID, activity, metadata)
	if err != nil {
		return nil, err
	}
	return s.creditWithDB(tx, userID, amount, reason, withActivityType(metadata, activity))
}

// withActivityType annotates the award metadata on a copy so the caller's
// map is never mutated.
func withActivityType(metadata models.Metadata, activity ActivityType) models.Metadata {
	annotated := make(models.Metadata, len(metadata)+1)
	for k, v := range metadata {
		annotated[k] = v
	}
	annotated[models.MetaActivityType] = string(activity)
	return annotated
}

// resolveAward maps an activity code to a concrete amount and reason.
func (s *pointsService) resolveAward(tx *gorm.DB, userID uint, activity ActivityType, metadata models.Metadata) (int64, string, error) {
	reward, ok := s.awards[activity]
	if !ok {
		return 0, "", apperrors.WithMessage(apperrors.ErrUnknownActivityType, "Unknown activity type: "+string(activity))
	}

	amount := reward.Points
	if activity == ActivityPurchaseCashback {
		purchaseAmount, ok := metadataInt64(metadata, models.MetaPurchaseAmount)
		if !ok || purchaseAmount <= 0 {
			return 0, "", apperrors.WithMessage(apperrors.ErrInvalidInput, "purchase_amount metadata is required for cashback awards")
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, "", apperrors.ErrUserNotFound
			}
			return 0, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		tier := s.status.CalculateStatus(user.Points)
		amount = purchaseAmount * tier.CashbackPct / 100
	}

	if amount <= 0 {
		return 0, "", apperrors.WithMessage(apperrors.ErrInvalidAmount, "Activity resolves to a non-positive award")
	}
	return amount, reward.Reason, nil
}

// TransferPoints moves points between two members as one atomic unit.
// Both ledger rows carry a cross-reference to the counterpart user.
func (s *pointsService) TransferPoints(fromUserID, toUserID uint, amount int64, reason string) (*TransferResult, error) {
	if fromUserID == toUserID {
		return nil, apperrors.ErrSameUserTransfer
	}
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	var result TransferResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		debit, txErr := s.debitWithDB(tx, fromUserID, amount, reason,
			models.Metadata{models.MetaCounterpartUserID: toUserID})
		if txErr != nil {
			return txErr
		}
		credit, txErr := s.creditWithDB(tx, toUserID, amount, reason,
			models.Metadata{models.MetaCounterpartUserID: fromUserID})
		if txErr != nil {
			return txErr
		}

		fromBalance, txErr := s.balanceWithDB(tx, fromUserID)
		if txErr != nil {
			return txErr
		}
		toBalance, txErr := s.balanceWithDB(tx, toUserID)
		if txErr != nil {
			return txErr
		}

		result = TransferResult{
			FromBalance:         fromBalance,
			ToBalance:           toBalance,
			DebitTransactionID:  debit.ID,
			CreditTransactionID: credit.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PointsTransferred.Inc()
	s.invalidateBalance(fromUserID)
	s.invalidateBalance(toUserID)
	return &result, nil
}

// GetStats returns aggregate ledger totals and the balance distribution
// among members holding points.
func (s *pointsService) GetStats() (*LedgerStats, error) {
	stats := &LedgerStats{}

	if err := s.db.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0)", models.TransactionTypeCredit).
		Scan(&stats.TotalCredited).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0)", models.TransactionTypeDebit).
		Scan(&stats.TotalDebited).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.PointTransaction{}).
		Count(&stats.TransactionCount).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var dist struct {
		Avg float64
		Min int64
		Max int64
	}
	if err := s.db.Model(&models.User{}).
		Where("points > 0").
		Select("COALESCE(AVG(points), 0) AS avg, COALESCE(MIN(points), 0) AS min, COALESCE(MAX(points), 0) AS max").
		Scan(&dist).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	stats.AvgBalance = dist.Avg
	stats.MinBalance = dist.Min
	stats.MaxBalance = dist.Max

	return stats, nil
}

func (s *pointsService) invalidateBalance(userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBalance(context.Background(), userID); err != nil {
		logger.Get().Warnw("balance cache invalidation failed", "error", err, "user_id", userID)
	}
}

func (s *pointsService) notifyUpgrade(userID uint, upgrade *StatusUpgrade) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		logger.Get().Warnw("failed to load user for upgrade notification", "error", err, "user_id", userID)
		return
	}
	s.notifier.StatusUpgrade(&user, upgrade.Message)
}

// metadataInt64 reads an integer value from a metadata bag, tolerating the
// float64 that JSON round-trips produce.
func metadataInt64(metadata models.Metadata, key string) (int64, bool) {
	if metadata == nil {
		return 0, false
	}
	switch v := metadata[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
