package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"bonuspark/internal/crm"
	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/logger"
	"bonuspark/internal/models"
)

// userService translates between external identities and internal user
// records, and gates member creation.
type userService struct {
	db     *gorm.DB
	points PointsServicer
	crm    crm.Syncer
}

// NewUserService creates a new UserServicer. The syncer may be a NopSyncer
// when no CRM integration is configured.
func NewUserService(db *gorm.DB, points PointsServicer, syncer crm.Syncer) UserServicer {
	if syncer == nil {
		syncer = crm.NopSyncer{}
	}
	return &userService{db: db, points: points, crm: syncer}
}

// FindByExternalID resolves an external identity to a user record.
// Absence is not an error: it returns (nil, nil) when no user matches.
func (s *userService) FindByExternalID(externalID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// Create registers a new member and credits the welcome bonus through the
// ledger inside the same transaction, so the balance invariant holds from
// the first row. CRM sync is best-effort and never blocks creation.
func (s *userService) Create(data CreateUserData) (*models.User, error) {
	if data.ExternalID == "" || data.FirstName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "external ID and first name are required")
	}

	existing, err := s.FindByExternalID(data.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrDuplicateUser
	}

	user := &models.User{
		ExternalID:  data.ExternalID,
		FirstName:   data.FirstName,
		LastName:    data.LastName,
		Username:    data.Username,
		VKID:        data.VKID,
		InstagramID: data.InstagramID,
		TelegramID:  data.TelegramID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			// The pre-check above races with the unique index; the loser
			// of a concurrent create lands here.
			if isUniqueViolation(err) {
				return apperrors.ErrDuplicateUser
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if _, err := s.points.AwardForActivityWithDB(tx, user.ID, ActivityWelcome, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload to pick up the welcome credit and derived status.
	if err := s.db.First(user, user.ID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Secondary sync: local persistence is the source of truth, the CRM
	// copy is best-effort. Failure is logged, never propagated.
	if result := s.crm.SyncUser(user); result.Attempted && !result.Synced {
		logger.Get().Warnw("CRM sync failed during user creation",
			"error", result.Err,
			"user_id", user.ID,
			"external_id", user.ExternalID,
		)
	}

	return user, nil
}

// isUniqueViolation recognizes unique-index violations from both stores.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// Update applies the whitelisted profile fields. Fields outside
// UserUpdateFields cannot reach the store by construction.
func (s *userService) Update(userID uint, fields UserUpdateFields) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	updates := make(map[string]interface{})
	if fields.Username != nil {
		updates["username"] = *fields.Username
	}
	if fields.FirstName != nil && *fields.FirstName != "" {
		updates["first_name"] = *fields.FirstName
	}
	if fields.LastName != nil {
		updates["last_name"] = *fields.LastName
	}
	if fields.VKID != nil {
		updates["vk_id"] = *fields.VKID
	}
	if fields.InstagramID != nil {
		updates["instagram_id"] = *fields.InstagramID
	}
	if fields.TelegramID != nil {
		updates["telegram_id"] = *fields.TelegramID
	}

	if len(updates) > 0 {
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.First(&user, user.ID).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return &user, nil
}

// Exists reports whether an external identity resolves to a member.
func (s *userService) Exists(externalID string) (bool, error) {
	user, err := s.FindByExternalID(externalID)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}
