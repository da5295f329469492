package services

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"bonuspark/internal/crm"
	"bonuspark/internal/models"
	"bonuspark/internal/testutil"
)

// recordingSyncer captures sync attempts and returns a canned result.
type recordingSyncer struct {
	result crm.SyncResult
	users  []string
}

func (s *recordingSyncer) SyncUser(user *models.User) crm.SyncResult {
	s.users = append(s.users, user.ExternalID)
	return s.result
}

func newUserService(db *gorm.DB, syncer crm.Syncer) UserServicer {
	return NewUserService(db, newPointsService(db), syncer)
}

func TestFindByExternalID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)
		created := testutil.CreateTestUser(t, db)

		user, err := svc.FindByExternalID(created.ExternalID)
		testutil.AssertNoError(t, err)
		if user == nil || user.ID != created.ID {
			t.Fatalf("expected user %d, got %v", created.ID, user)
		}
	})

	t.Run("absent_is_not_an_error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)

		user, err := svc.FindByExternalID("nobody")
		testutil.AssertNoError(t, err)
		if user != nil {
			t.Errorf("expected nil for an unknown external ID, got %v", user)
		}
	})
}

func TestCreateUser(t *testing.T) {
	t.Run("welcome_bonus_credited_atomically", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)

		user, err := svc.Create(CreateUserData{ExternalID: "tg-1001", FirstName: "Alice"})
		testutil.AssertNoError(t, err)

		if user.Points != 100 {
			t.Errorf("expected 100 welcome points, got %d", user.Points)
		}
		if user.Status != "bronze" {
			t.Errorf("expected bronze status, got %s", user.Status)
		}

		var tx models.PointTransaction
		if err := db.Where("user_id = ?", user.ID).First(&tx).Error; err != nil {
			t.Fatalf("expected a welcome ledger row: %v", err)
		}
		if tx.Type != models.TransactionTypeCredit || tx.Amount != 100 {
			t.Errorf("expected a 100 point credit, got %s %d", tx.Type, tx.Amount)
		}
		if tx.Metadata[models.MetaActivityType] != string(ActivityWelcome) {
			t.Errorf("expected welcome activity in metadata, got %v", tx.Metadata)
		}
	})

	t.Run("missing_required_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)

		_, err := svc.Create(CreateUserData{ExternalID: "tg-1002"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = svc.Create(CreateUserData{FirstName: "Bob"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("duplicate_external_id", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)

		_, err := svc.Create(CreateUserData{ExternalID: "tg-1003", FirstName: "Alice"})
		testutil.AssertNoError(t, err)

		_, err = svc.Create(CreateUserData{ExternalID: "tg-1003", FirstName: "Mallory"})
		testutil.AssertAppError(t, err, "DUPLICATE_USER")
	})

	// A soft-deleted member is invisible to the pre-check but still holds
	// the unique index slot, so the insert itself fires the constraint.
	// That path must surface as a duplicate, the same as losing a race
	// against a concurrent create.
	t.Run("unique_index_violation_reported_as_duplicate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)

		user, err := svc.Create(CreateUserData{ExternalID: "tg-1009", FirstName: "Alice"})
		testutil.AssertNoError(t, err)
		if err := db.Delete(user).Error; err != nil {
			t.Fatalf("failed to soft-delete user: %v", err)
		}

		_, err = svc.Create(CreateUserData{ExternalID: "tg-1009", FirstName: "Mallory"})
		testutil.AssertAppError(t, err, "DUPLICATE_USER")
	})

	t.Run("crm_failure_does_not_block_creation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		syncer := &recordingSyncer{result: crm.SyncResult{Attempted: true, Synced: false, Err: errors.New("crm down")}}
		svc := newUserService(db, syncer)

		user, err := svc.Create(CreateUserData{ExternalID: "tg-1004", FirstName: "Alice"})
		testutil.AssertNoError(t, err)
		if user == nil || user.ID == 0 {
			t.Fatal("expected user to be created despite CRM failure")
		}
		if len(syncer.users) != 1 || syncer.users[0] != "tg-1004" {
			t.Errorf("expected one sync attempt for tg-1004, got %v", syncer.users)
		}
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("whitelisted_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)
		user := testutil.CreateTestUser(t, db)

		username := "newname"
		tgID := "555001"
		updated, err := svc.Update(user.ID, UserUpdateFields{Username: &username, TelegramID: &tgID})
		testutil.AssertNoError(t, err)

		if updated.Username != "newname" {
			t.Errorf("expected username newname, got %s", updated.Username)
		}
		if updated.TelegramID == nil || *updated.TelegramID != "555001" {
			t.Errorf("expected telegram ID 555001, got %v", updated.TelegramID)
		}
		if updated.FirstName != user.FirstName {
			t.Errorf("expected first name unchanged, got %s", updated.FirstName)
		}
	})

	t.Run("empty_first_name_ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)
		user := testutil.CreateTestUser(t, db)

		empty := ""
		updated, err := svc.Update(user.ID, UserUpdateFields{FirstName: &empty})
		testutil.AssertNoError(t, err)
		if updated.FirstName != user.FirstName {
			t.Errorf("expected first name unchanged, got %q", updated.FirstName)
		}
	})

	t.Run("missing_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newUserService(db, nil)

		name := "ghost"
		_, err := svc.Update(9999, UserUpdateFields{Username: &name})
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestUserExists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newUserService(db, nil)
	user := testutil.CreateTestUser(t, db)

	exists, err := svc.Exists(user.ExternalID)
	testutil.AssertNoError(t, err)
	if !exists {
		t.Error("expected registered member to exist")
	}

	exists, err = svc.Exists("nobody")
	testutil.AssertNoError(t, err)
	if exists {
		t.Error("expected unknown external ID to not exist")
	}
}
