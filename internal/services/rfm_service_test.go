package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"bonuspark/internal/models"
	"bonuspark/internal/testutil"
)

func newRFMService(db *gorm.DB) RFMServicer {
	return NewRFMService(db, nil)
}

func daysAgo(n int) time.Time {
	return time.Now().Add(-time.Duration(n) * 24 * time.Hour)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		r, f, m int
		want    string
	}{
		{5, 5, 5, "Champions"},
		{4, 4, 4, "Champions"},
		{3, 4, 3, "Loyal Customers"},
		{4, 2, 2, "Potential Loyalists"},
		{4, 1, 1, "New Customers"},
		{5, 2, 1, "New Customers"},
		{3, 1, 1, "Promising"},
		{2, 3, 3, "Need Attention"},
		{3, 3, 4, "Need Attention"},
		{2, 1, 1, "About to Sleep"},
		{1, 3, 5, "At Risk"},
		{2, 2, 1, "At Risk"},
		{1, 5, 5, "Cannot Lose Them"},
		{1, 4, 2, "Cannot Lose Them"},
		{1, 1, 1, "Hibernating"},
	}
	for _, c := range cases {
		if got := classify(c.r, c.f, c.m); got != c.want {
			t.Errorf("classify(%d,%d,%d) = %s, want %s", c.r, c.f, c.m, got, c.want)
		}
	}
}

func TestQuantilesByIndex(t *testing.T) {
	// Indexes over 10 sorted values: 2, 5, 7, 9.
	values := []int64{100, 90, 80, 70, 60, 50, 40, 30, 20, 10}
	q := quantilesByIndex(values)

	want := [4]int64{30, 60, 80, 100}
	if q != want {
		t.Errorf("expected %v, got %v", want, q)
	}
}

func TestCalculateUserRFM(t *testing.T) {
	t.Run("fallback_scoring", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)
		user := testutil.CreateTestUser(t, db)

		// Five purchases totaling 6000, the latest 3 days ago.
		testutil.CreateTestPurchase(t, db, user.ID, 1500, daysAgo(3))
		testutil.CreateTestPurchase(t, db, user.ID, 1200, daysAgo(20))
		testutil.CreateTestPurchase(t, db, user.ID, 1100, daysAgo(45))
		testutil.CreateTestPurchase(t, db, user.ID, 1100, daysAgo(70))
		testutil.CreateTestPurchase(t, db, user.ID, 1100, daysAgo(95))

		segment, err := svc.CalculateUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)

		if segment.RecencyScore != 5 {
			t.Errorf("expected R 5 (3 days <= 7), got %d", segment.RecencyScore)
		}
		if segment.FrequencyScore != 4 {
			t.Errorf("expected F 4 (5 purchases in [5,10)), got %d", segment.FrequencyScore)
		}
		if segment.MonetaryScore != 5 {
			t.Errorf("expected M 5 (6000 >= 5000), got %d", segment.MonetaryScore)
		}
		if segment.Segment != "Champions" {
			t.Errorf("expected Champions, got %s", segment.Segment)
		}
		if segment.RecencyDays != 3 {
			t.Errorf("expected 3 recency days, got %d", segment.RecencyDays)
		}
		if segment.FrequencyCount != 5 {
			t.Errorf("expected frequency 5, got %d", segment.FrequencyCount)
		}
		if segment.MonetaryValue != 6000 {
			t.Errorf("expected monetary 6000, got %d", segment.MonetaryValue)
		}
	})

	t.Run("non_purchaser", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)
		user := testutil.CreateTestUser(t, db)

		segment, err := svc.CalculateUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)
		if segment != nil {
			t.Errorf("expected nil for a member without purchases, got %v", segment)
		}
	})

	t.Run("only_purchases_count", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)
		user := testutil.CreateTestUser(t, db)

		// Credits and non-purchase debits are invisible to segmentation.
		db.Create(&models.PointTransaction{
			UserID: user.ID, Type: models.TransactionTypeCredit, Amount: 500, Reason: "promo",
		})
		db.Create(&models.PointTransaction{
			UserID: user.ID, Type: models.TransactionTypeDebit, Amount: 200, Reason: "gift",
		})

		segment, err := svc.CalculateUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)
		if segment != nil {
			t.Errorf("expected nil without purchase rows, got %v", segment)
		}
	})

	t.Run("missing_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)

		_, err := svc.CalculateUserRFM("nobody")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("idempotent_upsert", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestPurchase(t, db, user.ID, 1000, daysAgo(5))

		first, err := svc.CalculateUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)
		second, err := svc.CalculateUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)

		if first.Segment != second.Segment {
			t.Errorf("expected stable segment, got %s then %s", first.Segment, second.Segment)
		}

		var count int64
		db.Model(&models.RFMSegment{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 1 {
			t.Errorf("expected one segment row per user, got %d", count)
		}
	})
}

func TestGetUserRFM(t *testing.T) {
	t.Run("fresh_row_returned", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)
		user := testutil.CreateTestUser(t, db)
		seeded := testutil.CreateTestSegment(t, db, user.ID, user.ExternalID, "Champions", 5, 5, 5, time.Now().Add(-time.Hour))

		segment, err := svc.GetUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)
		if segment.ID != seeded.ID {
			t.Errorf("expected the cached row, got a different one")
		}
		if segment.Segment != "Champions" {
			t.Errorf("expected Champions, got %s", segment.Segment)
		}
	})

	t.Run("stale_row_recomputed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestSegment(t, db, user.ID, user.ExternalID, "Hibernating", 1, 1, 1, daysAgo(10))
		testutil.CreateTestPurchase(t, db, user.ID, 6000, daysAgo(2))

		segment, err := svc.GetUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)
		if segment.Segment == "Hibernating" {
			t.Errorf("expected recomputation to replace the stale segment")
		}
		if time.Since(segment.CalculatedAt) > time.Minute {
			t.Error("expected a fresh calculation timestamp")
		}
	})

	t.Run("no_row_no_purchases", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)
		user := testutil.CreateTestUser(t, db)

		segment, err := svc.GetUserRFM(user.ExternalID)
		testutil.AssertNoError(t, err)
		if segment != nil {
			t.Errorf("expected nil for an unsegmentable member, got %v", segment)
		}
	})
}

func TestCalculateRFMForAllUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newRFMService(db)

	buyers := make([]*models.User, 3)
	for i := range buyers {
		buyers[i] = testutil.CreateTestUser(t, db)
		testutil.CreateTestPurchase(t, db, buyers[i].ID, int64(500*(i+1)), daysAgo(i*10+1))
	}
	testutil.CreateTestUser(t, db) // never purchased, not part of the batch

	result, err := svc.CalculateRFMForAllUsers()
	testutil.AssertNoError(t, err)

	if result.Total != 3 {
		t.Errorf("expected 3 users in the batch, got %d", result.Total)
	}
	if result.Processed != 3 {
		t.Errorf("expected 3 processed, got %d", result.Processed)
	}
	if result.Errors != 0 {
		t.Errorf("expected 0 errors, got %d", result.Errors)
	}

	var count int64
	db.Model(&models.RFMSegment{}).Count(&count)
	if count != 3 {
		t.Errorf("expected 3 segment rows, got %d", count)
	}
}

func TestGetSegmentsSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newRFMService(db)

	for i := 0; i < 3; i++ {
		u := testutil.CreateTestUser(t, db)
		testutil.CreateTestSegment(t, db, u.ID, u.ExternalID, "Champions", 5, 5, 5, daysAgo(1))
	}
	u := testutil.CreateTestUser(t, db)
	testutil.CreateTestSegment(t, db, u.ID, u.ExternalID, "Hibernating", 1, 1, 1, daysAgo(1))

	// Outside the reporting window, must not be counted.
	old := testutil.CreateTestUser(t, db)
	testutil.CreateTestSegment(t, db, old.ID, old.ExternalID, "Champions", 5, 5, 5, daysAgo(40))

	summaries, err := svc.GetSegmentsSummary()
	testutil.AssertNoError(t, err)

	if len(summaries) != 2 {
		t.Fatalf("expected 2 segments in summary, got %d", len(summaries))
	}

	var totalPct int
	for _, s := range summaries {
		totalPct += s.Percentage
		switch s.Segment {
		case "Champions":
			if s.Count != 3 {
				t.Errorf("expected 3 Champions, got %d", s.Count)
			}
			if s.Percentage != 75 {
				t.Errorf("expected 75%%, got %d%%", s.Percentage)
			}
		case "Hibernating":
			if s.Count != 1 {
				t.Errorf("expected 1 Hibernating, got %d", s.Count)
			}
		default:
			t.Errorf("unexpected segment %s", s.Segment)
		}
	}
	if totalPct != 100 {
		t.Errorf("expected percentages to total 100, got %d", totalPct)
	}
}

func TestGetSegmentUsers(t *testing.T) {
	t.Run("ordered_by_monetary", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)

		low := testutil.CreateTestUser(t, db)
		testutil.CreateTestSegment(t, db, low.ID, low.ExternalID, "Champions", 5, 5, 4, daysAgo(1))
		high := testutil.CreateTestUser(t, db)
		testutil.CreateTestSegment(t, db, high.ID, high.ExternalID, "Champions", 5, 5, 5, daysAgo(1))

		users, err := svc.GetSegmentUsers("Champions", 10)
		testutil.AssertNoError(t, err)

		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}
		if users[0].UserID != high.ID {
			t.Errorf("expected highest monetary value first, got user %d", users[0].UserID)
		}
		if users[0].Username == "" {
			t.Error("expected display fields to be joined in")
		}
	})

	t.Run("limit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)

		for i := 0; i < 3; i++ {
			u := testutil.CreateTestUser(t, db)
			testutil.CreateTestSegment(t, db, u.ID, u.ExternalID, "Promising", 3, 1, 1, daysAgo(1))
		}

		users, err := svc.GetSegmentUsers("Promising", 2)
		testutil.AssertNoError(t, err)
		if len(users) != 2 {
			t.Errorf("expected 2 users with limit 2, got %d", len(users))
		}
	})

	t.Run("unknown_segment", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newRFMService(db)

		_, err := svc.GetSegmentUsers("Whales", 10)
		testutil.AssertAppError(t, err, "UNKNOWN_SEGMENT")
	})
}

func TestGetAllSegments(t *testing.T) {
	svc := newRFMService(nil)
	segments := svc.GetAllSegments()

	if len(segments) != 10 {
		t.Fatalf("expected 10 segment definitions, got %d", len(segments))
	}
	names := make(map[string]bool, len(segments))
	for _, s := range segments {
		names[s.Name] = true
		if s.Strategy == "" || s.Description == "" {
			t.Errorf("expected strategy and description for %s", s.Name)
		}
	}
	for _, rule := range segmentRules {
		if !names[rule.name] {
			t.Errorf("rule segment %s missing from definitions", rule.name)
		}
	}
	if !names["Hibernating"] {
		t.Error("expected the Hibernating catch-all in the definitions")
	}
}
