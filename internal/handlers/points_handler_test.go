package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/models"
	"bonuspark/internal/pagination"
	"bonuspark/internal/services"
	"bonuspark/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// --- shared test helpers ---

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v (%s)", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, body map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected an error object, got %v", body)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %s, got %v", code, errObj["code"])
	}
}

// --- mock services ---

type mockPointsService struct {
	addPointsFn    func(userID uint, amount int64, reason string, metadata models.Metadata) (*services.MutationResult, error)
	deductPointsFn func(userID uint, amount int64, reason string, metadata models.Metadata) (*services.MutationResult, error)
	transferFn     func(fromUserID, toUserID uint, amount int64, reason string) (*services.TransferResult, error)
	awardFn        func(userID uint, activity services.ActivityType, metadata models.Metadata) (*services.MutationResult, error)
	getBalanceFn   func(userID uint) (int64, error)
}

var _ services.PointsServicer = (*mockPointsService)(nil)

func (m *mockPointsService) AddPoints(userID uint, amount int64, reason string, metadata models.Metadata) (*services.MutationResult, error) {
	if m.addPointsFn != nil {
		return m.addPointsFn(userID, amount, reason, metadata)
	}
	return &services.MutationResult{}, nil
}

func (m *mockPointsService) DeductPoints(userID uint, amount int64, reason string, metadata models.Metadata) (*services.MutationResult, error) {
	if m.deductPointsFn != nil {
		return m.deductPointsFn(userID, amount, reason, metadata)
	}
	return &services.MutationResult{}, nil
}

func (m *mockPointsService) GetBalance(userID uint) (int64, error) {
	if m.getBalanceFn != nil {
		return m.getBalanceFn(userID)
	}
	return 0, nil
}

func (m *mockPointsService) GetHistory(userID uint, window pagination.Window) ([]models.PointTransaction, error) {
	return []models.PointTransaction{}, nil
}

func (m *mockPointsService) AwardPointsForActivity(userID uint, activity services.ActivityType, metadata models.Metadata) (*services.MutationResult, error) {
	if m.awardFn != nil {
		return m.awardFn(userID, activity, metadata)
	}
	return &services.MutationResult{}, nil
}

func (m *mockPointsService) TransferPoints(fromUserID, toUserID uint, amount int64, reason string) (*services.TransferResult, error) {
	if m.transferFn != nil {
		return m.transferFn(fromUserID, toUserID, amount, reason)
	}
	return &services.TransferResult{}, nil
}

func (m *mockPointsService) GetStats() (*services.LedgerStats, error) {
	return &services.LedgerStats{}, nil
}

func (m *mockPointsService) AwardForActivityWithDB(tx *gorm.DB, userID uint, activity services.ActivityType, metadata models.Metadata) (*models.PointTransaction, error) {
	return &models.PointTransaction{}, nil
}

type mockAuditService struct {
	entries int
}

var _ services.AuditServicer = (*mockAuditService)(nil)

func (m *mockAuditService) Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]any) {
	m.entries++
}

// --- router setup ---

func setupPointsRouter(handler *PointsHandler) *gin.Engine {
	r := gin.New()
	r.POST("/points/credit", handler.CreditPoints)
	r.POST("/points/debit", handler.DebitPoints)
	r.POST("/points/transfer", handler.TransferPoints)
	r.POST("/points/activity", handler.AwardActivity)
	r.GET("/users/:id/balance", handler.GetBalance)
	return r
}

// --- tests ---

func TestPointsHandler_CreditPoints(t *testing.T) {
	t.Run("returns_200_with_result", func(t *testing.T) {
		svc := &mockPointsService{
			addPointsFn: func(userID uint, amount int64, reason string, _ models.Metadata) (*services.MutationResult, error) {
				return &services.MutationResult{Balance: 150, TransactionID: 7}, nil
			},
		}
		audit := &mockAuditService{}
		handler := NewPointsHandler(svc, audit)
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/credit", `{"user_id":1,"amount":50,"reason":"promo"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)["result"].(map[string]interface{})
		if result["balance"].(float64) != 150 {
			t.Errorf("expected balance 150, got %v", result["balance"])
		}
		if audit.entries != 1 {
			t.Errorf("expected one audit entry, got %d", audit.entries)
		}
	})

	t.Run("returns_400_missing_reason", func(t *testing.T) {
		handler := NewPointsHandler(&mockPointsService{}, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/credit", `{"user_id":1,"amount":50}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns_400_non_positive_amount", func(t *testing.T) {
		handler := NewPointsHandler(&mockPointsService{}, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/credit", `{"user_id":1,"amount":-5,"reason":"promo"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestPointsHandler_DebitPoints(t *testing.T) {
	t.Run("maps_insufficient_balance_to_409", func(t *testing.T) {
		svc := &mockPointsService{
			deductPointsFn: func(uint, int64, string, models.Metadata) (*services.MutationResult, error) {
				return nil, apperrors.WithDetails(apperrors.ErrInsufficientBalance, map[string]any{
					"balance":   int64(550),
					"shortfall": int64(50),
				})
			},
		}
		handler := NewPointsHandler(svc, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/debit", `{"user_id":1,"amount":600,"reason":"purchase"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
		body := parseJSON(t, rec)
		assertErrorCode(t, body, "INSUFFICIENT_BALANCE")

		details := body["error"].(map[string]interface{})["details"].(map[string]interface{})
		if details["shortfall"].(float64) != 50 {
			t.Errorf("expected shortfall 50 in details, got %v", details["shortfall"])
		}
	})

	t.Run("returns_404_for_missing_user", func(t *testing.T) {
		svc := &mockPointsService{
			deductPointsFn: func(uint, int64, string, models.Metadata) (*services.MutationResult, error) {
				return nil, apperrors.ErrUserNotFound
			},
		}
		handler := NewPointsHandler(svc, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/debit", `{"user_id":99,"amount":10,"reason":"purchase"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestPointsHandler_TransferPoints(t *testing.T) {
	t.Run("maps_same_user_to_400", func(t *testing.T) {
		svc := &mockPointsService{
			transferFn: func(uint, uint, int64, string) (*services.TransferResult, error) {
				return nil, apperrors.ErrSameUserTransfer
			},
		}
		handler := NewPointsHandler(svc, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/transfer", `{"from_user_id":1,"to_user_id":1,"amount":10,"reason":"gift"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "SAME_USER_TRANSFER")
	})
}

func TestPointsHandler_AwardActivity(t *testing.T) {
	t.Run("rejects_unknown_activity_code", func(t *testing.T) {
		handler := NewPointsHandler(&mockPointsService{}, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/activity", `{"user_id":1,"activity":"tiktok_dance"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("passes_activity_to_service", func(t *testing.T) {
		var captured services.ActivityType
		svc := &mockPointsService{
			awardFn: func(_ uint, activity services.ActivityType, _ models.Metadata) (*services.MutationResult, error) {
				captured = activity
				return &services.MutationResult{Balance: 30, TransactionID: 1}, nil
			},
		}
		handler := NewPointsHandler(svc, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "POST", "/points/activity", `{"user_id":1,"activity":"telegram_join"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if captured != services.ActivityTelegramJoin {
			t.Errorf("expected telegram_join, got %s", captured)
		}
	})
}

func TestPointsHandler_GetBalance(t *testing.T) {
	t.Run("returns_balance", func(t *testing.T) {
		svc := &mockPointsService{
			getBalanceFn: func(userID uint) (int64, error) { return 320, nil },
		}
		handler := NewPointsHandler(svc, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "GET", "/users/5/balance", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["balance"].(float64) != 320 {
			t.Errorf("expected balance 320, got %v", result["balance"])
		}
	})

	t.Run("returns_400_for_bad_id", func(t *testing.T) {
		handler := NewPointsHandler(&mockPointsService{}, &mockAuditService{})
		r := setupPointsRouter(handler)

		rec := doRequest(r, "GET", "/users/abc/balance", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
