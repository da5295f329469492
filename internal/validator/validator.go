// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bonuspark/internal/services"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("activity_type", validateActivityType)
		_ = v.RegisterValidation("loyalty_status", validateLoyaltyStatus)
	}
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "credit", "debit":
		return true
	}
	return false
}

func validateActivityType(fl validator.FieldLevel) bool {
	switch services.ActivityType(fl.Field().String()) {
	case services.ActivityWelcome,
		services.ActivityReferralReferrer,
		services.ActivityReferralReferee,
		services.ActivityVKPost,
		services.ActivityInstagramPost,
		services.ActivityTelegramJoin,
		services.ActivityPurchaseCashback:
		return true
	}
	return false
}

func validateLoyaltyStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "bronze", "silver", "gold", "platinum":
		return true
	}
	return false
}
