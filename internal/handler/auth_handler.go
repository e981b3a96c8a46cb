package handler

import (
	"net/http"
	"time"

	"github.com/ak55m/orderuv2/internal/model"
	"github.com/ak55m/orderuv2/pkg/database"
	"github.com/ak55m/orderuv2/pkg/jwtutil"
	"github.com/ak55m/orderuv2/pkg/logger"
	"github.com/ak55m/orderuv2/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CheckEmail reports whether a user with the given email already exists
func CheckEmail(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse check-email request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	if err := database.GetDB().Model(&model.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		log.Error("Failed to check email", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"exists": count > 0})
}

// MerchantRegister creates the merchant account: user, restaurant with an
// empty subscription record, and the owner relation, in one transaction.
func MerchantRegister(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "email and password are required"})
	}

	var existing int64
	if err := database.GetDB().Model(&model.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		log.Error("Failed to check existing merchant", zap.Error(err))
		prometheus.RecordAuthError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}
	if existing > 0 {
		prometheus.RecordAuthError("merchant_exists")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Merchant already exists"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), 10)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}

	user := model.User{
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     model.RoleMerchant,
	}
	restaurant := model.Restaurant{
		Email:              req.Email,
		IsActive:           false,
		SubscriptionStatus: model.SubscriptionStatusNone,
	}

	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&restaurant).Error; err != nil {
			return err
		}
		merchant := model.Merchant{
			UserID:       user.ID,
			RestaurantID: restaurant.ID,
			Role:         model.RoleOwner,
		}
		return tx.Create(&merchant).Error
	})
	if err != nil {
		log.Error("Failed to register merchant", zap.Error(err))
		prometheus.RecordAuthError("register_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}

	token, err := jwtutil.GenerateToken(user.ID, restaurant.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}

	log.Info("Merchant registered",
		zap.String("email", user.Email),
		zap.Uint("user_id", user.ID),
		zap.Uint("restaurant_id", restaurant.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user": echo.Map{
			"id":           user.ID,
			"email":        user.Email,
			"role":         user.Role,
			"restaurantId": restaurant.ID,
		},
	})
}

// MerchantLogin authenticates a merchant and issues a token carrying the
// restaurant reference
func MerchantLogin(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if err := database.GetDB().Where("email = ?", req.Email).First(&user).Error; err != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
	}

	if user.Role != model.RoleMerchant {
		prometheus.RecordAuthError("not_a_merchant")
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
	}

	var merchant model.Merchant
	if err := database.GetDB().Where("user_id = ?", user.ID).First(&merchant).Error; err != nil {
		log.Warn("No restaurant associated with merchant", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("no_restaurant")
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
	}

	token, err := jwtutil.GenerateToken(user.ID, merchant.RestaurantID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}

	log.Info("Merchant logged in",
		zap.String("email", user.Email),
		zap.Uint("restaurant_id", merchant.RestaurantID))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": echo.Map{
			"id":           user.ID,
			"email":        user.Email,
			"role":         user.Role,
			"restaurantId": merchant.RestaurantID,
		},
	})
}

// DeleteAccount removes the merchant's user, restaurant and relation rows.
// The restaurant delete cascades the subscription record with it.
func DeleteAccount(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}
	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("restaurant_id = ?", restaurantID).Delete(&model.Merchant{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&model.Restaurant{}, restaurantID).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.User{}, userID).Error
	})
	if err != nil {
		log.Error("Failed to delete account",
			zap.Uint("user_id", userID),
			zap.Uint("restaurant_id", restaurantID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Error deleting account"})
	}

	log.Info("Account deleted",
		zap.Uint("user_id", userID),
		zap.Uint("restaurant_id", restaurantID))

	return c.JSON(http.StatusOK, echo.Map{"message": "Account deleted successfully"})
}
