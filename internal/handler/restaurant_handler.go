package handler

import (
	"net/http"

	"github.com/ak55m/orderuv2/internal/model"
	"github.com/ak55m/orderuv2/pkg/database"
	"github.com/ak55m/orderuv2/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetSettings returns the restaurant profile for the authenticated merchant
func GetSettings(c echo.Context) error {
	log := logger.FromEcho(c)

	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	var restaurant model.Restaurant
	if err := database.GetDB().First(&restaurant, restaurantID).Error; err != nil {
		log.Error("Restaurant not found", zap.Uint("restaurant_id", restaurantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Restaurant not found"})
	}

	return c.JSON(http.StatusOK, restaurant)
}

// UpdateSettings updates the restaurant profile fields. Subscription columns
// are never writable through this endpoint.
func UpdateSettings(c echo.Context) error {
	log := logger.FromEcho(c)

	restaurantID, ok := c.Get("restaurant_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication required"})
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Address     *string `json:"address"`
		Phone       *string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse settings request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "nothing to update"})
	}

	result := database.GetDB().Model(&model.Restaurant{}).Where("id = ?", restaurantID).Updates(updates)
	if result.Error != nil {
		log.Error("Failed to update settings", zap.Uint("restaurant_id", restaurantID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Restaurant not found"})
	}

	log.Info("Restaurant settings updated", zap.Uint("restaurant_id", restaurantID))

	var restaurant model.Restaurant
	if err := database.GetDB().First(&restaurant, restaurantID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, restaurant)
}
