package middleware

import (
	"net/http"
	"strings"

	"github.com/ak55m/orderuv2/pkg/jwtutil"
	"github.com/ak55m/orderuv2/pkg/logger"
	"github.com/ak55m/orderuv2/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token from the Authorization header and
// stores the merchant identity in the request context.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "No token provided"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Warn("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token"})
		}

		// A merchant token must reference both the user and the restaurant
		if claims.UserID == 0 || claims.RestaurantID == 0 {
			log.Warn("Token payload missing user or restaurant reference")
			prometheus.RecordAuthError("invalid_token_payload")
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token payload"})
		}

		// Store identity in context for later use
		c.Set("user_id", claims.UserID)
		c.Set("restaurant_id", claims.RestaurantID)

		return next(c)
	}
}
