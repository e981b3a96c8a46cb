package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Config holds JWT configuration
type Config struct {
	SigningKey     string
	ExpirationDays int
}

var cfg = &Config{
	SigningKey:     "your-secret-key",
	ExpirationDays: 7,
}

// Initialize sets the JWT configuration used for signing and validation
func Initialize(config *Config) {
	cfg = config
}

// MerchantClaims represents the JWT claims for merchant authentication.
// Every merchant token carries the restaurant the user operates.
type MerchantClaims struct {
	UserID       uint `json:"user_id"`
	RestaurantID uint `json:"restaurant_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token with user and restaurant information
func GenerateToken(userID uint, restaurantID uint) (string, error) {
	if cfg == nil || cfg.SigningKey == "" {
		return "", errors.New("JWT configuration not provided")
	}

	claims := MerchantClaims{
		UserID:       userID,
		RestaurantID: restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.ExpirationDays) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.SigningKey))
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*MerchantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &MerchantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.SigningKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*MerchantClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
