package controller

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"safeclicker/middleware"
	"safeclicker/models"
	"safeclicker/utils"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user"`
}

type AuthController struct {
	DB     *gorm.DB
	Logger logrus.FieldLogger
}

func NewAuthController(db *gorm.DB, logger logrus.FieldLogger) *AuthController {
	return &AuthController{DB: db, Logger: logger}
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	// Find user
	var user models.User
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := ac.DB.WithContext(c.UserContext()).Where("email = ?", email).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		ac.Logger.WithField("user_id", user.ID).Warn("failed login attempt")
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}

	// Check if user is active
	if !user.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
	}

	now := time.Now()
	if err := ac.DB.WithContext(c.UserContext()).Model(&user).Update("last_login_at", now).Error; err != nil {
		ac.Logger.WithError(err).WithField("user_id", user.ID).Warn("could not record last login")
	}
	user.LastLoginAt = &now

	return ac.issueTokens(c, &user)
}

func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	claims, err := utils.ParseJWTToken(req.RefreshToken)
	if err != nil || claims.TokenType != "refresh" {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired refresh token", nil)
	}

	var user models.User
	if err := ac.DB.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", nil)
	}
	if !user.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
	}

	return ac.issueTokens(c, &user)
}

// GetCurrentUser returns the authenticated user with its department.
func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	current := middleware.CurrentUser(c)
	if current == nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
	}

	var user models.User
	if err := ac.DB.WithContext(c.UserContext()).Preload("Department").First(&user, current.ID).Error; err != nil {
		return respondError(c, notFoundOr(err, "user", current.ID), nil)
	}
	return c.JSON(user)
}

func (ac *AuthController) issueTokens(c *fiber.Ctx, user *models.User) error {
	accessToken, refreshToken, err := utils.GenerateJWTToken(user)
	if err != nil {
		return respondError(c, err, map[string]interface{}{"user_id": user.ID})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Expires:  time.Now().Add(utils.AccessTokenTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.JSON(AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User:         user,
	})
}
