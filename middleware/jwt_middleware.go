package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"safeclicker/access"
	"safeclicker/models"
	"safeclicker/utils"
)

const (
	localUser      = "user"
	localPrincipal = "principal"
)

// Protected authenticates the request from a Bearer token or the
// access_token cookie. The user is reloaded on every request so role and
// department changes apply immediately.
func Protected(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Try to get token from Authorization header first
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization format", nil)
			}
			token = tokenParts[1]
		} else {
			// Fall back to cookie if header not present
			token = c.Cookies("access_token")
			if token == "" {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
			}
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil || claims.TokenType != "access" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}

		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", nil)
		}

		if !user.IsActive {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
		}

		c.Locals(localUser, &user)
		c.Locals(localPrincipal, access.PrincipalFromUser(&user))
		return c.Next()
	}
}

// CurrentUser returns the user set by Protected, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}

// CurrentPrincipal returns the principal set by Protected. Without one the
// zero Principal is returned, which every scope denies.
func CurrentPrincipal(c *fiber.Ctx) access.Principal {
	p, _ := c.Locals(localPrincipal).(access.Principal)
	return p
}
