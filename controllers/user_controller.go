package controller

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"safeclicker/access"
	"safeclicker/apperrors"
	"safeclicker/middleware"
	"safeclicker/models"
	"safeclicker/utils"
)

type UserController struct {
	DB     *gorm.DB
	Logger logrus.FieldLogger
}

func NewUserController(db *gorm.DB, logger logrus.FieldLogger) *UserController {
	return &UserController{DB: db, Logger: logger}
}

type createUserRequest struct {
	Email        string `json:"email" validate:"required,max=254"`
	FullName     string `json:"full_name" validate:"max=200"`
	Password     string `json:"password" validate:"required,min=8"`
	Role         string `json:"role"`
	DepartmentID *uint  `json:"department_id"`
	IsActive     *bool  `json:"is_active"`
}

type updateUserRequest struct {
	Email        *string `json:"email" validate:"omitempty,max=254"`
	FullName     *string `json:"full_name" validate:"omitempty,max=200"`
	Password     *string `json:"password" validate:"omitempty,min=8"`
	Role         *string `json:"role"`
	DepartmentID *uint   `json:"department_id"`
	IsActive     *bool   `json:"is_active"`
}

// onlySelfFields reports whether the update touches nothing beyond the
// caller's own profile fields.
func (r updateUserRequest) onlySelfFields() bool {
	return r.Email == nil && r.Role == nil && r.DepartmentID == nil && r.IsActive == nil
}

func (uc *UserController) ListUsers(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	page, limit, offset := utils.Pagination(c)

	query := uc.DB.WithContext(c.UserContext()).Model(&models.User{}).
		Scopes(access.Restrict(access.EntityUser, p))
	if dept := utils.ParseUint(c.Query("department_id")); dept != 0 {
		query = query.Where("users.department_id = ?", dept)
	}
	if role := c.Query("role"); role != "" {
		parsed, err := models.ParseRole(role)
		if err != nil {
			return respondError(c, apperrors.InvalidState("%v", err), nil)
		}
		query = query.Where("users.role = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, nil)
	}

	var users []models.User
	if err := query.Order("users.id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return respondError(c, err, nil)
	}

	return c.JSON(utils.PaginatedResponse{Data: users, Total: total, Page: page, Limit: limit})
}

func (uc *UserController) GetUser(c *fiber.Ctx) error {
	user, err := uc.loadUser(c)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(utils.SuccessResponse(user))
}

func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)

	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	role := models.RoleColaborador
	if req.Role != "" {
		parsed, err := models.ParseRole(req.Role)
		if err != nil {
			return respondError(c, apperrors.InvalidState("%v", err), nil)
		}
		role = parsed
	}
	if role.RequiresDepartment() && req.DepartmentID == nil {
		return respondError(c, apperrors.InvalidState("role %s requires department_id", role), nil)
	}
	if !access.CanAssign(p, role, req.DepartmentID) {
		return respondError(c, apperrors.Forbidden("you cannot create users with this role or department"), nil)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateEmail(email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ctx := c.UserContext()
	if err := uc.checkEmailFree(ctx, email, 0); err != nil {
		return respondError(c, err, nil)
	}
	if err := uc.checkDepartment(ctx, req.DepartmentID); err != nil {
		return respondError(c, err, nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, err, nil)
	}

	user := models.User{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hashedPassword),
		Role:         role,
		DepartmentID: req.DepartmentID,
		IsActive:     true,
	}
	if err := uc.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return respondError(c, err, map[string]interface{}{"email": email})
	}
	// The column default would otherwise win over an explicit false.
	if req.IsActive != nil && !*req.IsActive {
		if err := uc.DB.WithContext(ctx).Model(&user).Update("is_active", false).Error; err != nil {
			return respondError(c, err, map[string]interface{}{"user_id": user.ID})
		}
		user.IsActive = false
	}

	uc.Logger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"role":       user.Role,
		"created_by": p.ID,
	}).Info("user created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(user))
}

func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	user, err := uc.loadUser(c)
	if err != nil {
		return respondError(c, err, nil)
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	// Colaboradores may only edit their own name and password.
	if p.Role == models.RoleColaborador && !req.onlySelfFields() {
		return respondError(c, apperrors.Forbidden("you can only change your name and password"), nil)
	}
	if p.Role != models.RoleColaborador && !access.CanAssign(p, user.Role, user.DepartmentID) {
		return respondError(c, apperrors.Forbidden("you cannot change this user"), nil)
	}

	ctx := c.UserContext()
	updates := map[string]interface{}{}

	role := user.Role
	if req.Role != nil {
		parsed, err := models.ParseRole(*req.Role)
		if err != nil {
			return respondError(c, apperrors.InvalidState("%v", err), nil)
		}
		role = parsed
	}
	department := user.DepartmentID
	if req.DepartmentID != nil {
		department = req.DepartmentID
	}
	if req.Role != nil || req.DepartmentID != nil {
		if role.RequiresDepartment() && department == nil {
			return respondError(c, apperrors.InvalidState("role %s requires department_id", role), nil)
		}
		if !access.CanAssign(p, role, department) {
			return respondError(c, apperrors.Forbidden("you cannot assign this role or department"), nil)
		}
		if err := uc.checkDepartment(ctx, department); err != nil {
			return respondError(c, err, nil)
		}
		updates["role"] = role
		updates["department_id"] = department
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if err := utils.ValidateEmail(email); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
		}
		if err := uc.checkEmailFree(ctx, email, user.ID); err != nil {
			return respondError(c, err, nil)
		}
		updates["email"] = email
	}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Password != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return respondError(c, err, nil)
		}
		updates["password_hash"] = string(hashedPassword)
	}
	if req.IsActive != nil {
		if user.ID == p.ID && !*req.IsActive {
			return respondError(c, apperrors.InvalidState("you cannot deactivate your own account"), nil)
		}
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := uc.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return respondError(c, err, map[string]interface{}{"user_id": user.ID})
		}
	}

	var updated models.User
	if err := uc.DB.WithContext(ctx).First(&updated, user.ID).Error; err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(utils.SuccessResponse(updated))
}

func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	user, err := uc.loadUser(c)
	if err != nil {
		return respondError(c, err, nil)
	}
	if p.Role == models.RoleColaborador {
		return respondError(c, apperrors.Forbidden("your role cannot delete users"), nil)
	}
	if user.ID == p.ID {
		return respondError(c, apperrors.InvalidState("you cannot delete your own account"), nil)
	}
	if !access.CanAssign(p, user.Role, user.DepartmentID) {
		return respondError(c, apperrors.Forbidden("you cannot delete this user"), nil)
	}

	if err := uc.DB.WithContext(c.UserContext()).Delete(user).Error; err != nil {
		return respondError(c, err, map[string]interface{}{"user_id": user.ID})
	}

	uc.Logger.WithFields(logrus.Fields{"user_id": user.ID, "deleted_by": p.ID}).Info("user deleted")
	return c.JSON(fiber.Map{"success": true, "message": "User deleted"})
}

func (uc *UserController) loadUser(c *fiber.Ctx) (*models.User, error) {
	id, err := idParam(c, "id")
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := uc.DB.WithContext(c.UserContext()).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	if !access.CanAccess(&user, middleware.CurrentPrincipal(c)) {
		return nil, apperrors.Forbidden("user is outside your scope")
	}
	return &user, nil
}

// checkEmailFree fails with Conflict when another user already owns email.
// Soft deleted users still hold their address.
func (uc *UserController) checkEmailFree(ctx context.Context, email string, self uint) error {
	var count int64
	if err := uc.DB.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("email = ? AND id <> ?", email, self).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.Conflict("email %s is already registered", email)
	}
	return nil
}

func (uc *UserController) checkDepartment(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	var dept models.Department
	if err := uc.DB.WithContext(ctx).First(&dept, *id).Error; err != nil {
		return notFoundOr(err, "department", *id)
	}
	return nil
}
