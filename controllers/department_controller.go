package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"safeclicker/access"
	"safeclicker/apperrors"
	"safeclicker/middleware"
	"safeclicker/models"
	"safeclicker/utils"
)

type DepartmentController struct {
	DB     *gorm.DB
	Logger logrus.FieldLogger
}

func NewDepartmentController(db *gorm.DB, logger logrus.FieldLogger) *DepartmentController {
	return &DepartmentController{DB: db, Logger: logger}
}

type createDepartmentRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// ListDepartments is readable by every authenticated user.
func (dc *DepartmentController) ListDepartments(c *fiber.Ctx) error {
	var departments []models.Department
	if err := dc.DB.WithContext(c.UserContext()).Order("name").Find(&departments).Error; err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(utils.SuccessResponse(departments))
}

func (dc *DepartmentController) GetDepartment(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return respondError(c, err, nil)
	}
	var department models.Department
	if err := dc.DB.WithContext(c.UserContext()).First(&department, id).Error; err != nil {
		return respondError(c, notFoundOr(err, "department", id), nil)
	}
	return c.JSON(utils.SuccessResponse(department))
}

func (dc *DepartmentController) CreateDepartment(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	if !access.IsAdmin(p) {
		return respondError(c, apperrors.Forbidden("only TI can create departments"), nil)
	}

	var req createDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var count int64
	if err := dc.DB.WithContext(c.UserContext()).Model(&models.Department{}).
		Where("LOWER(name) = LOWER(?)", req.Name).Count(&count).Error; err != nil {
		return respondError(c, err, nil)
	}
	if count > 0 {
		return respondError(c, apperrors.Conflict("department %q already exists", req.Name), nil)
	}

	department := models.Department{Name: req.Name, Description: req.Description}
	if err := dc.DB.WithContext(c.UserContext()).Create(&department).Error; err != nil {
		return respondError(c, err, nil)
	}

	dc.Logger.WithFields(logrus.Fields{"department_id": department.ID, "user_id": p.ID}).Info("department created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(department))
}
