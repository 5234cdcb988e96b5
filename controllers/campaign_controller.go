package controller

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"safeclicker/access"
	"safeclicker/apperrors"
	"safeclicker/dispatch"
	"safeclicker/middleware"
	"safeclicker/models"
	"safeclicker/tracking"
	"safeclicker/utils"
)

// Only a dispatch moves a campaign to active.
var errActivatedByDispatch = apperrors.InvalidState("status %q is set by sending the campaign", models.CampaignStatusActive)

// CampaignDispatcher sends a campaign to its recipients.
type CampaignDispatcher interface {
	Dispatch(ctx context.Context, campaignID uint, p access.Principal) (*dispatch.Result, error)
}

// ClickRecorder records a tracking link visit and returns the redirect target.
type ClickRecorder interface {
	RecordClick(ctx context.Context, token string, visit tracking.Visit) (string, error)
}

type CampaignController struct {
	DB         *gorm.DB
	Logger     logrus.FieldLogger
	Dispatcher CampaignDispatcher
	Recorder   ClickRecorder
}

func NewCampaignController(db *gorm.DB, logger logrus.FieldLogger, dispatcher CampaignDispatcher, recorder ClickRecorder) *CampaignController {
	return &CampaignController{
		DB:         db,
		Logger:     logger,
		Dispatcher: dispatcher,
		Recorder:   recorder,
	}
}

type createCampaignRequest struct {
	Name               string                `json:"name" validate:"required,max=200"`
	Description        string                `json:"description"`
	Subject            string                `json:"subject" validate:"max=300"`
	HTMLTemplate       string                `json:"html_template"`
	Complexity         string                `json:"complexity" validate:"omitempty,max=50"`
	Trigger            string                `json:"trigger" validate:"omitempty,max=100"`
	Status             models.CampaignStatus `json:"status"`
	DepartmentID       *uint                 `json:"department_id"`
	TargetDepartmentID *uint                 `json:"target_department_id"`
	TargetAudience     models.DepartmentSet  `json:"target_audience"`
	StartDate          *time.Time            `json:"start_date"`
	EndDate            *time.Time            `json:"end_date"`
}

// updateCampaignRequest only changes the fields present in the body.
type updateCampaignRequest struct {
	Name               *string                `json:"name" validate:"omitempty,min=1,max=200"`
	Description        *string                `json:"description"`
	Subject            *string                `json:"subject" validate:"omitempty,max=300"`
	HTMLTemplate       *string                `json:"html_template"`
	Complexity         *string                `json:"complexity" validate:"omitempty,max=50"`
	Trigger            *string                `json:"trigger" validate:"omitempty,max=100"`
	Status             *models.CampaignStatus `json:"status"`
	DepartmentID       *uint                  `json:"department_id"`
	TargetDepartmentID *uint                  `json:"target_department_id"`
	TargetAudience     *models.DepartmentSet  `json:"target_audience"`
	StartDate          *time.Time             `json:"start_date"`
	EndDate            *time.Time             `json:"end_date"`
}

// ListCampaigns returns the campaigns visible to the caller.
func (cc *CampaignController) ListCampaigns(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	page, limit, offset := utils.Pagination(c)

	query := cc.DB.WithContext(c.UserContext()).Model(&models.Campaign{}).
		Scopes(access.Restrict(access.EntityCampaign, p))
	if status := c.Query("status"); status != "" {
		query = query.Where("campaigns.status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, nil)
	}

	var campaigns []models.Campaign
	if err := query.Order("campaigns.id DESC").Offset(offset).Limit(limit).Find(&campaigns).Error; err != nil {
		return respondError(c, err, nil)
	}

	return c.JSON(utils.PaginatedResponse{Data: campaigns, Total: total, Page: page, Limit: limit})
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	campaign, err := cc.loadCampaign(c)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	if !access.CanManageCampaigns(p) {
		return respondError(c, apperrors.Forbidden("your role cannot create campaigns"), nil)
	}

	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	campaign := models.Campaign{
		CreatedBy:          p.ID,
		Name:               req.Name,
		Description:        req.Description,
		Subject:            req.Subject,
		HTMLTemplate:       req.HTMLTemplate,
		Complexity:         req.Complexity,
		Trigger:            req.Trigger,
		Status:             req.Status,
		DepartmentID:       req.DepartmentID,
		TargetDepartmentID: req.TargetDepartmentID,
		TargetAudience:     req.TargetAudience,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
	}
	if campaign.Status == "" {
		campaign.Status = models.CampaignStatusDraft
	}
	if campaign.Status == models.CampaignStatusActive {
		return respondError(c, errActivatedByDispatch, nil)
	}
	// A gestor's campaigns belong to its own department.
	if campaign.DepartmentID == nil && p.Role == models.RoleGestor {
		campaign.DepartmentID = p.DepartmentID
	}
	if err := cc.validateCampaign(c.UserContext(), &campaign); err != nil {
		return respondError(c, err, nil)
	}
	if !access.CanAccess(&campaign, p) {
		return respondError(c, apperrors.Forbidden("campaign department is outside your scope"), nil)
	}

	if err := cc.DB.WithContext(c.UserContext()).Create(&campaign).Error; err != nil {
		return respondError(c, err, map[string]interface{}{"user_id": p.ID})
	}

	utils.LogEvent("campaign_created", map[string]interface{}{
		"campaign_id": campaign.ID,
		"user_id":     p.ID,
	})
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	campaign, err := cc.loadCampaign(c)
	if err != nil {
		return respondError(c, err, nil)
	}
	if !access.CanManageCampaigns(p) {
		return respondError(c, apperrors.Forbidden("your role cannot change campaigns"), nil)
	}

	var req updateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Description != nil {
		campaign.Description = *req.Description
	}
	if req.Subject != nil {
		campaign.Subject = *req.Subject
	}
	if req.HTMLTemplate != nil {
		campaign.HTMLTemplate = *req.HTMLTemplate
	}
	if req.Complexity != nil {
		campaign.Complexity = *req.Complexity
	}
	if req.Trigger != nil {
		campaign.Trigger = *req.Trigger
	}
	if req.Status != nil {
		if *req.Status == models.CampaignStatusActive && campaign.Status != models.CampaignStatusActive {
			return respondError(c, errActivatedByDispatch, nil)
		}
		campaign.Status = *req.Status
	}
	if req.DepartmentID != nil {
		campaign.DepartmentID = req.DepartmentID
	}
	if req.TargetDepartmentID != nil {
		campaign.TargetDepartmentID = req.TargetDepartmentID
	}
	if req.TargetAudience != nil {
		campaign.TargetAudience = *req.TargetAudience
	}
	if req.StartDate != nil {
		campaign.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		campaign.EndDate = req.EndDate
	}

	if err := cc.validateCampaign(c.UserContext(), campaign); err != nil {
		return respondError(c, err, nil)
	}
	// Moving a campaign out of the caller's scope is not allowed.
	if !access.CanAccess(campaign, p) {
		return respondError(c, apperrors.Forbidden("campaign department is outside your scope"), nil)
	}

	if err := cc.DB.WithContext(c.UserContext()).Omit("Sends").Save(campaign).Error; err != nil {
		return respondError(c, err, map[string]interface{}{"campaign_id": campaign.ID})
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	campaign, err := cc.loadCampaign(c)
	if err != nil {
		return respondError(c, err, nil)
	}
	if !access.CanManageCampaigns(p) {
		return respondError(c, apperrors.Forbidden("your role cannot delete campaigns"), nil)
	}

	// Soft delete; the campaign's sends and clicks are kept for reporting.
	if err := cc.DB.WithContext(c.UserContext()).Delete(campaign).Error; err != nil {
		return respondError(c, err, map[string]interface{}{"campaign_id": campaign.ID})
	}

	utils.LogEvent("campaign_deleted", map[string]interface{}{
		"campaign_id": campaign.ID,
		"user_id":     p.ID,
	})
	return c.JSON(fiber.Map{"success": true, "message": "Campaign deleted"})
}

// SendCampaign dispatches the campaign and answers with the dispatch summary
// even when some recipients failed.
func (cc *CampaignController) SendCampaign(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	id, err := idParam(c, "id")
	if err != nil {
		return respondError(c, err, nil)
	}

	result, err := cc.Dispatcher.Dispatch(c.UserContext(), id, p)
	if err != nil {
		return respondError(c, err, map[string]interface{}{"campaign_id": id, "user_id": p.ID})
	}

	utils.LogEvent("campaign_dispatched", map[string]interface{}{
		"campaign_id": result.CampaignID,
		"user_id":     p.ID,
		"recipients":  result.Recipients,
		"sent":        result.Sent,
		"errors":      len(result.Errors),
	})
	return c.JSON(result)
}

// TrackClick is public: the token is the only credential.
func (cc *CampaignController) TrackClick(c *fiber.Ctx) error {
	visit := tracking.Visit{
		LinkURL:   c.BaseURL() + c.OriginalURL(),
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	target, err := cc.Recorder.RecordClick(c.UserContext(), c.Params("token"), visit)
	if err != nil {
		if apperrors.StatusCode(err) == fiber.StatusNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Invalid token", nil)
		}
		return respondError(c, err, nil)
	}
	return c.Redirect(target, fiber.StatusFound)
}

// ListSends returns the campaign's sends that the caller may see.
func (cc *CampaignController) ListSends(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	campaign, err := cc.loadCampaign(c)
	if err != nil {
		return respondError(c, err, nil)
	}
	page, limit, offset := utils.Pagination(c)

	query := cc.DB.WithContext(c.UserContext()).Model(&models.CampaignSend{}).
		Scopes(access.Restrict(access.EntityCampaignSend, p)).
		Where("campaign_sends.campaign_id = ?", campaign.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, nil)
	}

	var sends []models.CampaignSend
	if err := query.Preload("User").
		Order("campaign_sends.id").
		Offset(offset).Limit(limit).
		Find(&sends).Error; err != nil {
		return respondError(c, err, nil)
	}

	return c.JSON(utils.PaginatedResponse{Data: sends, Total: total, Page: page, Limit: limit})
}

// loadCampaign fetches :id and checks the caller may access it.
func (cc *CampaignController) loadCampaign(c *fiber.Ctx) (*models.Campaign, error) {
	id, err := idParam(c, "id")
	if err != nil {
		return nil, err
	}
	var campaign models.Campaign
	if err := cc.DB.WithContext(c.UserContext()).First(&campaign, id).Error; err != nil {
		return nil, notFoundOr(err, "campaign", id)
	}
	if !access.CanAccess(&campaign, middleware.CurrentPrincipal(c)) {
		return nil, apperrors.Forbidden("campaign is outside your scope")
	}
	return &campaign, nil
}

// validateCampaign checks the status and that referenced departments exist.
func (cc *CampaignController) validateCampaign(ctx context.Context, campaign *models.Campaign) error {
	if !campaign.Status.Valid() {
		return apperrors.InvalidState("unknown status %q", campaign.Status)
	}
	if campaign.StartDate != nil && campaign.EndDate != nil && campaign.EndDate.Before(*campaign.StartDate) {
		return apperrors.InvalidState("end_date is before start_date")
	}

	ids := campaign.TargetAudience.IDs()
	if campaign.DepartmentID != nil {
		ids = append(ids, *campaign.DepartmentID)
	}
	if campaign.TargetDepartmentID != nil {
		ids = append(ids, *campaign.TargetDepartmentID)
	}
	var known models.DepartmentSet
	for _, id := range ids {
		known = known.With(id)
	}
	if len(known) == 0 {
		return nil
	}

	var count int64
	if err := cc.DB.WithContext(ctx).Model(&models.Department{}).Where("id IN ?", known.IDs()).Count(&count).Error; err != nil {
		return err
	}
	if int(count) != len(known) {
		return apperrors.InvalidState("unknown department in %v", known.IDs())
	}
	return nil
}
