package controller

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"safeclicker/access"
	"safeclicker/apperrors"
	"safeclicker/middleware"
	"safeclicker/models"
)

const recentCampaignsLimit = 5

type ReportController struct {
	DB     *gorm.DB
	Logger logrus.FieldLogger
}

func NewReportController(db *gorm.DB, logger logrus.FieldLogger) *ReportController {
	return &ReportController{DB: db, Logger: logger}
}

type ReportSummary struct {
	TotalCampaigns  int64   `json:"total_campaigns"`
	ActiveCampaigns int64   `json:"active_campaigns"`
	TotalUsers      int64   `json:"total_users"`
	EmailsReceived  int64   `json:"emails_received"`
	EmailsOpened    int64   `json:"emails_opened"`
	EmailsBounced   int64   `json:"emails_bounced"`
	EmailsClicked   int64   `json:"emails_clicked"`
	ClickRate       float64 `json:"click_rate"`
}

type DepartmentStat struct {
	DepartmentID uint    `json:"department_id"`
	Department   string  `json:"department"`
	Sends        int64   `json:"sends"`
	Clicks       int64   `json:"clicks"`
	Rate         float64 `json:"rate"`
}

type RecentCampaign struct {
	ID        uint                  `json:"id"`
	Name      string                `json:"name"`
	Status    models.CampaignStatus `json:"status"`
	Users     int64                 `json:"users"`
	Clicks    int64                 `json:"clicks"`
	StartDate time.Time             `json:"start_date"`
}

type DashboardReport struct {
	Summary         ReportSummary    `json:"summary"`
	DepartmentStats []DepartmentStat `json:"department_stats"`
	RecentCampaigns []RecentCampaign `json:"recent_campaigns"`
}

type ClickDetail struct {
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress string    `json:"ip_address"`
}

type CampaignClickReport struct {
	CampaignID   uint          `json:"campaign_id"`
	CampaignName string        `json:"campaign_name"`
	TotalSends   int64         `json:"total_sends"`
	TotalClicks  int64         `json:"total_clicks"`
	Clicks       []ClickDetail `json:"clicks"`
}

// GetDashboard returns totals over the rows visible to the caller.
func (rc *ReportController) GetDashboard(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	ctx := c.UserContext()

	summary, err := rc.summary(ctx, p)
	if err != nil {
		return respondError(c, err, map[string]interface{}{"user_id": p.ID})
	}
	departments, err := rc.departmentStats(ctx, p)
	if err != nil {
		return respondError(c, err, map[string]interface{}{"user_id": p.ID})
	}
	recent, err := rc.recentCampaigns(ctx, p)
	if err != nil {
		return respondError(c, err, map[string]interface{}{"user_id": p.ID})
	}

	return c.JSON(DashboardReport{
		Summary:         summary,
		DepartmentStats: departments,
		RecentCampaigns: recent,
	})
}

// GetCampaignClicks lists who clicked a campaign's link, limited to the
// recipients the caller may see.
func (rc *ReportController) GetCampaignClicks(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	ctx := c.UserContext()

	id, err := idParam(c, "id")
	if err != nil {
		return respondError(c, err, nil)
	}
	var campaign models.Campaign
	if err := rc.DB.WithContext(ctx).First(&campaign, id).Error; err != nil {
		return respondError(c, notFoundOr(err, "campaign", id), nil)
	}
	if !access.CanAccess(&campaign, p) {
		return respondError(c, apperrors.Forbidden("campaign is outside your scope"), nil)
	}

	report := CampaignClickReport{
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		Clicks:       []ClickDetail{},
	}
	if err := rc.sends(ctx, p).Where("campaign_sends.campaign_id = ?", id).Count(&report.TotalSends).Error; err != nil {
		return respondError(c, err, nil)
	}

	err = rc.clicks(ctx, p).
		Joins("LEFT JOIN users AS recipients ON recipients.id = campaign_sends.user_id").
		Where("campaign_sends.campaign_id = ?", id).
		Select("COALESCE(recipients.full_name, '') AS full_name, campaign_sends.recipient_email AS email, " +
			"click_events.clicked_at AS clicked_at, click_events.ip_address AS ip_address").
		Order("click_events.clicked_at DESC").
		Scan(&report.Clicks).Error
	if err != nil {
		return respondError(c, err, nil)
	}
	report.TotalClicks = int64(len(report.Clicks))

	return c.JSON(report)
}

func (rc *ReportController) summary(ctx context.Context, p access.Principal) (ReportSummary, error) {
	var s ReportSummary
	db := rc.DB.WithContext(ctx)

	campaigns := func() *gorm.DB {
		return db.Model(&models.Campaign{}).Scopes(access.Restrict(access.EntityCampaign, p))
	}
	if err := campaigns().Count(&s.TotalCampaigns).Error; err != nil {
		return s, err
	}
	if err := campaigns().Where("campaigns.status = ?", models.CampaignStatusActive).Count(&s.ActiveCampaigns).Error; err != nil {
		return s, err
	}
	if err := db.Model(&models.User{}).Scopes(access.Restrict(access.EntityUser, p)).Count(&s.TotalUsers).Error; err != nil {
		return s, err
	}
	if err := rc.sends(ctx, p).Count(&s.EmailsReceived).Error; err != nil {
		return s, err
	}
	if err := rc.sends(ctx, p).Where("campaign_sends.opened = ?", true).Count(&s.EmailsOpened).Error; err != nil {
		return s, err
	}
	if err := rc.sends(ctx, p).Where("campaign_sends.bounced = ?", true).Count(&s.EmailsBounced).Error; err != nil {
		return s, err
	}
	if err := rc.clicks(ctx, p).Count(&s.EmailsClicked).Error; err != nil {
		return s, err
	}
	s.ClickRate = percent(s.EmailsClicked, s.EmailsReceived)
	return s, nil
}

// departmentStats groups sends and clicks by the recipient's department.
// Only TI sees every department and a gestor sees its own.
func (rc *ReportController) departmentStats(ctx context.Context, p access.Principal) ([]DepartmentStat, error) {
	stats := []DepartmentStat{}
	if !access.IsAdmin(p) && !(p.Role == models.RoleGestor && p.DepartmentID != nil) {
		return stats, nil
	}

	query := rc.DB.WithContext(ctx).Table("departments").
		Select("departments.id AS department_id, departments.name AS department, " +
			"COUNT(DISTINCT campaign_sends.id) AS sends, COUNT(click_events.id) AS clicks").
		Joins("LEFT JOIN users ON users.department_id = departments.id AND users.deleted_at IS NULL").
		Joins("LEFT JOIN campaign_sends ON campaign_sends.user_id = users.id AND campaign_sends.deleted_at IS NULL").
		Joins("LEFT JOIN click_events ON click_events.campaign_send_id = campaign_sends.id").
		Where("departments.deleted_at IS NULL").
		Group("departments.id, departments.name").
		Order("departments.name")
	if !access.IsAdmin(p) {
		query = query.Where("departments.id = ?", *p.DepartmentID)
	}
	if err := query.Scan(&stats).Error; err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].Rate = percent(stats[i].Clicks, stats[i].Sends)
	}
	return stats, nil
}

func (rc *ReportController) recentCampaigns(ctx context.Context, p access.Principal) ([]RecentCampaign, error) {
	var campaigns []models.Campaign
	err := rc.DB.WithContext(ctx).
		Scopes(access.Restrict(access.EntityCampaign, p)).
		Order("COALESCE(campaigns.start_date, campaigns.created_at) DESC").
		Limit(recentCampaignsLimit).
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	recent := make([]RecentCampaign, 0, len(campaigns))
	for _, campaign := range campaigns {
		item := RecentCampaign{
			ID:        campaign.ID,
			Name:      campaign.Name,
			Status:    campaign.Status,
			StartDate: campaign.CreatedAt,
		}
		if campaign.StartDate != nil {
			item.StartDate = *campaign.StartDate
		}
		if err := rc.sends(ctx, p).Where("campaign_sends.campaign_id = ?", campaign.ID).Count(&item.Users).Error; err != nil {
			return nil, err
		}
		if err := rc.clicks(ctx, p).Where("campaign_sends.campaign_id = ?", campaign.ID).Count(&item.Clicks).Error; err != nil {
			return nil, err
		}
		recent = append(recent, item)
	}
	return recent, nil
}

// sends starts a CampaignSend query restricted to p.
func (rc *ReportController) sends(ctx context.Context, p access.Principal) *gorm.DB {
	return rc.DB.WithContext(ctx).Model(&models.CampaignSend{}).
		Scopes(access.Restrict(access.EntityCampaignSend, p))
}

// clicks starts a ClickEvent query whose sends are restricted to p.
func (rc *ReportController) clicks(ctx context.Context, p access.Principal) *gorm.DB {
	return rc.DB.WithContext(ctx).Model(&models.ClickEvent{}).
		Joins("JOIN campaign_sends ON campaign_sends.id = click_events.campaign_send_id AND campaign_sends.deleted_at IS NULL").
		Scopes(access.Restrict(access.EntityCampaignSend, p))
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
