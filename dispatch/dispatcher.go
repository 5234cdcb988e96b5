// Package dispatch sends a campaign to every active user of its target
// departments, one tracked CampaignSend per recipient.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"safeclicker/access"
	"safeclicker/apperrors"
	"safeclicker/metrics"
	"safeclicker/models"
	"safeclicker/utils"
	"safeclicker/worker"
)

// Result summarizes one dispatch. Delivery failures are listed in Errors and
// never fail the dispatch as a whole.
type Result struct {
	CampaignID  uint                  `json:"campaign_id"`
	Recipients  int                   `json:"recipients"`
	Departments []uint                `json:"departments"`
	Sent        int                   `json:"sent"`
	Errors      []RecipientError      `json:"errors"`
	Status      models.CampaignStatus `json:"status"`
}

type RecipientError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type Dispatcher struct {
	DB     *gorm.DB
	Mailer utils.Mailer
	Locker Locker
	Pool   *worker.Pool
	Logger logrus.FieldLogger

	// Tracking links are built as TrackingBaseURL + TrackingEndpoint + "/<token>".
	TrackingBaseURL  string
	TrackingEndpoint string
	LockTTL          time.Duration

	Now      func() time.Time
	NewToken func() (string, error)
}

func NewDispatcher(db *gorm.DB, mailer utils.Mailer, locker Locker, pool *worker.Pool, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		DB:               db,
		Mailer:           mailer,
		Locker:           locker,
		Pool:             pool,
		Logger:           logger,
		TrackingEndpoint: "/campaigns/track",
		LockTTL:          10 * time.Minute,
		Now:              time.Now,
		NewToken:         utils.GenerateTrackingToken,
	}
}

// recipientOutcome is written only by the job that owns its index.
type recipientOutcome struct {
	done bool
	sent bool
	err  string
}

// Dispatch sends campaignID on behalf of p. Preconditions are checked in
// order and abort before any send row exists: the campaign must exist, p must
// be allowed to access it and to manage campaigns, no other dispatch of it may
// be running, it must resolve to at least one department, carry a template and
// reach at least one active user. The campaign is then marked active and every recipient is
// processed independently.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID uint, p access.Principal) (*Result, error) {
	start := time.Now()
	res, err := d.dispatch(ctx, campaignID, p)
	metrics.DispatchesTotal.WithLabelValues(outcomeLabel(err)).Inc()
	if err == nil {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, campaignID uint, p access.Principal) (*Result, error) {
	var campaign models.Campaign
	if err := d.DB.WithContext(ctx).First(&campaign, campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("campaign", campaignID)
		}
		return nil, err
	}
	if !access.CanAccess(&campaign, p) {
		return nil, apperrors.Forbidden("campaign is outside your scope")
	}
	if !access.CanManageCampaigns(p) {
		return nil, apperrors.Forbidden("your role cannot send campaigns")
	}

	release, err := d.Locker.Acquire(ctx, lockKey(campaign.ID), d.LockTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return nil, apperrors.Conflict("campaign %d is already being dispatched", campaign.ID)
		}
		return nil, err
	}
	defer release()

	targets := ResolveTargets(&campaign)
	if len(targets) == 0 {
		return nil, apperrors.InvalidState("campaign %d has no target department", campaign.ID)
	}
	if strings.TrimSpace(campaign.HTMLTemplate) == "" {
		return nil, apperrors.InvalidState("campaign %d has no html template", campaign.ID)
	}

	var recipients []models.User
	if err := d.DB.WithContext(ctx).
		Where("department_id IN ? AND is_active = ?", targets.IDs(), true).
		Order("id").
		Find(&recipients).Error; err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, apperrors.InvalidState("no active users found in departments %v", targets.IDs())
	}

	// From here on the dispatch runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if err := d.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", campaign.ID).
		Update("status", models.CampaignStatusActive).Error; err != nil {
		return nil, err
	}

	log := d.logger().WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"departments": targets.String(),
		"recipients":  len(recipients),
	})
	log.Info("dispatch started")

	outcomes := make([]recipientOutcome, len(recipients))
	if err := d.pool().Run(ctx, len(recipients), func(ctx context.Context, i int) {
		outcomes[i] = d.sendOne(ctx, &campaign, &recipients[i])
	}); err != nil {
		// Recipients the pool never reached are reported as aborted below.
		log.WithError(err).Error("dispatch interrupted")
	}

	result := &Result{
		CampaignID:  campaign.ID,
		Recipients:  len(recipients),
		Departments: targets.IDs(),
		Errors:      []RecipientError{},
		Status:      models.CampaignStatusActive,
	}
	result.tally(recipients, outcomes)

	log.WithFields(logrus.Fields{
		"sent":   result.Sent,
		"errors": len(result.Errors),
	}).Info("dispatch finished")
	return result, nil
}

// sendOne creates the recipient's send row, renders the template and hands
// the message to the mailer. A mailer failure marks the row bounced.
func (d *Dispatcher) sendOne(ctx context.Context, campaign *models.Campaign, user *models.User) recipientOutcome {
	newToken := d.NewToken
	if newToken == nil {
		newToken = utils.GenerateTrackingToken
	}
	token, err := newToken()
	if err != nil {
		metrics.RecipientSendsTotal.WithLabelValues("error").Inc()
		return recipientOutcome{done: true, err: err.Error()}
	}

	send := models.CampaignSend{
		CampaignID:     campaign.ID,
		UserID:         user.ID,
		RecipientEmail: user.Email,
		Token:          token,
		SentAt:         d.now(),
	}
	if err := d.DB.WithContext(ctx).Create(&send).Error; err != nil {
		metrics.RecipientSendsTotal.WithLabelValues("error").Inc()
		utils.LogError("campaign_send_create", err, map[string]interface{}{
			"campaign_id": campaign.ID,
			"user_id":     user.ID,
		})
		return recipientOutcome{done: true, err: "failed to record send: " + err.Error()}
	}

	link := utils.TrackingURL(d.TrackingBaseURL, d.TrackingEndpoint, token)
	html := utils.RenderTemplate(campaign.HTMLTemplate, utils.Recipient{
		Name:  user.DisplayName(),
		Email: user.Email,
	}, link)

	subject := campaign.Subject
	if strings.TrimSpace(subject) == "" {
		subject = campaign.Name
	}

	if err := d.Mailer.Send(utils.Email{To: user.Email, Subject: subject, HTML: html}); err != nil {
		metrics.RecipientSendsTotal.WithLabelValues("bounced").Inc()
		if uerr := d.DB.WithContext(ctx).Model(&models.CampaignSend{}).
			Where("id = ?", send.ID).
			Update("bounced", true).Error; uerr != nil {
			utils.LogError("campaign_send_bounce", uerr, map[string]interface{}{
				"campaign_send_id": send.ID,
			})
		}
		d.logger().WithFields(logrus.Fields{
			"campaign_id": campaign.ID,
			"recipient":   user.Email,
			"error":       err.Error(),
		}).Warn("delivery failed")
		return recipientOutcome{done: true, err: err.Error()}
	}

	metrics.RecipientSendsTotal.WithLabelValues("sent").Inc()
	return recipientOutcome{done: true, sent: true}
}

// tally counts the sent recipients and lists the failed ones. Recipients the
// pool never reached count as aborted.
func (r *Result) tally(recipients []models.User, outcomes []recipientOutcome) {
	for i, o := range outcomes {
		switch {
		case !o.done:
			r.Errors = append(r.Errors, RecipientError{Email: recipients[i].Email, Error: "recipient processing aborted"})
		case o.sent:
			r.Sent++
		default:
			r.Errors = append(r.Errors, RecipientError{Email: recipients[i].Email, Error: o.err})
		}
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) pool() *worker.Pool {
	if d.Pool != nil {
		return d.Pool
	}
	return worker.NewPool(1, d.logger())
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	}
	return "error"
}
