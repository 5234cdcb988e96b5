// Package tracking records visits to the public tracking links embedded in
// campaign messages.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"safeclicker/apperrors"
	"safeclicker/metrics"
	"safeclicker/models"
	"safeclicker/utils"
)

var errInvalidToken = fmt.Errorf("%w: invalid tracking token", apperrors.ErrNotFound)

// Visit is the request metadata stored with a click.
type Visit struct {
	LinkURL   string
	IPAddress string
	UserAgent string
}

// Recorder resolves tokens, records clicks and computes the landing redirect.
// The token is the only credential; there is no authentication.
type Recorder struct {
	DB         *gorm.DB
	LandingURL string
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

func NewRecorder(db *gorm.DB, landingURL string, logger logrus.FieldLogger) *Recorder {
	return &Recorder{DB: db, LandingURL: landingURL, Logger: logger, Now: time.Now}
}

// RecordClick marks the send opened the first time its token is seen and
// appends a ClickEvent on every visit. It returns the landing URL with the
// token attached.
func (r *Recorder) RecordClick(ctx context.Context, token string, visit Visit) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.TrackingClicksTotal.WithLabelValues("not_found").Inc()
		return "", errInvalidToken
	}

	var send models.CampaignSend
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&send).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.TrackingClicksTotal.WithLabelValues("not_found").Inc()
			return "", errInvalidToken
		}
		return "", err
	}

	now := r.now()
	if err := r.markOpened(ctx, send.ID, now); err != nil {
		return "", err
	}

	click := models.ClickEvent{
		CampaignSendID: send.ID,
		LinkURL:        visit.LinkURL,
		IPAddress:      visit.IPAddress,
		UserAgent:      visit.UserAgent,
		ClickedAt:      now,
	}
	if err := r.DB.WithContext(ctx).Create(&click).Error; err != nil {
		return "", err
	}

	metrics.TrackingClicksTotal.WithLabelValues("recorded").Inc()
	r.logger().WithFields(logrus.Fields{
		"campaign_id":      send.CampaignID,
		"campaign_send_id": send.ID,
		"ip":               visit.IPAddress,
	}).Info("tracking link visited")

	return utils.LandingURL(r.LandingURL, token)
}

// markOpened is a test-and-set: only the first visit writes opened_at.
func (r *Recorder) markOpened(ctx context.Context, sendID uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.CampaignSend{}).
		Where("id = ? AND opened = ?", sendID, false).
		Updates(map[string]interface{}{"opened": true, "opened_at": at}).Error
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recorder) logger() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logrus.StandardLogger()
}
