package controller_test

import (
	"fmt"
	"net/http"
	"testing"

	"safeclicker/models"
	"safeclicker/testutil"
)

type dashboard struct {
	Summary struct {
		TotalCampaigns  int64   `json:"total_campaigns"`
		ActiveCampaigns int64   `json:"active_campaigns"`
		TotalUsers      int64   `json:"total_users"`
		EmailsReceived  int64   `json:"emails_received"`
		EmailsOpened    int64   `json:"emails_opened"`
		EmailsBounced   int64   `json:"emails_bounced"`
		EmailsClicked   int64   `json:"emails_clicked"`
		ClickRate       float64 `json:"click_rate"`
	} `json:"summary"`
	DepartmentStats []struct {
		DepartmentID uint    `json:"department_id"`
		Sends        int64   `json:"sends"`
		Clicks       int64   `json:"clicks"`
		Rate         float64 `json:"rate"`
	} `json:"department_stats"`
	RecentCampaigns []struct {
		ID     uint  `json:"id"`
		Users  int64 `json:"users"`
		Clicks int64 `json:"clicks"`
	} `json:"recent_campaigns"`
}

// seedReport dispatches one campaign to RH and one to Financeiro and has
// ana visit her link twice and caio once.
func seedReport(t *testing.T, e *env) (rh, fin *models.Campaign) {
	t.Helper()
	rh = e.campaign(t, models.Campaign{Name: "rh", DepartmentID: testutil.Uint(e.rh), TargetAudience: models.DepartmentSet{e.rh}})
	fin = e.campaign(t, models.Campaign{Name: "fin", DepartmentID: testutil.Uint(e.fin), TargetAudience: models.DepartmentSet{e.fin}})
	for _, c := range []*models.Campaign{rh, fin} {
		expectStatus(t, e.do(t, http.MethodPost, fmt.Sprintf("/campaigns/%d/send", c.ID), nil, e.admin), http.StatusOK)
	}

	visit := func(u *models.User, c *models.Campaign) {
		var send models.CampaignSend
		if err := e.db.Where("campaign_id = ? AND user_id = ?", c.ID, u.ID).First(&send).Error; err != nil {
			t.Fatalf("send for %s: %v", u.Email, err)
		}
		expectStatus(t, e.do(t, http.MethodGet, "/campaigns/track/"+send.Token, nil, nil), http.StatusFound)
	}
	visit(e.colab, rh)
	visit(e.colab, rh)
	visit(e.finColab, fin)
	return rh, fin
}

func TestDashboardIsScoped(t *testing.T) {
	e := newEnv(t)
	seedReport(t, e)

	var ti dashboard
	decode(t, e.do(t, http.MethodGet, "/reports/dashboard", nil, e.admin), &ti)
	if ti.Summary.TotalCampaigns != 2 || ti.Summary.ActiveCampaigns != 2 {
		t.Errorf("ti campaigns = %d/%d", ti.Summary.TotalCampaigns, ti.Summary.ActiveCampaigns)
	}
	if ti.Summary.EmailsReceived != 4 || ti.Summary.EmailsOpened != 2 || ti.Summary.EmailsClicked != 3 {
		t.Errorf("ti summary = %+v", ti.Summary)
	}
	if ti.Summary.ClickRate != 75 {
		t.Errorf("ti click rate = %v, want 75", ti.Summary.ClickRate)
	}
	if len(ti.DepartmentStats) != 2 {
		t.Errorf("ti department stats = %+v", ti.DepartmentStats)
	}
	if len(ti.RecentCampaigns) != 2 {
		t.Errorf("ti recent campaigns = %+v", ti.RecentCampaigns)
	}

	var gestor dashboard
	decode(t, e.do(t, http.MethodGet, "/reports/dashboard", nil, e.gestor), &gestor)
	if gestor.Summary.TotalCampaigns != 1 || gestor.Summary.TotalUsers != 3 {
		t.Errorf("gestor summary = %+v", gestor.Summary)
	}
	if gestor.Summary.EmailsReceived != 3 || gestor.Summary.EmailsClicked != 2 {
		t.Errorf("gestor sends/clicks = %d/%d", gestor.Summary.EmailsReceived, gestor.Summary.EmailsClicked)
	}
	if len(gestor.DepartmentStats) != 1 || gestor.DepartmentStats[0].DepartmentID != e.rh ||
		gestor.DepartmentStats[0].Sends != 3 || gestor.DepartmentStats[0].Clicks != 2 {
		t.Errorf("gestor department stats = %+v", gestor.DepartmentStats)
	}

	var colab dashboard
	decode(t, e.do(t, http.MethodGet, "/reports/dashboard", nil, e.colab2), &colab)
	if colab.Summary.TotalUsers != 1 || colab.Summary.EmailsReceived != 1 || colab.Summary.EmailsClicked != 0 {
		t.Errorf("colaborador summary = %+v", colab.Summary)
	}
	if len(colab.DepartmentStats) != 0 {
		t.Errorf("colaborador sees department stats: %+v", colab.DepartmentStats)
	}
}

func TestCampaignClicks(t *testing.T) {
	e := newEnv(t)
	rh, fin := seedReport(t, e)

	var report struct {
		CampaignID  uint  `json:"campaign_id"`
		TotalSends  int64 `json:"total_sends"`
		TotalClicks int64 `json:"total_clicks"`
		Clicks      []struct {
			FullName string `json:"full_name"`
			Email    string `json:"email"`
		} `json:"clicks"`
	}
	decode(t, e.do(t, http.MethodGet, fmt.Sprintf("/reports/campaigns/%d/clicks", rh.ID), nil, e.gestor), &report)
	if report.CampaignID != rh.ID || report.TotalSends != 3 || report.TotalClicks != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, c := range report.Clicks {
		if c.Email != e.colab.Email || c.FullName != e.colab.FullName {
			t.Errorf("click = %+v", c)
		}
	}

	decode(t, e.do(t, http.MethodGet, fmt.Sprintf("/reports/campaigns/%d/clicks", rh.ID), nil, e.colab2), &report)
	if report.TotalSends != 1 || report.TotalClicks != 0 {
		t.Errorf("colaborador report = %+v", report)
	}

	expectStatus(t, e.do(t, http.MethodGet, fmt.Sprintf("/reports/campaigns/%d/clicks", fin.ID), nil, e.gestor), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodGet, "/reports/campaigns/9999/clicks", nil, e.gestor), http.StatusNotFound)
}
