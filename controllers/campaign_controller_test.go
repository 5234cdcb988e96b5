package controller_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"safeclicker/models"
	"safeclicker/testutil"
)

type sendResult struct {
	CampaignID  uint   `json:"campaign_id"`
	Recipients  int    `json:"recipients"`
	Departments []uint `json:"departments"`
	Sent        int    `json:"sent"`
	Errors      []struct {
		Email string `json:"email"`
		Error string `json:"error"`
	} `json:"errors"`
	Status string `json:"status"`
}

func TestGetCampaignScope(t *testing.T) {
	e := newEnv(t)
	own := e.campaign(t, models.Campaign{Name: "rh", DepartmentID: testutil.Uint(e.rh)})
	other := e.campaign(t, models.Campaign{Name: "fin", DepartmentID: testutil.Uint(e.fin)})

	tests := []struct {
		name string
		user *models.User
		id   uint
		want int
	}{
		{"ti sees any", e.admin, other.ID, http.StatusOK},
		{"gestor own department", e.gestor, own.ID, http.StatusOK},
		{"gestor other department", e.gestor, other.ID, http.StatusForbidden},
		{"colaborador own department", e.colab, own.ID, http.StatusOK},
		{"colaborador other department", e.colab, other.ID, http.StatusForbidden},
		{"missing campaign", e.admin, 9999, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.do(t, http.MethodGet, fmt.Sprintf("/campaigns/%d", tc.id), nil, tc.user)
			expectStatus(t, resp, tc.want)
		})
	}
}

func TestListCampaignsIsScoped(t *testing.T) {
	e := newEnv(t)
	e.campaign(t, models.Campaign{Name: "rh-1", DepartmentID: testutil.Uint(e.rh)})
	e.campaign(t, models.Campaign{Name: "rh-2", DepartmentID: testutil.Uint(e.rh)})
	e.campaign(t, models.Campaign{Name: "fin", DepartmentID: testutil.Uint(e.fin)})
	e.campaign(t, models.Campaign{Name: "orphan"})

	var page struct {
		Data  []models.Campaign `json:"data"`
		Total int64             `json:"total"`
	}

	decode(t, e.do(t, http.MethodGet, "/campaigns", nil, e.gestor), &page)
	if page.Total != 2 || len(page.Data) != 2 {
		t.Fatalf("gestor sees %d campaigns (total %d), want 2", len(page.Data), page.Total)
	}
	for _, c := range page.Data {
		if !strings.HasPrefix(c.Name, "rh-") {
			t.Errorf("gestor sees %q", c.Name)
		}
	}

	decode(t, e.do(t, http.MethodGet, "/campaigns", nil, e.admin), &page)
	if page.Total != 4 {
		t.Errorf("ti total = %d, want 4", page.Total)
	}
}

func TestCreateCampaign(t *testing.T) {
	e := newEnv(t)

	body := map[string]interface{}{
		"name":            "Senha expirada",
		"html_template":   `<a href="{{tracking_url}}">Renovar</a>`,
		"target_audience": []uint{e.rh},
	}
	resp := e.do(t, http.MethodPost, "/campaigns", body, e.gestor)
	expectStatus(t, resp, http.StatusCreated)

	var created struct {
		Data models.Campaign `json:"data"`
	}
	decode(t, resp, &created)
	if created.Data.DepartmentID == nil || *created.Data.DepartmentID != e.rh {
		t.Errorf("department_id = %v, want gestor's department %d", created.Data.DepartmentID, e.rh)
	}
	if created.Data.Status != models.CampaignStatusDraft {
		t.Errorf("status = %q, want draft", created.Data.Status)
	}

	var stored models.Campaign
	e.db.First(&stored, created.Data.ID)
	if stored.TargetAudience.String() != fmt.Sprint(e.rh) {
		t.Errorf("stored audience = %q", stored.TargetAudience.String())
	}
}

func TestCreateCampaignRejected(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		user *models.User
		body map[string]interface{}
		want int
	}{
		{"colaborador cannot create", e.colab, map[string]interface{}{"name": "x"}, http.StatusForbidden},
		{"gestor other department", e.gestor, map[string]interface{}{"name": "x", "department_id": e.fin}, http.StatusForbidden},
		{"missing name", e.admin, map[string]interface{}{"html_template": "x"}, http.StatusBadRequest},
		{"unknown status", e.admin, map[string]interface{}{"name": "x", "status": "sent"}, http.StatusBadRequest},
		{"active without sending", e.gestor, map[string]interface{}{"name": "x", "status": "active"}, http.StatusBadRequest},
		{"unknown department", e.admin, map[string]interface{}{"name": "x", "target_audience": "999"}, http.StatusBadRequest},
		{"malformed audience", e.admin, map[string]interface{}{"name": "x", "target_audience": "a,b"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.do(t, http.MethodPost, "/campaigns", tc.body, tc.user)
			expectStatus(t, resp, tc.want)
		})
	}

	var n int64
	e.db.Model(&models.Campaign{}).Count(&n)
	if n != 0 {
		t.Errorf("%d campaigns created by rejected requests", n)
	}
}

func TestUpdateCampaignCannotLeaveScope(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, models.Campaign{Name: "rh", DepartmentID: testutil.Uint(e.rh)})

	resp := e.do(t, http.MethodPut, fmt.Sprintf("/campaigns/%d", c.ID), map[string]interface{}{"department_id": e.fin}, e.gestor)
	expectStatus(t, resp, http.StatusForbidden)

	resp = e.do(t, http.MethodPut, fmt.Sprintf("/campaigns/%d", c.ID), map[string]interface{}{"subject": "Fatura pendente"}, e.gestor)
	expectStatus(t, resp, http.StatusOK)

	var stored models.Campaign
	e.db.First(&stored, c.ID)
	if stored.Subject != "Fatura pendente" || stored.Name != "rh" {
		t.Errorf("after update name=%q subject=%q", stored.Name, stored.Subject)
	}
	if stored.DepartmentID == nil || *stored.DepartmentID != e.rh {
		t.Errorf("department changed to %v", stored.DepartmentID)
	}
}

func TestUpdateCampaignCannotActivate(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, models.Campaign{Name: "rh", DepartmentID: testutil.Uint(e.rh), TargetAudience: models.DepartmentSet{e.rh}})
	path := fmt.Sprintf("/campaigns/%d", c.ID)

	expectStatus(t, e.do(t, http.MethodPut, path, map[string]interface{}{"status": "active"}, e.gestor), http.StatusBadRequest)

	var stored models.Campaign
	e.db.First(&stored, c.ID)
	if stored.Status != models.CampaignStatusDraft {
		t.Errorf("status = %q, want draft", stored.Status)
	}

	// Once sent, the campaign may be edited with its status unchanged or paused.
	expectStatus(t, e.do(t, http.MethodPost, path+"/send", nil, e.admin), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodPut, path, map[string]interface{}{"status": "active", "subject": "Novo"}, e.gestor), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodPut, path, map[string]interface{}{"status": "paused"}, e.gestor), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodPut, path, map[string]interface{}{"status": "active"}, e.gestor), http.StatusBadRequest)
}

func TestDeleteCampaign(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, models.Campaign{Name: "rh", DepartmentID: testutil.Uint(e.rh)})
	path := fmt.Sprintf("/campaigns/%d", c.ID)

	expectStatus(t, e.do(t, http.MethodDelete, path, nil, e.colab), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodDelete, path, nil, e.gestor), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, path, nil, e.admin), http.StatusNotFound)
}

func TestSendCampaignAndTrack(t *testing.T) {
	e := newEnv(t)
	e.mailer.fail["bia@example.com"] = true
	c := e.campaign(t, models.Campaign{
		Name:           "rh",
		Subject:        "Atualize seu cadastro",
		DepartmentID:   testutil.Uint(e.rh),
		TargetAudience: models.DepartmentSet{e.rh},
	})

	resp := e.do(t, http.MethodPost, fmt.Sprintf("/campaigns/%d/send", c.ID), nil, e.gestor)
	expectStatus(t, resp, http.StatusOK)

	var result sendResult
	decode(t, resp, &result)
	if result.CampaignID != c.ID || result.Recipients != 3 || result.Sent != 2 || result.Status != "active" {
		t.Fatalf("result = %+v", result)
	}
	if fmt.Sprint(result.Departments) != fmt.Sprint([]uint{e.rh}) {
		t.Errorf("departments = %v", result.Departments)
	}
	if len(result.Errors) != 1 || result.Errors[0].Email != "bia@example.com" {
		t.Errorf("errors = %+v", result.Errors)
	}

	var send models.CampaignSend
	if err := e.db.Where("campaign_id = ? AND user_id = ?", c.ID, e.colab.ID).First(&send).Error; err != nil {
		t.Fatalf("send for ana: %v", err)
	}

	// The tracking endpoint is public.
	trackPath := "/campaigns/track/" + send.Token
	resp = e.do(t, http.MethodGet, trackPath, nil, nil)
	expectStatus(t, resp, http.StatusFound)
	if got, want := resp.Header.Get("Location"), landingURL+"?token="+send.Token; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	expectStatus(t, e.do(t, http.MethodGet, trackPath, nil, nil), http.StatusFound)

	e.db.First(&send, send.ID)
	if !send.Opened || send.OpenedAt == nil {
		t.Errorf("send not opened after visit")
	}
	var clicks int64
	e.db.Model(&models.ClickEvent{}).Where("campaign_send_id = ?", send.ID).Count(&clicks)
	if clicks != 2 {
		t.Errorf("click events = %d, want 2", clicks)
	}

	expectStatus(t, e.do(t, http.MethodGet, "/campaigns/track/not-a-token", nil, nil), http.StatusNotFound)
}

func TestSendCampaignRejected(t *testing.T) {
	e := newEnv(t)
	rh := e.campaign(t, models.Campaign{Name: "rh", DepartmentID: testutil.Uint(e.rh), TargetAudience: models.DepartmentSet{e.rh}})
	fin := e.campaign(t, models.Campaign{Name: "fin", DepartmentID: testutil.Uint(e.fin), TargetAudience: models.DepartmentSet{e.fin}})
	untargeted := e.campaign(t, models.Campaign{Name: "none", DepartmentID: testutil.Uint(e.rh)})

	tests := []struct {
		name string
		user *models.User
		id   uint
		want int
	}{
		{"colaborador", e.colab, rh.ID, http.StatusForbidden},
		{"gestor other department", e.gestor, fin.ID, http.StatusForbidden},
		{"missing campaign", e.admin, 9999, http.StatusNotFound},
		{"colaborador missing campaign", e.colab, 9999, http.StatusNotFound},
		{"no target", e.admin, untargeted.ID, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.do(t, http.MethodPost, fmt.Sprintf("/campaigns/%d/send", tc.id), nil, tc.user)
			expectStatus(t, resp, tc.want)
		})
	}

	if len(e.mailer.sent) != 0 {
		t.Errorf("rejected dispatches sent %d messages", len(e.mailer.sent))
	}
}

func TestListSendsIsScoped(t *testing.T) {
	e := newEnv(t)
	c := e.campaign(t, models.Campaign{Name: "rh", DepartmentID: testutil.Uint(e.rh), TargetAudience: models.DepartmentSet{e.rh}})
	expectStatus(t, e.do(t, http.MethodPost, fmt.Sprintf("/campaigns/%d/send", c.ID), nil, e.admin), http.StatusOK)

	var page struct {
		Data []models.CampaignSend `json:"data"`
	}
	decode(t, e.do(t, http.MethodGet, fmt.Sprintf("/campaigns/%d/sends", c.ID), nil, e.gestor), &page)
	if len(page.Data) != 3 {
		t.Fatalf("gestor sees %d sends, want 3", len(page.Data))
	}

	decode(t, e.do(t, http.MethodGet, fmt.Sprintf("/campaigns/%d/sends", c.ID), nil, e.colab), &page)
	if len(page.Data) != 1 || page.Data[0].UserID != e.colab.ID {
		t.Fatalf("colaborador sees %+v, want only own send", page.Data)
	}
	if page.Data[0].User == nil || page.Data[0].User.Email != e.colab.Email {
		t.Errorf("recipient not preloaded: %+v", page.Data[0].User)
	}
}
