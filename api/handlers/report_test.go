package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/disaster-intake-api/lifecycle"
	"github.com/linesmerrill/disaster-intake-api/models"
)

func TestReport_ListReportsHandler(t *testing.T) {
	f := newFixture(t)
	f.reports.add(&models.EmergencyReport{ReportID: "EMR-00000001", Status: models.StatusPending})
	f.reports.add(&models.EmergencyReport{ReportID: "EMR-00000002", Status: models.StatusResolved})

	rr := httptest.NewRecorder()
	f.report.ListReportsHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/emergency/reports?status=PENDING&channel=sms&limit=500&page=0", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.ReportListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "EMR-00000001", resp.Reports[0].ReportID)
	assert.Equal(t, 100, resp.Limit)
	assert.Equal(t, 1, resp.Page)

	filter := f.reports.filters[0]
	assert.Equal(t, models.StatusPending, filter.Status)
	assert.Equal(t, models.ChannelSMS, filter.Channel)
}

func TestReport_ListReportsHandlerBadInput(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"severity=7", "severity=high"} {
		rr := httptest.NewRecorder()
		f.report.ListReportsHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/emergency/reports?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	f.reports.err = lifecycle.ErrInvalidStatus
	rr := httptest.NewRecorder()
	f.report.ListReportsHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/emergency/reports?status=closed", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	f.reports.err = errors.New("mongo down")
	rr = httptest.NewRecorder()
	f.report.ListReportsHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/emergency/reports", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestReport_CreateReportHandler(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/api/v1/emergency/reports",
		`{"phone_number":"+919876543210","category":"fire","severity":3,"description":" shop on fire ","address":"MG Road, Bengaluru, Karnataka","lat":12.97,"lng":77.59}`)
	rr := httptest.NewRecorder()
	f.report.CreateReportHandler(rr, withActor(req, "responder-1"))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var report models.EmergencyReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "EMR-00000001", report.ReportID)

	draft := f.reports.lastDraft()
	require.NotNil(t, draft)
	assert.Equal(t, models.ChannelWeb, draft.Channel)
	assert.Equal(t, "en", draft.Language)
	assert.Equal(t, "shop on fire", draft.Description)
	assert.Equal(t, "responder-1", draft.RawData["submitted_by"])
	require.NotNil(t, draft.Coordinates)
	assert.Equal(t, 12.97, draft.Coordinates.Lat)
	require.NotNil(t, draft.Location)
	assert.Equal(t, "MG Road, Bengaluru, Karnataka", draft.Location.Address)

	assert.Len(t, f.confirmer.all(), 2)
}

func TestReport_CreateReportHandlerRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"bad json", `{"description":`, nil, http.StatusBadRequest},
		{"no description", `{"category":"fire"}`, nil, http.StatusBadRequest},
		{"half coordinates", `{"description":"smoke","lat":12.9}`, nil, http.StatusBadRequest},
		{"invalid draft", `{"description":"smoke","lat":95,"lng":77}`, lifecycle.ErrInvalidDraft, http.StatusBadRequest},
		{"store failure", `{"description":"smoke"}`, errors.New("mongo down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.reports.err = tt.err
			rr := httptest.NewRecorder()
			f.report.CreateReportHandler(rr, withActor(jsonRequest(http.MethodPost, "/api/v1/emergency/reports", tt.body), "responder-1"))
			assert.Equal(t, tt.code, rr.Code)
			assert.Empty(t, f.confirmer.all())
		})
	}
}

func TestReport_ReportDetailsHandler(t *testing.T) {
	f := newFixture(t)
	f.reports.add(&models.EmergencyReport{ReportID: "EMR-00000001", Status: models.StatusPending})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/emergency/reports/EMR-00000001", nil), map[string]string{"report_id": "EMR-00000001"})
	rr := httptest.NewRecorder()
	f.report.ReportDetailsHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.ReportDetailsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "EMR-00000001", resp.Report.ReportID)

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/emergency/reports/EMR-00000009", nil), map[string]string{"report_id": "EMR-00000009"})
	rr = httptest.NewRecorder()
	f.report.ReportDetailsHandler(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReport_AcknowledgeReportHandler(t *testing.T) {
	f := newFixture(t)
	f.reports.add(&models.EmergencyReport{ReportID: "EMR-00000001", PhoneNumber: reporterPhone, Language: "en", Status: models.StatusPending})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/v1/emergency/reports/EMR-00000001/acknowledge", nil), map[string]string{"report_id": "EMR-00000001"})
	rr := httptest.NewRecorder()
	f.report.AcknowledgeReportHandler(rr, withActor(req, "responder-1"))
	require.Equal(t, http.StatusOK, rr.Code)

	var report models.EmergencyReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, models.StatusAcknowledged, report.Status)

	sent := f.confirmer.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "Report EMR-00000001: Emergency report acknowledged.", sent[0].Body)
	assert.Equal(t, reporterPhone, sent[0].To)

	// acknowledging again changes nothing and texts nobody
	rr = httptest.NewRecorder()
	f.report.AcknowledgeReportHandler(rr, withActor(req, "responder-2"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, f.confirmer.all(), 1)

	// no actor in the context
	rr = httptest.NewRecorder()
	f.report.AcknowledgeReportHandler(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReport_UpdateStatusHandler(t *testing.T) {
	f := newFixture(t)
	f.reports.add(&models.EmergencyReport{ReportID: "EMR-00000001", PhoneNumber: reporterPhone, Language: "en", Status: models.StatusAcknowledged})
	vars := map[string]string{"report_id": "EMR-00000001"}

	req := mux.SetURLVars(jsonRequest(http.MethodPut, "/api/v1/emergency/reports/EMR-00000001/status", `{"status":"in_progress","message":"team dispatched"}`), vars)
	rr := httptest.NewRecorder()
	f.report.UpdateStatusHandler(rr, withActor(req, "responder-1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, f.confirmer.all(), 1)

	_, responses, _ := f.reports.GetDetails(req.Context(), "EMR-00000001")
	require.Len(t, responses, 1)
	assert.Equal(t, "team dispatched", responses[0].Message)

	tests := []struct {
		err  error
		code int
	}{
		{lifecycle.ErrInvalidTransition, http.StatusConflict},
		{lifecycle.ErrInvalidStatus, http.StatusBadRequest},
		{lifecycle.ErrNotFound, http.StatusNotFound},
		{errors.New("mongo down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		f.reports.err = tt.err
		req := mux.SetURLVars(jsonRequest(http.MethodPut, "/api/v1/emergency/reports/EMR-00000001/status", `{"status":"resolved"}`), vars)
		rr := httptest.NewRecorder()
		f.report.UpdateStatusHandler(rr, withActor(req, "responder-1"))
		assert.Equal(t, tt.code, rr.Code, tt.err.Error())
	}

	f.reports.err = nil
	req = mux.SetURLVars(jsonRequest(http.MethodPut, "/api/v1/emergency/reports/EMR-00000001/status", `not json`), vars)
	rr = httptest.NewRecorder()
	f.report.UpdateStatusHandler(rr, withActor(req, "responder-1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReport_EmergencyServicesHandler(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"", "lat=abc&lng=77", "lat=51.5&lng=-0.12"} {
		rr := httptest.NewRecorder()
		f.report.EmergencyServicesHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/emergency/services?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	rr := httptest.NewRecorder()
	f.report.EmergencyServicesHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/emergency/services?lat=28.61&lng=77.20", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	contacts, ok := body["contacts"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, contacts)
}
