package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/api"
	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/channels"
	"github.com/linesmerrill/disaster-intake-api/config"
	"github.com/linesmerrill/disaster-intake-api/lifecycle"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
)

// ivrTerminalStatuses end a call from the provider's side
var ivrTerminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"no-answer": true,
	"busy":      true,
	"canceled":  true,
}

// Webhook adapts the SMS, USSD and IVR gateway callbacks to the channel drivers
type Webhook struct {
	SMS     *channels.SMS
	USSD    *channels.USSD
	IVR     *channels.IVR
	Reports ReportService
	Catalog *catalog.Catalog
	Limiter *api.RateLimiter
	Metrics *api.Metrics
	BaseURL string

	notifier reporterNotifier
}

type channelResponse struct {
	Status    channels.Status    `json:"status"`
	Kind      channels.ErrorKind `json:"error_kind,omitempty"`
	Message   string             `json:"message"`
	MenuLevel int                `json:"menu_level,omitempty"`
	ReportID  string             `json:"report_id,omitempty"`
	Script    *channels.Script   `json:"script,omitempty"`
}

// SMSHandler takes one inbound text: from, body and an optional language
func (h Webhook) SMSHandler(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		config.ErrorStatus("failed to read sms webhook", http.StatusBadRequest, w, err)
		return
	}
	from := p.get("from", "From")
	if from == "" {
		config.ErrorStatus("missing sender", http.StatusBadRequest, w, nil)
		return
	}
	lang := h.language(p.get("language"), from)
	if !h.allow(models.ChannelSMS, from) {
		h.tooMany(w, lang, false)
		return
	}

	out := h.SMS.Handle(r.Context(), channels.SMSMessage{
		From:     from,
		Body:     p.get("body", "Body"),
		Language: p.get("language"),
	})
	h.observe(models.ChannelSMS, out)

	if out.Created() {
		h.notifier.created(r.Context(), out.Report)
	} else {
		h.notifier.reply(r.Context(), location.NormalizePhone(from), out.Language, out.Message)
	}
	writeJSON(w, http.StatusOK, channelResponse{
		Status:   out.Status,
		Kind:     out.Kind,
		Message:  out.Message,
		ReportID: out.ReportID,
	})
}

// USSDHandler applies one menu step
func (h Webhook) USSDHandler(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		config.ErrorStatus("failed to read ussd webhook", http.StatusBadRequest, w, err)
		return
	}
	phone := p.get("phone_number", "phoneNumber")
	lang := h.language(p.get("language"), phone)
	if phone != "" && !h.allow(models.ChannelUSSD, phone) {
		h.tooMany(w, lang, false)
		return
	}

	level, _ := strconv.Atoi(p.get("menu_level"))
	out := h.USSD.Step(r.Context(), channels.USSDRequest{
		PhoneNumber: phone,
		SessionID:   p.get("session_id", "sessionId"),
		MenuLevel:   level,
		Input:       p["user_input"],
		Language:    p.get("language"),
	})
	h.observe(models.ChannelUSSD, out)

	if out.Created() {
		h.notifier.created(r.Context(), out.Report)
	}
	resp := channelResponse{
		Status:   out.Status,
		Kind:     out.Kind,
		Message:  out.Message,
		ReportID: out.ReportID,
	}
	if out.Status != channels.StatusSuccess {
		resp.MenuLevel = int(out.State)
	}
	writeJSON(w, http.StatusOK, resp)
}

// USSDEndHandler drops a session the gateway closed
func (h Webhook) USSDEndHandler(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		config.ErrorStatus("failed to read ussd end webhook", http.StatusBadRequest, w, err)
		return
	}
	phone, sessionID := p.get("phone_number", "phoneNumber"), p.get("session_id", "sessionId")
	if phone == "" || sessionID == "" {
		config.ErrorStatus("missing phone number or session id", http.StatusBadRequest, w, nil)
		return
	}
	if err := h.USSD.End(r.Context(), phone, sessionID); err != nil {
		config.ErrorStatus("failed to end ussd session", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}

// IVRHandler applies one call-flow callback and returns the next script
func (h Webhook) IVRHandler(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		config.ErrorStatus("failed to read ivr webhook", http.StatusBadRequest, w, err)
		return
	}
	phone := p.get("phone_number", "From")
	lang := h.language(p.get("language"), phone)
	if phone != "" && !h.allow(models.ChannelIVR, phone) {
		h.tooMany(w, lang, wantsTwiML(r))
		return
	}

	out := h.IVR.Step(r.Context(), channels.IVRRequest{
		PhoneNumber: phone,
		CallID:      p.get("call_id", "CallSid"),
		Action:      mux.Vars(r)["action"],
		Digits:      p.get("digits", "Digits"),
		Transcript:  p.get("transcript", "TranscriptionText", "SpeechResult"),
		Language:    p.get("language"),
	})
	h.observe(models.ChannelIVR, out)

	if out.Created() {
		h.notifier.callBack(r.Context(), out.Report)
	}
	h.writeScript(w, r, http.StatusOK, out)
}

// IVRStatusHandler logs the provider's call status and drops the session of
// a finished call
func (h Webhook) IVRStatusHandler(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		config.ErrorStatus("failed to read ivr status webhook", http.StatusBadRequest, w, err)
		return
	}
	callID := p.get("call_id", "CallSid")
	phone := p.get("phone_number", "From")
	status := strings.ToLower(p.get("call_status", "CallStatus"))
	zap.S().Infow("ivr call status", "call_id", callID, "phone", location.MaskPhone(phone), "status", status)

	ended := ivrTerminalStatuses[status] && callID != "" && phone != ""
	if ended {
		if err := h.IVR.End(r.Context(), phone, callID); err != nil {
			zap.S().Errorw("failed to end ivr session", "call_id", callID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": status, "ended": ended})
}

// IVRConfirmationHandler serves the script of the confirmation call-back
func (h Webhook) IVRConfirmationHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]
	report, _, err := h.Reports.GetDetails(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotFound) {
			config.ErrorStatus("report not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get report", http.StatusInternalServerError, w, err)
		return
	}
	lang := r.URL.Query().Get("language")
	if lang == "" {
		lang = report.Language
	}
	script := h.IVR.ConfirmationScript(lang, report.ReportID)
	h.writeScript(w, r, http.StatusOK, channels.Outcome{
		Status:   channels.StatusSuccess,
		Language: script.Language,
		Message:  h.Catalog.Messagef(h.Catalog.Match(lang), catalog.MsgIVRConfirmation, report.ReportID),
		ReportID: report.ReportID,
		Script:   script,
	})
}

func (h Webhook) writeScript(w http.ResponseWriter, r *http.Request, status int, out channels.Outcome) {
	if wantsTwiML(r) && out.Script != nil {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		if err := out.Script.WriteTwiML(w, h.BaseURL); err != nil {
			zap.S().Errorw("failed to render twiml", "error", err)
		}
		return
	}
	writeJSON(w, status, channelResponse{
		Status:   out.Status,
		Kind:     out.Kind,
		Message:  out.Message,
		ReportID: out.ReportID,
		Script:   out.Script,
	})
}

func (h Webhook) allow(channel models.Channel, phone string) bool {
	if h.Limiter == nil || h.Limiter.Allow(location.NormalizePhone(phone)) {
		return true
	}
	if h.Metrics != nil {
		h.Metrics.RateLimited.WithLabelValues(string(channel)).Inc()
	}
	zap.S().Warnw("webhook rate limited", "channel", channel, "phone", location.MaskPhone(phone))
	return false
}

func (h Webhook) tooMany(w http.ResponseWriter, lang string, twiml bool) {
	msg := h.Catalog.Message(lang, catalog.MsgTryAgainLater)
	if twiml {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusTooManyRequests)
		h.IVR.BusyScript(lang).WriteTwiML(w, h.BaseURL)
		return
	}
	writeJSON(w, http.StatusTooManyRequests, channelResponse{
		Status:  channels.StatusError,
		Kind:    channels.KindDependency,
		Message: msg,
	})
}

func (h Webhook) observe(channel models.Channel, out channels.Outcome) {
	if h.Metrics == nil {
		return
	}
	outcome := string(out.Status)
	if out.Kind != channels.KindNone {
		outcome = string(out.Kind)
	}
	h.Metrics.ChannelStep(channel, outcome)
	if out.Created() {
		h.Metrics.ReportCreated(out.Report)
	}
}

func (h Webhook) language(explicit, phone string) string {
	if explicit != "" {
		return h.Catalog.Match(explicit)
	}
	return h.Catalog.Match(h.Catalog.DetectLanguage(phone))
}

func wantsTwiML(r *http.Request) bool {
	if r.URL.Query().Get("format") == "twiml" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/xml") || strings.Contains(accept, "text/xml")
}
