package channels

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/sessions"
)

const (
	// MaxAttempts is how many invalid inputs a caller gets per prompt
	MaxAttempts = 3

	descriptionSeconds = 60
	locationSeconds    = 30
)

// IVRRequest is one call-flow callback. Transcript carries the already
// transcribed text of a recording.
type IVRRequest struct {
	PhoneNumber string
	CallID      string
	Action      string
	Digits      string
	Transcript  string
	Language    string
}

// IVR drives the voice call flow:
// welcome -> category -> severity -> description -> location -> confirmation.
// Pressing 0 at the first menu transfers the caller to an operator.
type IVR struct {
	store          sessions.Store
	reports        Reports
	catalog        *catalog.Catalog
	resolver       *location.Resolver
	operatorNumber string
	now            func() time.Time
}

// NewIVR returns an IVR driver
func NewIVR(store sessions.Store, reports Reports, c *catalog.Catalog, resolver *location.Resolver, operatorNumber string) *IVR {
	if resolver == nil {
		resolver = location.NewResolver(nil)
	}
	return &IVR{
		store:          store,
		reports:        reports,
		catalog:        c,
		resolver:       resolver,
		operatorNumber: operatorNumber,
		now:            time.Now,
	}
}

// Step applies one callback to the call's session and returns the next script
func (v *IVR) Step(ctx context.Context, req IVRRequest) Outcome {
	lang := resolveLanguage(v.catalog, req.Language, req.PhoneNumber)
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.CallID) == "" {
		return v.fail(lang, KindInvalidState)
	}
	key := sessions.Key{
		Channel:     models.ChannelIVR,
		PhoneNumber: location.NormalizePhone(req.PhoneNumber),
		SessionID:   req.CallID,
	}

	sess, err := v.store.Get(ctx, key)
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		if req.Action != "" && req.Action != ActionWelcome {
			return v.lostSession(ctx, key, lang)
		}
		sess = sessions.New(key, lang, v.now())
	case err != nil:
		zap.S().Errorw("failed to load ivr session", "call_id", req.CallID, "error", err)
		return v.fail(lang, KindDependency)
	}
	lang = sess.Language

	switch sess.State {
	case sessions.StateMenu:
		sess.Advance(sessions.StateCategory)
		script := v.script(ActionWelcome, lang).
			say(v.catalog.Message(lang, catalog.MsgIVRWelcome)).
			gather(v.catalog.Message(lang, catalog.MsgIVRCategory), ActionCategory)
		return v.save(ctx, sess, script)

	case sessions.StateCategory:
		digit := strings.TrimSpace(req.Digits)
		if digit == "0" {
			return v.transfer(ctx, sess)
		}
		cat, ok := catalog.CategoryFromDigit(digit)
		if !ok {
			return v.retry(ctx, sess, ActionCategory, func(s *Script) *Script {
				return s.gather(v.catalog.Message(lang, catalog.MsgIVRCategory), ActionCategory)
			})
		}
		sess.Category = cat
		sess.Advance(sessions.StateSeverity)
		script := v.script(ActionSeverity, lang).
			gather(v.catalog.Message(lang, catalog.MsgIVRSeverity), ActionSeverity)
		return v.save(ctx, sess, script)

	case sessions.StateSeverity:
		severity, ok := catalog.SeverityFromDigit(strings.TrimSpace(req.Digits))
		if !ok {
			return v.retry(ctx, sess, ActionSeverity, func(s *Script) *Script {
				return s.gather(v.catalog.Message(lang, catalog.MsgIVRSeverity), ActionSeverity)
			})
		}
		sess.Severity = severity
		sess.Advance(sessions.StateDescription)
		script := v.script(ActionDescription, lang).
			say(v.catalog.Message(lang, catalog.MsgIVRDescription)).
			record(descriptionSeconds, ActionDescription)
		return v.save(ctx, sess, script)

	case sessions.StateDescription:
		text := strings.TrimSpace(req.Transcript)
		if text == "" {
			return v.retry(ctx, sess, ActionDescription, func(s *Script) *Script {
				return s.say(v.catalog.Message(lang, catalog.MsgIVRDescription)).record(descriptionSeconds, ActionDescription)
			})
		}
		sess.Description = text
		sess.Advance(sessions.StateLocation)
		script := v.script(ActionLocation, lang).
			say(v.catalog.Message(lang, catalog.MsgIVRLocation)).
			record(locationSeconds, ActionLocation)
		return v.save(ctx, sess, script)

	case sessions.StateLocation:
		sess.LocationText = strings.TrimSpace(req.Transcript)
		return v.complete(ctx, sess)
	}

	zap.S().Warnw("ivr session in invalid state", "call_id", sess.SessionID, "state", sess.State)
	v.drop(ctx, key)
	return v.fail(lang, KindInvalidState)
}

// End drops the session of a finished call
func (v *IVR) End(ctx context.Context, phoneNumber, callID string) error {
	return v.store.Delete(ctx, sessions.Key{
		Channel:     models.ChannelIVR,
		PhoneNumber: location.NormalizePhone(phoneNumber),
		SessionID:   callID,
	})
}

// ConfirmationScript is played on the call-back placed after a report is
// stored
func (v *IVR) ConfirmationScript(lang, reportID string) *Script {
	lang = v.catalog.Match(lang)
	return v.script(ActionConfirmation, lang).
		say(v.catalog.Messagef(lang, catalog.MsgIVRConfirmation, spell(reportID))).
		say(v.catalog.Message(lang, catalog.MsgIVRGoodbye)).
		hangup()
}

// BusyScript turns a caller away when the line is over its rate limit
func (v *IVR) BusyScript(lang string) *Script {
	lang = v.catalog.Match(lang)
	return v.script(ActionError, lang).
		say(v.catalog.Message(lang, catalog.MsgTryAgainLater)).
		hangup()
}

func (v *IVR) complete(ctx context.Context, sess *sessions.Session) Outcome {
	lang := sess.Language
	key := sess.Key()
	if v.now().Sub(sess.CreatedAt) >= sessionTTL(v.store) {
		v.drop(ctx, key)
		return v.fail(lang, KindExpired)
	}

	existing, claimed, err := v.store.Claim(ctx, key)
	if err != nil {
		zap.S().Errorw("failed to claim ivr session", "call_id", sess.SessionID, "error", err)
		return v.fail(lang, KindDependency)
	}
	if !claimed {
		return v.claimedElsewhere(lang, existing)
	}

	hint := v.resolver.ResolveByPhone(sess.PhoneNumber)
	if hint == nil && sess.LocationText != "" {
		hint = v.resolver.ResolveByAddress(sess.LocationText)
	}
	switch {
	case sess.LocationText != "":
		if hint == nil {
			hint = &models.LocationHint{}
		}
		hint.Address = sess.LocationText
	case hint != nil:
		hint.Address = location.Format(hint)
	}

	report, err := v.reports.Create(ctx, &models.ReportDraft{
		Channel:     models.ChannelIVR,
		Language:    lang,
		PhoneNumber: sess.PhoneNumber,
		Category:    sess.Category,
		Severity:    sess.Severity,
		Description: sess.Description,
		Location:    hint,
		RawData: map[string]interface{}{
			"call_id":       sess.SessionID,
			"location_text": sess.LocationText,
			"started_at":    sess.CreatedAt,
		},
	})
	if err != nil {
		zap.S().Errorw("failed to create ivr report", "call_id", sess.SessionID, "error", err)
		if rerr := v.store.Release(ctx, key); rerr != nil {
			zap.S().Errorw("failed to release ivr session claim", "call_id", sess.SessionID, "error", rerr)
		}
		return v.fail(lang, KindDependency)
	}
	if err := completeClaim(ctx, v.store, key, report.ReportID); err != nil {
		zap.S().Errorw("failed to complete ivr session", "call_id", sess.SessionID, "report_id", report.ReportID, "error", err)
	}

	out := v.success(lang, report.ReportID)
	out.Report = report
	return out
}

func (v *IVR) lostSession(ctx context.Context, key sessions.Key, lang string) Outcome {
	existing, claimed, err := v.store.Claim(ctx, key)
	if err != nil {
		zap.S().Errorw("failed to check ivr session claim", "call_id", key.SessionID, "error", err)
		return v.fail(lang, KindDependency)
	}
	if claimed {
		_ = v.store.Release(ctx, key)
		return v.fail(lang, KindExpired)
	}
	return v.claimedElsewhere(lang, existing)
}

func (v *IVR) claimedElsewhere(lang, reportID string) Outcome {
	if reportID == "" {
		out := v.fail(lang, KindPending)
		out.Message = v.catalog.Message(lang, catalog.MsgSubmissionPending)
		return out
	}
	return v.success(lang, reportID)
}

func (v *IVR) success(lang, reportID string) Outcome {
	script := v.ConfirmationScript(lang, reportID)
	return Outcome{
		Status:   StatusSuccess,
		Language: lang,
		State:    sessions.StateConfirmation,
		Message:  v.catalog.Messagef(lang, catalog.MsgIVRConfirmation, reportID),
		ReportID: reportID,
		Script:   script,
	}
}

func (v *IVR) save(ctx context.Context, sess *sessions.Session, script *Script) Outcome {
	sess.UpdatedAt = v.now()
	if err := v.store.Put(ctx, sess); err != nil {
		if errors.Is(err, sessions.ErrExpired) {
			return v.fail(sess.Language, KindExpired)
		}
		zap.S().Errorw("failed to save ivr session", "call_id", sess.SessionID, "error", err)
		return v.fail(sess.Language, KindDependency)
	}
	return Outcome{
		Status:   StatusMenu,
		Language: sess.Language,
		State:    sess.State,
		Message:  script.lastText(),
		Script:   script,
	}
}

// retry replays a prompt after invalid input, giving up after MaxAttempts
func (v *IVR) retry(ctx context.Context, sess *sessions.Session, action string, prompt func(*Script) *Script) Outcome {
	sess.Attempts++
	if sess.Attempts >= MaxAttempts {
		v.drop(ctx, sess.Key())
		return v.fail(sess.Language, KindFormat)
	}
	out := v.save(ctx, sess, prompt(v.script(action, sess.Language).say(v.catalog.Message(sess.Language, catalog.MsgIVRInvalid))))
	if out.Status == StatusMenu {
		out.Status = StatusError
		out.Kind = KindFormat
	}
	return out
}

func (v *IVR) transfer(ctx context.Context, sess *sessions.Session) Outcome {
	lang := sess.Language
	v.drop(ctx, sess.Key())
	script := v.script(ActionOperatorTransfer, lang).
		say(v.catalog.Message(lang, catalog.MsgIVRTransfer)).
		dial(v.operatorNumber)
	return Outcome{
		Status:   StatusMenu,
		Language: lang,
		State:    sess.State,
		Message:  v.catalog.Message(lang, catalog.MsgIVRTransfer),
		Script:   script,
	}
}

func (v *IVR) fail(lang string, kind ErrorKind) Outcome {
	key := catalog.MsgTryAgainLater
	if kind == KindExpired || kind == KindInvalidState {
		key = catalog.MsgRestart
	}
	script := v.script(ActionError, lang).
		say(v.catalog.Message(lang, catalog.MsgIVRError)).
		say(v.catalog.Message(lang, key)).
		hangup()
	return Outcome{
		Status:   StatusError,
		Kind:     kind,
		Language: lang,
		Message:  v.catalog.Message(lang, catalog.MsgIVRError),
		Script:   script,
	}
}

func (v *IVR) drop(ctx context.Context, key sessions.Key) {
	if err := v.store.Delete(ctx, key); err != nil {
		zap.S().Errorw("failed to delete ivr session", "call_id", key.SessionID, "error", err)
	}
}

func (v *IVR) script(action, lang string) *Script {
	return newScript(action, catalog.VoiceLocale(lang), twimlVoice)
}

// spell separates the characters of an id so it is read out one by one
func spell(id string) string {
	return strings.Join(strings.Split(id, ""), " ")
}
