package channels

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/sessions"
)

// MinDescriptionLength is the shortest free-text description accepted
const MinDescriptionLength = 3

// USSDRequest is one menu step from the gateway
type USSDRequest struct {
	PhoneNumber string
	SessionID   string
	// MenuLevel is the gateway's view of the menu depth. The session store is
	// authoritative; the level is only used to tell a fresh dial from a step
	// of a session that has since expired.
	MenuLevel int
	Input     string
	Language  string
}

// USSD drives the menu conversation:
// menu -> category -> severity -> description -> success.
type USSD struct {
	store    sessions.Store
	reports  Reports
	catalog  *catalog.Catalog
	resolver *location.Resolver
	now      func() time.Time
}

// NewUSSD returns a USSD driver
func NewUSSD(store sessions.Store, reports Reports, c *catalog.Catalog, resolver *location.Resolver) *USSD {
	if resolver == nil {
		resolver = location.NewResolver(nil)
	}
	return &USSD{
		store:    store,
		reports:  reports,
		catalog:  c,
		resolver: resolver,
		now:      time.Now,
	}
}

// Step applies one input to the caller's session
func (u *USSD) Step(ctx context.Context, req USSDRequest) Outcome {
	lang := resolveLanguage(u.catalog, req.Language, req.PhoneNumber)
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.SessionID) == "" {
		return u.restart(lang)
	}
	key := sessions.Key{
		Channel:     models.ChannelUSSD,
		PhoneNumber: location.NormalizePhone(req.PhoneNumber),
		SessionID:   req.SessionID,
	}

	sess, err := u.store.Get(ctx, key)
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		if req.MenuLevel > int(sessions.StateMenu) {
			return u.lostSession(ctx, key, lang)
		}
		sess = sessions.New(key, lang, u.now())
	case err != nil:
		zap.S().Errorw("failed to load ussd session", "session_id", req.SessionID, "error", err)
		return dependencyFailure(u.catalog, lang, sessions.State(req.MenuLevel))
	}
	if req.Language != "" {
		sess.Language = lang
	}
	lang = sess.Language
	input := strings.TrimSpace(req.Input)

	switch sess.State {
	case sessions.StateMenu:
		sess.Advance(sessions.StateCategory)
		return u.save(ctx, sess, u.catalog.CategoryMenu(lang))

	case sessions.StateCategory:
		cat, ok := catalog.CategoryFromDigit(input)
		if !ok {
			return u.reprompt(sess, u.catalog.CategoryMenu(lang))
		}
		sess.Category = cat
		sess.Advance(sessions.StateSeverity)
		return u.save(ctx, sess, u.catalog.SeverityMenu(lang))

	case sessions.StateSeverity:
		severity, ok := catalog.SeverityFromDigit(input)
		if !ok {
			return u.reprompt(sess, u.catalog.SeverityMenu(lang))
		}
		sess.Severity = severity
		sess.Advance(sessions.StateDescription)
		return u.save(ctx, sess, u.catalog.Message(lang, catalog.MsgEnterDescription))

	case sessions.StateDescription:
		if utf8.RuneCountInString(input) < MinDescriptionLength {
			return Outcome{
				Status:   StatusError,
				Kind:     KindFormat,
				Language: lang,
				State:    sess.State,
				Message:  u.catalog.Message(lang, catalog.MsgDescriptionTooShort),
			}
		}
		sess.Description = input
		return u.complete(ctx, sess)
	}

	zap.S().Warnw("ussd session in invalid state", "session_id", sess.SessionID, "state", sess.State)
	if err := u.store.Delete(ctx, key); err != nil {
		zap.S().Errorw("failed to delete ussd session", "session_id", sess.SessionID, "error", err)
	}
	return u.restart(lang)
}

// End drops a session the gateway reports as closed
func (u *USSD) End(ctx context.Context, phoneNumber, sessionID string) error {
	return u.store.Delete(ctx, sessions.Key{
		Channel:     models.ChannelUSSD,
		PhoneNumber: location.NormalizePhone(phoneNumber),
		SessionID:   sessionID,
	})
}

func (u *USSD) save(ctx context.Context, sess *sessions.Session, message string) Outcome {
	sess.UpdatedAt = u.now()
	if err := u.store.Put(ctx, sess); err != nil {
		if errors.Is(err, sessions.ErrExpired) {
			return u.expired(sess.Language)
		}
		zap.S().Errorw("failed to save ussd session", "session_id", sess.SessionID, "error", err)
		return dependencyFailure(u.catalog, sess.Language, sess.State)
	}
	return Outcome{
		Status:   StatusMenu,
		Language: sess.Language,
		State:    sess.State,
		Message:  message,
	}
}

func (u *USSD) reprompt(sess *sessions.Session, menu string) Outcome {
	return Outcome{
		Status:   StatusError,
		Kind:     KindFormat,
		Language: sess.Language,
		State:    sess.State,
		Message:  u.catalog.Message(sess.Language, catalog.MsgInvalidFormat) + "\n" + menu,
	}
}

func (u *USSD) complete(ctx context.Context, sess *sessions.Session) Outcome {
	lang := sess.Language
	key := sess.Key()
	if u.now().Sub(sess.CreatedAt) >= sessionTTL(u.store) {
		_ = u.store.Delete(ctx, key)
		return u.expired(lang)
	}

	existing, claimed, err := u.store.Claim(ctx, key)
	if err != nil {
		zap.S().Errorw("failed to claim ussd session", "session_id", sess.SessionID, "error", err)
		return dependencyFailure(u.catalog, lang, sess.State)
	}
	if !claimed {
		return u.claimedElsewhere(lang, existing)
	}

	report, err := u.reports.Create(ctx, &models.ReportDraft{
		Channel:     models.ChannelUSSD,
		Language:    lang,
		PhoneNumber: sess.PhoneNumber,
		Category:    sess.Category,
		Severity:    sess.Severity,
		Description: sess.Description,
		Location:    u.resolver.ResolveByPhone(sess.PhoneNumber),
		RawData: map[string]interface{}{
			"session_id": sess.SessionID,
			"started_at": sess.CreatedAt,
		},
	})
	if err != nil {
		zap.S().Errorw("failed to create ussd report", "session_id", sess.SessionID, "error", err)
		if rerr := u.store.Release(ctx, key); rerr != nil {
			zap.S().Errorw("failed to release ussd session claim", "session_id", sess.SessionID, "error", rerr)
		}
		return dependencyFailure(u.catalog, lang, sess.State)
	}
	if err := completeClaim(ctx, u.store, key, report.ReportID); err != nil {
		zap.S().Errorw("failed to complete ussd session", "session_id", sess.SessionID, "report_id", report.ReportID, "error", err)
	}

	return Outcome{
		Status:   StatusSuccess,
		Language: lang,
		Message:  u.successMessage(lang, report.ReportID),
		ReportID: report.ReportID,
		Report:   report,
	}
}

// lostSession answers a step whose session is gone: either it was completed
// and this is a gateway retry, or it timed out
func (u *USSD) lostSession(ctx context.Context, key sessions.Key, lang string) Outcome {
	existing, claimed, err := u.store.Claim(ctx, key)
	if err != nil {
		zap.S().Errorw("failed to check ussd session claim", "session_id", key.SessionID, "error", err)
		return dependencyFailure(u.catalog, lang, 0)
	}
	if claimed {
		_ = u.store.Release(ctx, key)
		return u.expired(lang)
	}
	return u.claimedElsewhere(lang, existing)
}

func (u *USSD) claimedElsewhere(lang, reportID string) Outcome {
	if reportID == "" {
		return Outcome{
			Status:   StatusError,
			Kind:     KindPending,
			Language: lang,
			State:    sessions.StateDescription,
			Message:  u.catalog.Message(lang, catalog.MsgSubmissionPending),
		}
	}
	return Outcome{
		Status:   StatusSuccess,
		Language: lang,
		Message:  u.successMessage(lang, reportID),
		ReportID: reportID,
	}
}

func (u *USSD) successMessage(lang, reportID string) string {
	return u.catalog.Message(lang, catalog.MsgEmergencyReceived) + "\n" + u.catalog.Messagef(lang, catalog.MsgReportID, reportID)
}

func (u *USSD) expired(lang string) Outcome {
	return Outcome{
		Status:   StatusError,
		Kind:     KindExpired,
		Language: lang,
		Message:  u.catalog.Message(lang, catalog.MsgSessionExpired),
	}
}

func (u *USSD) restart(lang string) Outcome {
	return Outcome{
		Status:   StatusError,
		Kind:     KindInvalidState,
		Language: lang,
		Message:  u.catalog.Message(lang, catalog.MsgRestart),
	}
}

// sessionTTL asks the store for its lifetime when it exposes one
func sessionTTL(store sessions.Store) time.Duration {
	if s, ok := store.(interface{ TTL() time.Duration }); ok {
		return s.TTL()
	}
	return sessions.DefaultTTL
}
