package handlers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/notify"
)

// Confirmer queues messages owed to a reporter
type Confirmer interface {
	Enqueue(ctx context.Context, c *models.Confirmation) error
}

const enqueueTimeout = 5 * time.Second

// reporterNotifier decides which messages a reporter gets and queues them.
// Queue failures are logged; they never fail the request that caused them.
type reporterNotifier struct {
	confirmer Confirmer
	catalog   *catalog.Catalog
	baseURL   string
}

func (n reporterNotifier) enqueue(ctx context.Context, c *models.Confirmation) {
	if n.confirmer == nil || c.To == "" {
		return
	}
	// the report already exists, so the message is owed even if the
	// caller has gone away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if err := n.confirmer.Enqueue(ctx, c); err != nil {
		zap.S().Errorw("failed to queue confirmation", "report_id", c.ReportID, "kind", c.Kind, "error", err)
	}
}

// reply texts a reporter who sent an SMS that did not produce a report
func (n reporterNotifier) reply(ctx context.Context, to, lang, body string) {
	n.enqueue(ctx, &models.Confirmation{Kind: models.ConfirmationSMS, To: to, Language: lang, Body: body})
}

// created sends the confirmation text and the safety instructions for a new
// report
func (n reporterNotifier) created(ctx context.Context, r *models.EmergencyReport) {
	n.enqueue(ctx, notify.SMS(r, n.catalog.ConfirmationText(r.Language, r)))
	n.enqueue(ctx, notify.SMS(r, n.catalog.InstructionsText(r.Language, r.Category)))
}

// callBack schedules the confirmation call for a report taken over the phone
func (n reporterNotifier) callBack(ctx context.Context, r *models.EmergencyReport) {
	u := strings.TrimRight(n.baseURL, "/") + "/ivr/confirmation/" + url.PathEscape(r.ReportID) +
		"?language=" + url.QueryEscape(r.Language)
	n.enqueue(ctx, notify.Voice(r, u))
	n.enqueue(ctx, notify.SMS(r, n.catalog.InstructionsText(r.Language, r.Category)))
}

// statusChanged tells the reporter about a responder's update
func (n reporterNotifier) statusChanged(ctx context.Context, r *models.EmergencyReport) {
	key := catalog.StatusMessageKey(r.Status)
	if key == "" {
		return
	}
	body := n.catalog.Messagef(r.Language, catalog.MsgReportStatus, r.ReportID, n.catalog.Message(r.Language, key))
	n.enqueue(ctx, notify.SMS(r, body))
}
