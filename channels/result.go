// Package channels turns raw SMS, USSD and IVR gateway input into report
// drafts and hands completed drafts to the lifecycle manager.
package channels

import (
	"context"
	"errors"
	"time"

	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/sessions"
)

const completeTimeout = 5 * time.Second

// completeClaim records reportID against a session claim once the report is
// stored. It runs past the caller's deadline so a gateway retry always finds
// the report id.
func completeClaim(ctx context.Context, store sessions.Store, key sessions.Key, reportID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
	defer cancel()
	return store.Complete(ctx, key, reportID)
}

// ErrFormat matches every FormatError
var ErrFormat = errors.New("malformed channel input")

// FormatError describes input that does not follow a channel's grammar
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "malformed channel input: " + e.Reason
}

// Is lets errors.Is(err, ErrFormat) match
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Status is the coarse result of one channel step
type Status string

// Step statuses
const (
	StatusMenu    Status = "menu"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorKind says why a step ended in StatusError
type ErrorKind string

// Error kinds
const (
	KindNone         ErrorKind = ""
	KindFormat       ErrorKind = "format"
	KindDependency   ErrorKind = "dependency"
	KindExpired      ErrorKind = "expired"
	KindInvalidState ErrorKind = "invalid_state"
	KindPending      ErrorKind = "pending"
)

// Outcome is what a channel step produced. Message is always set and already
// localized for the reporter.
type Outcome struct {
	Status   Status
	Kind     ErrorKind
	Message  string
	Language string
	State    sessions.State
	// ReportID is set on success. Report is only set when this step created
	// the report; a retried final step gets the id of the earlier report.
	ReportID string
	Report   *models.EmergencyReport
	Script   *Script
}

// Created reports whether this step stored a new report
func (o Outcome) Created() bool {
	return o.Report != nil
}

// Reports creates reports from completed drafts
type Reports interface {
	Create(ctx context.Context, draft *models.ReportDraft) (*models.EmergencyReport, error)
}
