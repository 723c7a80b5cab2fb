package service

import (
	"context"

	"github.com/google/uuid"
)

// Event types pushed to location subscribers.
const (
	EventReportCreated      = "report.created"
	EventReportUpdated      = "report.updated"
	EventReportDeleted      = "report.deleted"
	EventReportSubmitted    = "report.submitted"
	EventReportApproved     = "report.approved"
	EventReportRejected     = "report.rejected"
	EventInvitationCreated  = "invitation.created"
	EventInvitationResent   = "invitation.resent"
	EventInvitationCanceled = "invitation.canceled"
	EventInvitationAccepted = "invitation.accepted"
	EventMembershipCreated  = "membership.created"
	EventMembershipUpdated  = "membership.updated"
	EventMembershipRemoved  = "membership.removed"
)

// Publisher fans an event out to everyone watching a location.
type Publisher interface {
	Publish(locationID uuid.UUID, eventType string, payload interface{})
}

// SubscriptionRevoker is implemented by publishers that keep per-user
// subscriptions. RevokeLocation stops delivery of a location's events to a
// user who no longer belongs to it.
type SubscriptionRevoker interface {
	RevokeLocation(userID, locationID uuid.UUID)
}

// Mailer sends a templated email. Implementations may deliver
// asynchronously; an error means the message was not accepted for delivery.
type Mailer interface {
	Send(ctx context.Context, to, templateKey string, data map[string]interface{}) error
}

// Mail templates.
const (
	TemplateInvitation = "invitation"
)

type noopPublisher struct{}

func (noopPublisher) Publish(uuid.UUID, string, interface{}) {}

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, map[string]interface{}) error { return nil }
