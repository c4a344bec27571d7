// Package lifecycle owns the trip state machine.
//
// All legality checks for trip transitions live here. Callers load the latest
// trip, apply one event through the Machine and persist the result with a
// compare-and-set on the previous status and revision.
package lifecycle

import (
	"strings"
	"time"

	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/approval"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/risk"
)

// Event is something that moves a trip between statuses.
type Event string

const (
	EventCreate   Event = "create"
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventResubmit Event = "resubmit"
	EventStart    Event = "start"
	EventFinish   Event = "finish"
)

// eventOrder fixes the order in which allowed events are reported.
var eventOrder = []Event{EventCreate, EventApprove, EventReject, EventResubmit, EventStart, EventFinish}

// transitions is the complete table. The empty status is "no trip yet".
var transitions = map[models.TripStatus]map[Event]models.TripStatus{
	"": {
		EventCreate: models.TripPendingApproval,
	},
	models.TripPendingApproval: {
		EventApprove: models.TripApproved,
		EventReject:  models.TripRejected,
	},
	models.TripRejected: {
		EventResubmit: models.TripPendingApproval,
	},
	models.TripApproved: {
		EventStart: models.TripInProgress,
	},
	models.TripInProgress: {
		EventFinish: models.TripCompleted,
	},
}

// Next returns the status reached by applying ev in from.
func Next(from models.TripStatus, ev Event) (models.TripStatus, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	allowed := Allowed(from)
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", &apperr.InvalidTransition{From: string(from), Event: string(ev), Allowed: names}
}

// Allowed lists the events legal in status from.
func Allowed(from models.TripStatus) []Event {
	var out []Event
	for _, ev := range eventOrder {
		if _, ok := transitions[from][ev]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// Machine applies events to trips. Now stamps decisions and defaults to time.Now.
type Machine struct {
	Now func() time.Time
}

// NewMachine returns a Machine using the wall clock.
func NewMachine() *Machine {
	return &Machine{Now: time.Now}
}

func (m *Machine) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

// Create builds a new pending trip from a planner's draft.
// ID and Code are assigned by the caller when the trip is stored.
func (m *Machine) Create(draft models.TripDraft, actor models.Actor) (models.Trip, error) {
	to, err := Next("", EventCreate)
	if err != nil {
		return models.Trip{}, err
	}
	if actor.UserID == "" {
		return models.Trip{}, &apperr.AuthorizationError{Reason: "an authenticated user is required to plan trips"}
	}
	if actor.Role == models.RoleDriver {
		return models.Trip{}, &apperr.AuthorizationError{Reason: "drivers cannot plan trips"}
	}
	assessment, err := validateDraft(draft)
	if err != nil {
		return models.Trip{}, err
	}
	now := m.now()
	t := models.Trip{
		CreatedBy: actor.UserID,
		CreatedAt: now,
		Reviews:   []models.Review{},
	}
	applyDraft(&t, draft, assessment)
	t.Status = to
	t.UpdatedAt = now
	return t, nil
}

// Approve moves a pending trip to approved. The comment is optional.
func (m *Machine) Approve(t *models.Trip, actor models.Actor, comment string) error {
	to, err := Next(t.Status, EventApprove)
	if err != nil {
		return err
	}
	if err := authorizeDecision(t, actor); err != nil {
		return err
	}
	m.decide(t, actor, models.DecisionApproved, strings.TrimSpace(comment))
	t.Status = to
	return nil
}

// Reject moves a pending trip to rejected. A comment is mandatory.
func (m *Machine) Reject(t *models.Trip, actor models.Actor, comment string) error {
	to, err := Next(t.Status, EventReject)
	if err != nil {
		return err
	}
	if err := authorizeDecision(t, actor); err != nil {
		return err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return apperr.NewValidation("comment", "a rejection reason is required")
	}
	m.decide(t, actor, models.DecisionRejected, comment)
	t.Status = to
	return nil
}

// Resubmit applies an edited draft to a rejected trip and sends it back for
// approval. Risk is assessed again from scratch, so the trip routes to the
// tier its new answers demand.
func (m *Machine) Resubmit(t *models.Trip, actor models.Actor, draft models.TripDraft) error {
	to, err := Next(t.Status, EventResubmit)
	if err != nil {
		return err
	}
	if actor.UserID != t.CreatedBy && actor.Role != models.RoleAdmin {
		return &apperr.AuthorizationError{Reason: "only the trip's creator or an administrator may edit it"}
	}
	assessment, err := validateDraft(draft)
	if err != nil {
		return err
	}
	applyDraft(t, draft, assessment)
	t.SupervisorID = ""
	t.ApprovalComment = ""
	t.Status = to
	t.UpdatedAt = m.now()
	return nil
}

// Start moves an approved trip to in progress. Only the assigned driver may start it.
func (m *Machine) Start(t *models.Trip, actor models.Actor) error {
	to, err := Next(t.Status, EventStart)
	if err != nil {
		return err
	}
	if err := authorizeDriver(t, actor); err != nil {
		return err
	}
	t.Status = to
	t.UpdatedAt = m.now()
	return nil
}

// Finish completes an in-progress trip. A signature artifact is required.
func (m *Machine) Finish(t *models.Trip, actor models.Actor, signature string) error {
	to, err := Next(t.Status, EventFinish)
	if err != nil {
		return err
	}
	if err := authorizeDriver(t, actor); err != nil {
		return err
	}
	if strings.TrimSpace(signature) == "" {
		return apperr.NewValidation("signature", "a signature is required to finish the trip")
	}
	t.Status = to
	t.UpdatedAt = m.now()
	return nil
}

func (m *Machine) decide(t *models.Trip, actor models.Actor, decision models.ReviewDecision, comment string) {
	now := m.now()
	t.Reviews = append(t.Reviews, models.Review{
		Decision:     decision,
		SupervisorID: actor.UserID,
		Role:         actor.Role,
		Tier:         t.RiskTier,
		Comment:      comment,
		DecidedAt:    now,
	})
	t.SupervisorID = actor.UserID
	t.ApprovalComment = comment
	t.UpdatedAt = now
}

func authorizeDecision(t *models.Trip, actor models.Actor) error {
	if approval.IsAuthorized(actor.Role, t.RiskTier) {
		return nil
	}
	required, err := approval.RequiredRole(t.RiskTier)
	if err != nil {
		return &apperr.AuthorizationError{Reason: err.Error()}
	}
	return &apperr.AuthorizationError{
		Reason: "trips of " + string(t.RiskTier) + " risk are decided by " + string(required) + ", not " + string(actor.Role),
	}
}

func authorizeDriver(t *models.Trip, actor models.Actor) error {
	if actor.DriverID == "" || actor.DriverID != t.DriverID {
		return &apperr.AuthorizationError{Reason: "only the assigned driver may execute this trip"}
	}
	return nil
}

// Reassess re-derives the risk score and tier from the stored answers.
// It reports whether the stored values disagreed with the derivation.
func Reassess(t *models.Trip) (bool, error) {
	a, err := risk.Assess(risk.FromStrings(t.RiskAnswers))
	if err != nil {
		return false, err
	}
	changed := a.Score != t.RiskScore || a.Tier != t.RiskTier
	t.RiskScore = a.Score
	t.RiskTier = a.Tier
	return changed, nil
}
