package planning

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/db/dbtest"
	"github.com/ukydev/trip-approvals/internal/lifecycle"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/risk"
)

var (
	now     = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	planner = models.Actor{UserID: "u-planner", Role: models.RoleUser}
	tier1   = models.Actor{UserID: "u-sup1", Role: models.RoleSupervisorTier1}
	tier2   = models.Actor{UserID: "u-sup2", Role: models.RoleSupervisorTier2}
	tier3   = models.Actor{UserID: "u-sup3", Role: models.RoleSupervisorTier3}
)

func lowAnswers() map[string]string {
	return map[string]string{
		"distance": "short", "road_condition": "degraded", "weather": "clear",
		"communication": "partial", "convoy": "paired", "traffic": "moderate",
	}
}

func highAnswers() map[string]string {
	return map[string]string{
		"distance": "long", "road_condition": "unpaved", "weather": "severe",
		"communication": "none", "convoy": "solo", "traffic": "heavy",
	}
}

func draft(answers map[string]string) models.TripDraft {
	return models.TripDraft{
		ClientID:       "c1",
		DriverID:       "d1",
		VehicleID:      "v1",
		Origin:         "Quito",
		Destination:    "Lago Agrio",
		DepartureAt:    now.Add(48 * time.Hour),
		ArrivalAt:      now.Add(56 * time.Hour),
		PriorDutyHours: 2,
		Purpose:        "Pipe delivery",
		RiskAnswers:    answers,
	}
}

type fixture struct {
	mem    *db.MemoryStore
	faulty *dbtest.FaultyStore
	trips  *db.TripStore
	refs   *db.ReferenceStore
	logs   *test.Hook
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := db.NewMemoryStore()
	faulty := dbtest.NewFaultyStore(mem)
	logger, hook := test.NewNullLogger()
	f := &fixture{
		mem:    mem,
		faulty: faulty,
		trips:  db.NewTripStore(faulty, time.Second),
		refs:   db.NewReferenceStore(faulty, time.Second),
		logs:   hook,
	}
	f.svc = NewService(f.trips, f.refs, &lifecycle.Machine{Now: func() time.Time { return now }}, log.NewEntry(logger))

	ctx := context.Background()
	_, err := f.refs.InsertClient(ctx, models.Client{ID: "c1", Name: "Petroandes"})
	require.NoError(t, err)
	_, err = f.refs.InsertDriver(ctx, models.Driver{ID: "d1", Name: "Ana Ruiz", Status: models.StatusActive})
	require.NoError(t, err)
	_, err = f.refs.InsertDriver(ctx, models.Driver{ID: "d9", Name: "Luis Mora", Status: "inactive"})
	require.NoError(t, err)
	_, err = f.refs.InsertVehicle(ctx, models.Vehicle{ID: "v1", Plate: "PBA-1234", Status: models.StatusActive})
	require.NoError(t, err)
	return f
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	trip, err := f.svc.Submit(context.Background(), draft(lowAnswers()), planner)
	require.NoError(t, err)

	assert.NotEmpty(t, trip.ID)
	assert.Equal(t, "TRP-000001", trip.Code)
	assert.Equal(t, models.TripPendingApproval, trip.Status)
	assert.Equal(t, 10, trip.RiskScore)
	assert.Equal(t, risk.TierLow, trip.RiskTier)
	assert.Equal(t, "u-planner", trip.CreatedBy)
	assert.Equal(t, models.RoleSupervisorTier1, f.logs.LastEntry().Data["approver_role"])
}

func TestSubmit_LogsApproverForTier(t *testing.T) {
	f := newFixture(t)
	trip, err := f.svc.Submit(context.Background(), draft(highAnswers()), planner)
	require.NoError(t, err)
	assert.Equal(t, risk.TierHigh, trip.RiskTier)

	entry := f.logs.LastEntry()
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, models.RoleSupervisorTier3, entry.Data["approver_role"])
}

func TestSubmit_References(t *testing.T) {
	f := newFixture(t)
	d := draft(lowAnswers())
	d.ClientID = "ghost"
	d.DriverID = "d9"
	d.VehicleID = "v404"

	_, err := f.svc.Submit(context.Background(), d, planner)
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "unknown client", verr.Fields["client_id"])
	assert.Equal(t, "driver is not active", verr.Fields["driver_id"])
	assert.Equal(t, "unknown vehicle", verr.Fields["vehicle_id"])

	trips, err := f.trips.FindTrips(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trips)
}

func TestSubmit_MissingAnswerIsNotScored(t *testing.T) {
	f := newFixture(t)
	answers := lowAnswers()
	delete(answers, "weather")

	_, err := f.svc.Submit(context.Background(), draft(answers), planner)
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "risk_answers.weather")
}

func TestSubmit_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.faulty.Fail(dbtest.OpCreate, db.CollectionTrips, errors.New("no primary"))

	_, err := f.svc.Submit(context.Background(), draft(lowAnswers()), planner)
	var sf *apperr.StorageFailure
	require.True(t, errors.As(err, &sf))
}

func TestApprove_RaceLoserGetsStaleState(t *testing.T) {
	f := newFixture(t)
	trip, err := f.svc.Submit(context.Background(), draft(lowAnswers()), planner)
	require.NoError(t, err)

	other := models.Actor{UserID: "u-sup1b", Role: models.RoleSupervisorTier1}
	f.faulty.BeforeUpdateIf = func(ctx context.Context, collection, id string) {
		f.faulty.BeforeUpdateIf = nil
		// The other tier-1 supervisor rejects first.
		_, err := f.svc.Reject(ctx, id, other, "Route closed")
		require.NoError(t, err)
	}

	_, err = f.svc.Approve(context.Background(), trip.ID, tier1, "")
	assert.True(t, errors.Is(err, apperr.ErrStaleState))

	stored, err := f.svc.Get(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TripRejected, stored.Status)
	require.Len(t, stored.Reviews, 1)
	assert.Equal(t, "u-sup1b", stored.Reviews[0].SupervisorID)
}

func TestApprove_RecheckedAgainstLatestState(t *testing.T) {
	f := newFixture(t)
	trip, err := f.svc.Submit(context.Background(), draft(lowAnswers()), planner)
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), trip.ID, tier1, "Missing permit")
	require.NoError(t, err)

	// A second supervisor acting on a stale view.
	_, err = f.svc.Approve(context.Background(), trip.ID, tier1, "")
	var terr *apperr.InvalidTransition
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "rejected", terr.From)
	assert.Equal(t, []string{"resubmit"}, terr.Allowed)
}

func TestResubmit_ReroutesToNewTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := f.svc.Submit(ctx, draft(lowAnswers()), planner)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, trip.ID, tier1, "Weather report is outdated")
	require.NoError(t, err)

	resubmitted, err := f.svc.Resubmit(ctx, trip.ID, draft(highAnswers()), planner)
	require.NoError(t, err)
	assert.Equal(t, models.TripPendingApproval, resubmitted.Status)
	assert.Equal(t, risk.TierHigh, resubmitted.RiskTier)
	assert.Empty(t, resubmitted.ApprovalComment)
	require.Len(t, resubmitted.Reviews, 1)
	assert.Equal(t, "Weather report is outdated", resubmitted.Reviews[0].Comment)

	_, err = f.svc.Approve(ctx, trip.ID, tier1, "")
	var aerr *apperr.AuthorizationError
	require.True(t, errors.As(err, &aerr))

	approved, err := f.svc.Approve(ctx, trip.ID, tier3, "Escort confirmed")
	require.NoError(t, err)
	assert.Equal(t, models.TripApproved, approved.Status)
	assert.Len(t, approved.Reviews, 2)
}

func TestResubmit_ReloadDropsPriorDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := f.svc.Submit(ctx, draft(lowAnswers()), planner)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, trip.ID, tier1, "Missing convoy plan")
	require.NoError(t, err)
	_, err = f.svc.Resubmit(ctx, trip.ID, draft(lowAnswers()), planner)
	require.NoError(t, err)

	reloaded, err := f.svc.Get(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TripPendingApproval, reloaded.Status)
	assert.Empty(t, reloaded.SupervisorID)
	assert.Empty(t, reloaded.ApprovalComment)
	require.Len(t, reloaded.Reviews, 1)
	assert.Equal(t, "u-sup1", reloaded.Reviews[0].SupervisorID)
	assert.Equal(t, "Missing convoy plan", reloaded.Reviews[0].Comment)
}

func TestResubmit_OnlyFromRejected(t *testing.T) {
	f := newFixture(t)
	trip, err := f.svc.Submit(context.Background(), draft(lowAnswers()), planner)
	require.NoError(t, err)

	_, err = f.svc.Resubmit(context.Background(), trip.ID, draft(highAnswers()), planner)
	var terr *apperr.InvalidTransition
	require.True(t, errors.As(err, &terr))

	stored, err := f.svc.Get(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, risk.TierLow, stored.RiskTier)
}

func TestGet_DerivedTierWins(t *testing.T) {
	f := newFixture(t)
	trip, err := f.svc.Submit(context.Background(), draft(lowAnswers()), planner)
	require.NoError(t, err)
	// Tamper with the stored tier directly.
	_, err = f.mem.UpdateRecord(context.Background(), db.CollectionTrips, trip.ID, db.Record{"risk_tier": "high", "risk_score": 25})
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, risk.TierLow, got.RiskTier)
	assert.Equal(t, 10, got.RiskScore)
	assert.Equal(t, log.WarnLevel, f.logs.LastEntry().Level)

	// Routing follows the derived tier too.
	_, err = f.svc.Approve(context.Background(), trip.ID, tier3, "")
	var aerr *apperr.AuthorizationError
	assert.True(t, errors.As(err, &aerr))
	_, err = f.svc.Approve(context.Background(), trip.ID, tier1, "")
	assert.NoError(t, err)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGet_CorruptAnswersAreInconsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := f.svc.Submit(ctx, draft(lowAnswers()), planner)
	require.NoError(t, err)
	_, err = f.mem.UpdateRecord(ctx, db.CollectionTrips, trip.ID, db.Record{"risk_answers": map[string]string{"distance": "teleport"}})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, trip.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInconsistentRecord))
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "unknown option teleport", verr.Fields["distance"])
	var sterr *apperr.StorageFailure
	assert.False(t, errors.As(err, &sterr))

	_, err = f.svc.Approve(ctx, trip.ID, tier1, "")
	assert.True(t, errors.Is(err, apperr.ErrInconsistentRecord))
}
