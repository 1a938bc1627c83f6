package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chayanC7mondal/project-sync-sub000/internal/dto"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/hearingcode"
)

const testCase = "CR/001/2025"

type ledgerFixture struct {
	db      *memDB
	codec   *hearingcode.Codec
	limiter *limiterStub
	svc     *AttendanceService
}

func newLedgerFixture(t *testing.T, cfg AttendanceConfig) *ledgerFixture {
	t.Helper()
	codec, err := hearingcode.New("test-secret")
	require.NoError(t, err)

	db := newMemDB()
	db.addAttendee("sup-1", "Superintendent Iyer", models.AttendeeRoleOfficer, "")
	db.addAttendee("o-1", "Inspector Rao", models.AttendeeRoleOfficer, "sup-1")
	db.addAttendee("w-1", "Asha Menon", models.AttendeeRoleWitness, "")
	db.addAttendee("w-2", "Vikram Das", models.AttendeeRoleWitness, "")
	db.addHearing("h-1", testCase, "2025-03-14", "10:00", models.HearingStatusScheduled, "o-1", "w-1")

	limiter := newLimiterStub()
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = 15 * time.Minute
	}
	svc := NewAttendanceService(memHearings{db}, memRecords{db}, memDirectory{db}, codec, limiter, nil, nil, nil, cfg)
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 50, 0, 0, time.UTC) }
	return &ledgerFixture{db: db, codec: codec, limiter: limiter, svc: svc}
}

func (f *ledgerFixture) codes(date string) hearingcode.Codes {
	return f.codec.Derive(testCase, day(date))
}

func manualClaim(token, attendee string, role models.AttendeeRole) models.AttendanceClaim {
	return models.AttendanceClaim{Token: token, CaseID: testCase, AttendeeID: attendee, AttendeeName: attendee, Role: role, Method: models.AttendanceMethodManual}
}

func TestMarkSelfPresentWithManualCode(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	claim := manualClaim(strings.ToLower(f.codes("2025-03-14").ManualToken), "w-1", models.AttendeeRoleWitness)
	claim.Location = &models.GeoPoint{Latitude: 12.97, Longitude: 77.59}

	res, err := f.svc.MarkSelf(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeMarked, res.Outcome)
	assert.Equal(t, models.AttendanceStatusPresent, res.Record.Status)
	assert.Equal(t, models.AttendanceMethodManual, res.Record.Method)
	assert.Equal(t, "h-1", res.Hearing.ID)

	stored := f.db.record("h-1", "w-1")
	assert.Equal(t, models.AttendanceStatusPresent, stored.Status)
	require.NotNil(t, stored.Latitude)
	assert.InDelta(t, 12.97, *stored.Latitude, 1e-9)
}

func TestMarkSelfLateAfterGraceWindow(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 14, 10, 16, 0, 0, time.UTC) }
	date := day("2025-03-14")
	claim := models.AttendanceClaim{
		Token: f.codes("2025-03-14").QRToken, CaseID: testCase, HearingDate: &date,
		AttendeeID: "o-1", Role: models.AttendeeRoleOfficer, Method: models.AttendanceMethodQR,
	}

	res, err := f.svc.MarkSelf(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, res.Record.Status)
	assert.Equal(t, models.AttendanceMethodQR, res.Record.Method)
}

func TestMarkSelfAtGraceBoundaryIsPresent(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 14, 10, 15, 0, 0, time.UTC) }

	res, err := f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness))
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, res.Record.Status)
}

func TestMarkSelfTwiceIsSoftSuccess(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	claim := manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness)

	_, err := f.svc.MarkSelf(context.Background(), claim)
	require.NoError(t, err)
	first := f.db.record("h-1", "w-1")

	f.svc.now = func() time.Time { return time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC) }
	res, err := f.svc.MarkSelf(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeAlreadyMarked, res.Outcome)
	assert.Equal(t, models.AttendanceStatusPresent, res.Record.Status)
	assert.Equal(t, first.MarkedAt, res.Record.MarkedAt)
}

func TestMarkSelfConcurrentSubmissionsMarkOnce(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	claim := manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness)

	const callers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		outcome = map[models.MarkOutcome]int{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.MarkSelf(context.Background(), claim)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			outcome[res.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcome[models.MarkOutcomeMarked])
	assert.Equal(t, callers-1, outcome[models.MarkOutcomeAlreadyMarked])
}

func TestMarkSelfRejectionsLookAlike(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})

	_, wrongCode := f.svc.MarkSelf(context.Background(), manualClaim("ZZZZZ-2222", "w-1", models.AttendeeRoleWitness))
	require.ErrorIs(t, wrongCode, appErrors.ErrInvalidCode)

	unknown := manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness)
	unknown.CaseID = "CR/999/2025"
	_, unknownCase := f.svc.MarkSelf(context.Background(), unknown)
	require.ErrorIs(t, unknownCase, appErrors.ErrHearingNotFound)

	a, b := appErrors.FromError(wrongCode), appErrors.FromError(unknownCase)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, models.AttendanceStatusPending, f.db.record("h-1", "w-1").Status)
}

func TestMarkSelfCodeScopedToHearingDate(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.db.addHearing("h-2", testCase, "2025-03-21", "10:00", models.HearingStatusScheduled, "w-1")
	next := day("2025-03-21")
	claim := manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness)
	claim.HearingDate = &next

	_, err := f.svc.MarkSelf(context.Background(), claim)
	require.ErrorIs(t, err, appErrors.ErrInvalidCode)
}

func TestMarkSelfNotOnRoster(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})

	_, err := f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "w-2", models.AttendeeRoleWitness))
	require.ErrorIs(t, err, appErrors.ErrNotExpected)

	_, err = f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleOfficer))
	require.ErrorIs(t, err, appErrors.ErrNotExpected)
}

func TestMarkSelfClosedHearing(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.db.hearings["h-1"].Status = models.HearingStatusCancelled
	date := day("2025-03-14")
	claim := manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness)
	claim.HearingDate = &date

	_, err := f.svc.MarkSelf(context.Background(), claim)
	require.ErrorIs(t, err, appErrors.ErrHearingNotFound)

	f.svc.config.RequireOpenHearing = false
	res, err := f.svc.MarkSelf(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeMarked, res.Outcome)
}

func TestMarkSelfThrottlesRepeatedFailures(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true, MaxFailedAttempts: 2, AttemptWindow: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := f.svc.MarkSelf(context.Background(), manualClaim("WRONG-CODE", "w-1", models.AttendeeRoleWitness))
		require.ErrorIs(t, err, appErrors.ErrInvalidCode)
	}
	_, err := f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness))
	require.ErrorIs(t, err, appErrors.ErrTooManyAttempts)

	// other attendees are unaffected
	_, err = f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "o-1", models.AttendeeRoleOfficer))
	require.NoError(t, err)
}

func TestMarkSelfThrottlesRotatingAttendeeIDsPerClient(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true, MaxFailedAttempts: 2, AttemptWindow: time.Minute})

	guess := func(token, attendee string) error {
		claim := manualClaim(token, attendee, models.AttendeeRoleWitness)
		claim.ClientIP = "203.0.113.7"
		_, err := f.svc.MarkSelf(context.Background(), claim)
		return err
	}

	require.ErrorIs(t, guess("WRONG-CODE", "anon-0"), appErrors.ErrInvalidCode)
	require.ErrorIs(t, guess("WRONG-CODE", "anon-1"), appErrors.ErrInvalidCode)
	for i := 2; i < 20; i++ {
		require.ErrorIs(t, guess("WRONG-CODE", fmt.Sprintf("anon-%d", i)), appErrors.ErrTooManyAttempts)
	}

	// a correct code no longer reveals itself through the roster check
	err := guess(f.codes("2025-03-14").ManualToken, "anon-999")
	require.ErrorIs(t, err, appErrors.ErrTooManyAttempts)
	assert.NotErrorIs(t, err, appErrors.ErrNotExpected)
	assert.Equal(t, 2, f.limiter.counts["attendance:attempts:"+testCase+":client:203.0.113.7"])

	// another client on the same case keeps its own budget
	claim := manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness)
	claim.ClientIP = "198.51.100.4"
	_, err = f.svc.MarkSelf(context.Background(), claim)
	require.NoError(t, err)
}

func TestMarkSelfSuccessResetsAttempts(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true, MaxFailedAttempts: 3})

	_, err := f.svc.MarkSelf(context.Background(), manualClaim("WRONG-CODE", "w-1", models.AttendeeRoleWitness))
	require.Error(t, err)
	_, err = f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness))
	require.NoError(t, err)
	assert.Empty(t, f.limiter.counts)
}

type failingHearings struct{ memHearings }

func (failingHearings) FindNearestOpen(ctx context.Context, caseID string, d time.Time) (*models.HearingSession, error) {
	return nil, errStoreDown
}

func TestMarkSelfStoreUnavailable(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.svc.hearings = failingHearings{memHearings{f.db}}

	_, err := f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErr.Code)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestMarkSelfValidation(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})

	_, err := f.svc.MarkSelf(context.Background(), manualClaim("", "w-1", models.AttendeeRoleWitness))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	claim := manualClaim(f.codes("2025-03-14").ManualToken, "w-1", models.AttendeeRoleWitness)
	claim.Location = &models.GeoPoint{Latitude: 123, Longitude: 0}
	_, err = f.svc.MarkSelf(context.Background(), claim)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSweepAbsencesBuildsRequests(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.db.addHearing("h-2", testCase, "2025-04-02", "11:30", models.HearingStatusScheduled, "o-1", "w-1")

	batches, err := f.svc.SweepAbsences(context.Background(), time.Date(2025, 3, 15, 0, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	batch := batches[0]
	assert.Equal(t, "h-1", batch.Hearing.ID)
	require.Len(t, batch.Absent, 2)

	kinds := map[models.TriggerKind][]models.NotificationRequest{}
	for _, r := range batch.Requests {
		kinds[r.TriggerKind] = append(kinds[r.TriggerKind], r)
		assert.Equal(t, models.PriorityUrgent, r.Priority)
	}
	require.Len(t, kinds[models.TriggerOfficerAbsent], 1)
	require.Len(t, kinds[models.TriggerWitnessAbsent], 1)
	require.Len(t, kinds[models.TriggerBothAbsent], 2)

	witness := kinds[models.TriggerWitnessAbsent][0]
	assert.Equal(t, "w-1", witness.Recipient.ID)
	assert.Equal(t, "+91000w-1", witness.Recipient.Phone)
	assert.Contains(t, witness.Message, "legal consequences")
	assert.Contains(t, witness.Message, "Wed 02 Apr 2025 at 11:30")

	recipients := []string{kinds[models.TriggerBothAbsent][0].Recipient.ID, kinds[models.TriggerBothAbsent][1].Recipient.ID}
	assert.ElementsMatch(t, []string{"o-1", "sup-1"}, recipients)

	assert.Equal(t, models.AttendanceStatusAbsent, f.db.record("h-1", "w-1").Status)
	assert.Equal(t, models.HearingStatusCompleted, f.db.hearings["h-1"].Status)
	assert.Equal(t, models.AttendanceStatusPending, f.db.record("h-2", "w-1").Status)

	again, err := f.svc.SweepAbsences(context.Background(), time.Date(2025, 3, 15, 0, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSweepAbsencesSkipsMarkedAndSameDay(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})

	batches, err := f.svc.SweepAbsences(context.Background(), time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, batches)

	_, err = f.svc.MarkSelf(context.Background(), manualClaim(f.codes("2025-03-14").ManualToken, "o-1", models.AttendeeRoleOfficer))
	require.NoError(t, err)

	batches, err = f.svc.SweepAbsences(context.Background(), time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Absent, 1)
	assert.Equal(t, "w-1", batches[0].Absent[0].AttendeeID)
	for _, r := range batches[0].Requests {
		assert.NotEqual(t, models.TriggerBothAbsent, r.TriggerKind)
	}
	assert.Equal(t, models.AttendanceStatusPresent, f.db.record("h-1", "o-1").Status)
}

func TestSweepAbsencesConcurrentSweepsReportOnce(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	asOf := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batches, err := f.svc.SweepAbsences(context.Background(), asOf)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			for _, b := range batches {
				total += len(b.Absent)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, total)
}

func TestSweepAbsencesContinuesPastFailingHearing(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.db.addHearing("h-0", "CR/002/2025", "2025-03-13", "10:00", models.HearingStatusScheduled, "w-2")
	f.db.failSweep["h-0"] = errStoreDown

	batches, err := f.svc.SweepAbsences(context.Background(), time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "h-1", batches[0].Hearing.ID)
}

func TestOverrideByLiaison(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	rec := f.db.record("h-1", "w-1")

	res, err := f.svc.OverrideByLiaison(context.Background(), rec.ID, dto.OverrideAttendanceRequest{Status: models.AttendanceStatusLate}, "liaison-1")
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeMarked, res.Outcome)
	assert.Equal(t, models.AttendanceStatusLate, res.Record.Status)
	assert.Equal(t, models.AttendanceMethodLiaisonOverride, res.Record.Method)

	res, err = f.svc.OverrideByLiaison(context.Background(), rec.ID, dto.OverrideAttendanceRequest{Status: models.AttendanceStatusPresent}, "liaison-1")
	require.NoError(t, err)
	assert.Equal(t, models.MarkOutcomeAlreadyMarked, res.Outcome)
	assert.Equal(t, models.AttendanceStatusLate, res.Record.Status)

	_, err = f.svc.OverrideByLiaison(context.Background(), rec.ID, dto.OverrideAttendanceRequest{Status: models.AttendanceStatusAbsent}, "liaison-1")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.OverrideByLiaison(context.Background(), "missing", dto.OverrideAttendanceRequest{Status: models.AttendanceStatusPresent}, "liaison-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmitAbsenceReason(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	rec := f.db.record("h-1", "o-1")
	req := dto.AbsenceReasonRequest{Reason: "  deployed for election duty  "}

	_, err := f.svc.SubmitAbsenceReason(context.Background(), rec.ID, "o-1", req)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	_, err = f.svc.SweepAbsences(context.Background(), time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = f.svc.SubmitAbsenceReason(context.Background(), rec.ID, "w-1", req)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := f.svc.SubmitAbsenceReason(context.Background(), rec.ID, "o-1", req)
	require.NoError(t, err)
	require.NotNil(t, updated.AbsenceReason)
	assert.Equal(t, "deployed for election duty", *updated.AbsenceReason)
}

func TestConsecutiveAbsences(t *testing.T) {
	f := newLedgerFixture(t, AttendanceConfig{RequireOpenHearing: true})
	f.db.addHearing("h-a", "CR/010/2025", "2025-02-01", "10:00", models.HearingStatusScheduled, "o-1")
	f.db.addHearing("h-b", "CR/011/2025", "2025-02-10", "10:00", models.HearingStatusScheduled, "o-1")
	f.db.addHearing("h-c", "CR/012/2025", "2025-02-20", "10:00", models.HearingStatusScheduled, "o-1")

	rec := f.db.record("h-a", "o-1")
	_, err := f.svc.OverrideByLiaison(context.Background(), rec.ID, dto.OverrideAttendanceRequest{Status: models.AttendanceStatusPresent}, "liaison-1")
	require.NoError(t, err)

	_, err = f.svc.SweepAbsences(context.Background(), time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	n, err := f.svc.ConsecutiveAbsences(context.Background(), "o-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
