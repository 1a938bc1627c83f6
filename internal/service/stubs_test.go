package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	"github.com/chayanC7mondal/project-sync-sub000/internal/repository"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/jobs"
)

// memDB is an in-memory stand-in for the Postgres store shared by the
// hearing, record, directory and trigger stubs.
type memDB struct {
	mu        sync.Mutex
	hearings  map[string]*models.HearingSession
	records   map[string]*models.AttendanceRecord
	attendees map[string]models.Attendee
	triggers  map[string]bool
	seq       int

	failList  error
	failSweep map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		hearings:  map[string]*models.HearingSession{},
		records:   map[string]*models.AttendanceRecord{},
		attendees: map[string]models.Attendee{},
		triggers:  map[string]bool{},
		failSweep: map[string]error{},
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func (db *memDB) addAttendee(id, name string, role models.AttendeeRole, supervisor string) {
	a := models.Attendee{ID: id, FullName: name, Role: role, Phone: strPtr("+91000" + id), Email: strPtr(id + "@courts.test")}
	if supervisor != "" {
		a.SupervisorID = strPtr(supervisor)
	}
	db.attendees[id] = a
}

func (db *memDB) addHearing(id, caseID, date, clock string, status models.HearingStatus, attendeeIDs ...string) *models.HearingSession {
	db.mu.Lock()
	defer db.mu.Unlock()
	h := &models.HearingSession{ID: id, CaseID: caseID, HearingDate: day(date), HearingTime: clock, CourtName: "District Court 4", Status: status}
	db.hearings[id] = h
	for _, aid := range attendeeIDs {
		a := db.attendees[aid]
		db.seq++
		rid := fmt.Sprintf("rec-%d", db.seq)
		db.records[rid] = &models.AttendanceRecord{
			ID: rid, HearingSessionID: id, AttendeeID: aid, AttendeeName: a.FullName, AttendeeRole: a.Role,
			Status: models.AttendanceStatusPending, Method: models.AttendanceMethodUnset,
		}
	}
	return h
}

func (db *memDB) record(hearingID, attendeeID string) *models.AttendanceRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, r := range db.records {
		if r.HearingSessionID == hearingID && r.AttendeeID == attendeeID {
			cp := *r
			return &cp
		}
	}
	return nil
}

type memHearings struct{ db *memDB }

func (m memHearings) CreateWithRoster(ctx context.Context, h *models.HearingSession, roster []models.AttendanceRecord) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.hearings {
		if existing.CaseID == h.CaseID && existing.DateString() == h.DateString() {
			return repository.ErrDuplicateHearing
		}
	}
	m.db.seq++
	h.ID = fmt.Sprintf("h-%d", m.db.seq)
	cp := *h
	m.db.hearings[h.ID] = &cp
	for i := range roster {
		m.db.seq++
		roster[i].ID = fmt.Sprintf("rec-%d", m.db.seq)
		roster[i].HearingSessionID = h.ID
		roster[i].Status = models.AttendanceStatusPending
		roster[i].Method = models.AttendanceMethodUnset
		r := roster[i]
		m.db.records[r.ID] = &r
	}
	return nil
}

func (m memHearings) GetByID(ctx context.Context, id string) (*models.HearingSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	h, ok := m.db.hearings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *h
	return &cp, nil
}

func (m memHearings) FindByCaseAndDate(ctx context.Context, caseID string, date time.Time) (*models.HearingSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, h := range m.db.hearings {
		if h.CaseID == caseID && h.DateString() == date.Format("2006-01-02") {
			cp := *h
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memHearings) FindNearestOpen(ctx context.Context, caseID string, d time.Time) (*models.HearingSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var best *models.HearingSession
	var bestGap time.Duration
	ref := day(d.Format("2006-01-02"))
	for _, h := range m.db.hearings {
		if h.CaseID != caseID || !h.Status.Open() {
			continue
		}
		gap := h.HearingDate.Sub(ref)
		if gap < 0 {
			gap = -gap
		}
		if best == nil || gap < bestGap {
			best, bestGap = h, gap
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	cp := *best
	return &cp, nil
}

func (m memHearings) ListOpenBetween(ctx context.Context, from, to time.Time) ([]models.HearingSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.failList != nil {
		return nil, m.db.failList
	}
	lo, hi := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []models.HearingSession
	for _, h := range m.db.hearings {
		ds := h.DateString()
		if h.Status.Open() && ds >= lo && ds <= hi {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memHearings) ListWithPendingBefore(ctx context.Context, d time.Time) ([]models.HearingSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cutoff := d.Format("2006-01-02")
	var out []models.HearingSession
	for _, h := range m.db.hearings {
		if h.Status == models.HearingStatusCancelled || h.DateString() >= cutoff {
			continue
		}
		for _, r := range m.db.records {
			if r.HearingSessionID == h.ID && r.Status == models.AttendanceStatusPending {
				out = append(out, *h)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memHearings) NextForCase(ctx context.Context, caseID string, d time.Time) (*models.HearingSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var best *models.HearingSession
	for _, h := range m.db.hearings {
		if h.CaseID != caseID || h.Status == models.HearingStatusCancelled || !h.HearingDate.After(d) {
			continue
		}
		if best == nil || h.HearingDate.Before(best.HearingDate) {
			best = h
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m memHearings) TransitionStatus(ctx context.Context, id string, from, to models.HearingStatus) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	h, ok := m.db.hearings[id]
	if !ok || h.Status != from {
		return false, nil
	}
	h.Status = to
	return true, nil
}

func (m memHearings) CompleteIfOpen(ctx context.Context, id string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	h, ok := m.db.hearings[id]
	if !ok || !h.Status.Open() {
		return false, nil
	}
	h.Status = models.HearingStatusCompleted
	return true, nil
}

type memRecords struct{ db *memDB }

func (m memRecords) MarkPending(ctx context.Context, hearingID, attendeeID string, t models.MarkTransition) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.records {
		if r.HearingSessionID == hearingID && r.AttendeeID == attendeeID && r.Status == models.AttendanceStatusPending {
			applyTransition(r, t)
			return true, nil
		}
	}
	return false, nil
}

func (m memRecords) OverridePending(ctx context.Context, id string, t models.MarkTransition) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.records[id]
	if !ok || r.Status != models.AttendanceStatusPending {
		return false, nil
	}
	applyTransition(r, t)
	return true, nil
}

func (m memRecords) GetByHearingAndAttendee(ctx context.Context, hearingID, attendeeID string) (*models.AttendanceRecord, error) {
	if r := m.db.record(hearingID, attendeeID); r != nil {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m memRecords) GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m memRecords) ListByHearing(ctx context.Context, hearingID string) ([]models.AttendanceRecord, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.AttendanceRecord
	for _, r := range m.db.records {
		if r.HearingSessionID == hearingID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttendeeID < out[j].AttendeeID })
	return out, nil
}

func (m memRecords) SweepPending(ctx context.Context, hearingID string, at time.Time) ([]models.AbsentAttendee, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.db.failSweep[hearingID]; err != nil {
		return nil, err
	}
	var out []models.AbsentAttendee
	for _, r := range m.db.records {
		if r.HearingSessionID == hearingID && r.Status == models.AttendanceStatusPending {
			r.Status = models.AttendanceStatusAbsent
			r.UpdatedAt = at
			out = append(out, models.AbsentAttendee{RecordID: r.ID, AttendeeID: r.AttendeeID, AttendeeName: r.AttendeeName, AttendeeRole: r.AttendeeRole})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttendeeID < out[j].AttendeeID })
	return out, nil
}

func (m memRecords) SetAbsenceReason(ctx context.Context, id, attendeeID, reason string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.records[id]
	if !ok || r.AttendeeID != attendeeID || r.Status != models.AttendanceStatusAbsent {
		return false, nil
	}
	r.AbsenceReason = &reason
	return true, nil
}

func (m memRecords) RecentOutcomes(ctx context.Context, attendeeID string, limit int) ([]models.AttendanceStatus, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	type outcome struct {
		date   time.Time
		status models.AttendanceStatus
	}
	var list []outcome
	for _, r := range m.db.records {
		h := m.db.hearings[r.HearingSessionID]
		if r.AttendeeID != attendeeID || r.Status == models.AttendanceStatusPending || h == nil || h.Status == models.HearingStatusCancelled {
			continue
		}
		list = append(list, outcome{h.HearingDate, r.Status})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].date.After(list[j].date) })
	out := make([]models.AttendanceStatus, 0, len(list))
	for i, o := range list {
		if limit > 0 && i >= limit {
			break
		}
		out = append(out, o.status)
	}
	return out, nil
}

type memDirectory struct{ db *memDB }

func (m memDirectory) GetByID(ctx context.Context, id string) (*models.Attendee, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.attendees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m memDirectory) ListByIDs(ctx context.Context, ids []string) ([]models.Attendee, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Attendee
	for _, id := range ids {
		if a, ok := m.db.attendees[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type memTriggers struct {
	db         *memDB
	failClaims error
}

func (m *memTriggers) Claim(ctx context.Context, hearingID string, kind models.TriggerKind) (bool, error) {
	if m.failClaims != nil {
		return false, m.failClaims
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	key := hearingID + "|" + string(kind)
	if m.db.triggers[key] {
		return false, nil
	}
	m.db.triggers[key] = true
	return true, nil
}

func (m *memTriggers) Release(ctx context.Context, hearingID string, kind models.TriggerKind) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	delete(m.db.triggers, hearingID+"|"+string(kind))
	return nil
}

type limiterStub struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newLimiterStub() *limiterStub { return &limiterStub{counts: map[string]int{}} }

func (l *limiterStub) Attempts(ctx context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key], l.err
}

func (l *limiterStub) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key], l.err
}

func (l *limiterStub) ResetAttempts(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	return l.err
}

type lockStub struct {
	held     bool
	err      error
	released int
}

func (l *lockStub) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return !l.held, nil
}

func (l *lockStub) ReleaseLock(ctx context.Context, key, owner string) error {
	l.released++
	return nil
}

type queueStub struct {
	mu      sync.Mutex
	jobs    []jobs.Job
	failFor map[models.TriggerKind]bool
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	req := job.Payload.(models.NotificationRequest)
	if q.failFor[req.TriggerKind] {
		return jobs.ErrQueueFull
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueStub) requests(kind models.TriggerKind) []models.NotificationRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.NotificationRequest
	for _, j := range q.jobs {
		req := j.Payload.(models.NotificationRequest)
		if req.TriggerKind == kind {
			out = append(out, req)
		}
	}
	return out
}

var errStoreDown = errors.New("connection refused")
