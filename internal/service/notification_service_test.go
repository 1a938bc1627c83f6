package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chayanC7mondal/project-sync-sub000/internal/dto"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/jobs"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/notify"
)

type inboxStub struct {
	mu         sync.Mutex
	items      []models.Notification
	failCreate error
	failList   error
	lastFilter models.NotificationFilter
}

func (s *inboxStub) Create(ctx context.Context, n *models.Notification) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = fmt.Sprintf("n-%d", len(s.items)+1)
	s.items = append(s.items, *n)
	return nil
}

func (s *inboxStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	if s.failList != nil {
		return nil, 0, s.failList
	}
	var out []models.Notification
	for _, n := range s.items {
		if n.RecipientID == filter.RecipientID && (!filter.UnreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (s *inboxStub) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].RecipientID == recipientID {
			s.items[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (s *inboxStub) CountUnread(ctx context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		if item.RecipientID == recipientID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

type smsStub struct {
	name  string
	res   notify.SMSResult
	err   error
	block bool
	calls int32
}

func (s *smsStub) Name() string { return s.name }

func (s *smsStub) SendSMS(ctx context.Context, to, message string) (notify.SMSResult, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.block {
		<-ctx.Done()
		return notify.SMSResult{Provider: s.name}, ctx.Err()
	}
	return s.res, s.err
}

type mailerStub struct {
	res      notify.EmailResult
	calls    int32
	lastBody string
}

func (m *mailerStub) SendEmail(ctx context.Context, to, subject, htmlBody string) notify.EmailResult {
	atomic.AddInt32(&m.calls, 1)
	m.lastBody = htmlBody
	return m.res
}

type dispatchFixture struct {
	store    *inboxStub
	primary  *smsStub
	fallback *smsStub
	mailer   *mailerStub
	svc      *NotificationService
}

func newDispatchFixture(cfg DispatcherConfig) *dispatchFixture {
	f := &dispatchFixture{
		store:    &inboxStub{},
		primary:  &smsStub{name: "primary", res: notify.SMSResult{Success: true, Provider: "primary", MessageID: "p-1"}},
		fallback: &smsStub{name: "fallback", res: notify.SMSResult{Success: true, Provider: "fallback", MessageID: "f-1"}},
		mailer:   &mailerStub{res: notify.EmailResult{Success: true, Provider: "smtp", MessageID: "m-1"}},
	}
	f.svc = NewNotificationService(f.store, f.primary, f.fallback, f.mailer, nil, nil, cfg)
	return f
}

var fullContact = models.Recipient{ID: "w-1", Name: "Asha Menon", Phone: "+910000000001", Email: "asha@courts.test"}

func request(kind models.TriggerKind) models.NotificationRequest {
	return models.NewNotificationRequest(kind, fullContact, "Missed court hearing", "Case <CR/001> was heard", models.EntityHearingSession, "h-1")
}

func TestDispatchUrgentUsesEveryChannel(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{SMSEnabled: true, EmailEnabled: true})

	res := f.svc.Dispatch(context.Background(), fullContact, request(models.TriggerWitnessAbsent))

	assert.True(t, res.InApp)
	assert.Equal(t, "n-1", res.NotificationID)
	assert.True(t, res.SMS.Attempted)
	assert.True(t, res.SMS.Success)
	assert.Equal(t, "primary", res.SMS.Provider)
	assert.True(t, res.Email.Attempted)
	assert.True(t, res.Email.Success)
	assert.Equal(t, "<p>Case &lt;CR/001&gt; was heard</p>", f.mailer.lastBody)
	assert.Zero(t, atomic.LoadInt32(&f.fallback.calls))

	require.Len(t, f.store.items, 1)
	assert.Equal(t, models.PriorityUrgent, f.store.items[0].Priority)
	assert.Equal(t, "w-1", f.store.items[0].RecipientID)
}

func TestDispatchChannelSelection(t *testing.T) {
	tests := []struct {
		name      string
		cfg       DispatcherConfig
		to        models.Recipient
		mutate    func(*models.NotificationRequest)
		smsSkip   string
		emailSkip string
	}{
		{
			name:      "high priority skips sms",
			cfg:       DispatcherConfig{SMSEnabled: true, EmailEnabled: true},
			to:        fullContact,
			mutate:    func(r *models.NotificationRequest) { r.Priority = models.PriorityHigh },
			smsSkip:   SkipPriority,
			emailSkip: "",
		},
		{
			name:      "normal priority is in-app only",
			cfg:       DispatcherConfig{SMSEnabled: true, EmailEnabled: true},
			to:        fullContact,
			mutate:    func(r *models.NotificationRequest) { r.Priority = models.PriorityNormal },
			smsSkip:   SkipPriority,
			emailSkip: SkipPriority,
		},
		{
			name:      "forced sms on normal priority",
			cfg:       DispatcherConfig{SMSEnabled: true, EmailEnabled: true},
			to:        fullContact,
			mutate:    func(r *models.NotificationRequest) { r.Priority = models.PriorityNormal; r.ForceSMS = true },
			smsSkip:   "",
			emailSkip: SkipPriority,
		},
		{
			name:      "missing contacts",
			cfg:       DispatcherConfig{SMSEnabled: true, EmailEnabled: true},
			to:        models.Recipient{ID: "w-1", Name: "Asha Menon"},
			smsSkip:   SkipNoContact,
			emailSkip: SkipNoContact,
		},
		{
			name:      "channels disabled",
			cfg:       DispatcherConfig{},
			to:        fullContact,
			smsSkip:   SkipDisabled,
			emailSkip: SkipDisabled,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newDispatchFixture(tc.cfg)
			req := request(models.TriggerWitnessAbsent)
			if tc.mutate != nil {
				tc.mutate(&req)
			}

			res := f.svc.Dispatch(context.Background(), tc.to, req)

			assert.True(t, res.InApp)
			assert.Equal(t, tc.smsSkip, res.SMS.SkipReason)
			assert.Equal(t, tc.smsSkip == "", res.SMS.Attempted)
			assert.Equal(t, tc.emailSkip, res.Email.SkipReason)
			assert.Equal(t, tc.emailSkip == "", res.Email.Attempted)
		})
	}
}

func TestDispatchWithoutProviders(t *testing.T) {
	svc := NewNotificationService(&inboxStub{}, nil, nil, nil, nil, nil, DispatcherConfig{SMSEnabled: true, EmailEnabled: true})

	res := svc.Dispatch(context.Background(), fullContact, request(models.TriggerOfficerAbsent))

	assert.True(t, res.InApp)
	assert.Equal(t, SkipNoProvider, res.SMS.SkipReason)
	assert.Equal(t, SkipNoProvider, res.Email.SkipReason)
}

func TestDispatchFallsBackOnTransportError(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{SMSEnabled: true, EmailEnabled: true})
	f.primary.err = notify.ErrGatewayUnavailable
	f.primary.res = notify.SMSResult{}

	res := f.svc.Dispatch(context.Background(), fullContact, request(models.TriggerDayOfReminder))

	assert.True(t, res.SMS.Success)
	assert.Equal(t, "fallback", res.SMS.Provider)
	assert.Equal(t, "f-1", res.SMS.MessageID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.primary.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.fallback.calls))
}

func TestDispatchRejectionDoesNotFallBack(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{SMSEnabled: true})
	f.primary.res = notify.SMSResult{Success: false, Provider: "primary", Error: "invalid number"}

	res := f.svc.Dispatch(context.Background(), fullContact, request(models.TriggerDayOfReminder))

	assert.True(t, res.SMS.Attempted)
	assert.False(t, res.SMS.Success)
	assert.Equal(t, "invalid number", res.SMS.Error)
	assert.Zero(t, atomic.LoadInt32(&f.fallback.calls))
}

func TestDispatchBothGatewaysDown(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{SMSEnabled: true, EmailEnabled: true})
	f.primary.err = notify.ErrGatewayUnavailable
	f.fallback.err = errors.New("fallback refused")
	f.fallback.res = notify.SMSResult{}

	res := f.svc.Dispatch(context.Background(), fullContact, request(models.TriggerBothAbsent))

	assert.True(t, res.SMS.Attempted)
	assert.False(t, res.SMS.Success)
	assert.Equal(t, "fallback", res.SMS.Provider)
	assert.Contains(t, res.SMS.Error, "fallback refused")
	assert.True(t, res.Email.Success)
	assert.True(t, res.InApp)
}

func TestDispatchChannelsAreIndependent(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{SMSEnabled: true, EmailEnabled: true})
	f.store.failCreate = errStoreDown
	f.mailer.res = notify.EmailResult{Provider: "smtp", Error: "mailbox unavailable", Reason: notify.ReasonUnknown}

	res := f.svc.Dispatch(context.Background(), fullContact, request(models.TriggerWitnessAbsent))

	assert.False(t, res.InApp)
	assert.Equal(t, errStoreDown.Error(), res.InAppError)
	assert.True(t, res.SMS.Success)
	assert.True(t, res.Email.Attempted)
	assert.False(t, res.Email.Success)
	assert.Equal(t, notify.ReasonUnknown, res.Email.Reason)
}

func TestDispatchProviderTimeout(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{SMSEnabled: true, EmailEnabled: true, ProviderTimeout: 20 * time.Millisecond})
	f.primary.block = true
	f.fallback.block = true

	start := time.Now()
	res := f.svc.Dispatch(context.Background(), fullContact, request(models.TriggerWitnessAbsent))

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.SMS.Attempted)
	assert.False(t, res.SMS.Success)
	assert.NotEmpty(t, res.SMS.Error)
	assert.True(t, res.Email.Success)
}

func TestHandleJob(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{})

	err := f.svc.HandleJob(context.Background(), jobs.Job{ID: "j-1", Type: JobTypeDispatch, Payload: request(models.TriggerWeeklyReminder)})
	require.NoError(t, err)
	require.Len(t, f.store.items, 1)
	assert.Equal(t, models.PriorityHigh, f.store.items[0].Priority)
	assert.Equal(t, models.TriggerWeeklyReminder, f.store.items[0].TriggerKind)

	err = f.svc.HandleJob(context.Background(), jobs.Job{ID: "j-2", Type: JobTypeDispatch, Payload: "nope"})
	assert.Error(t, err)
}

func TestInbox(t *testing.T) {
	f := newDispatchFixture(DispatcherConfig{})
	for i := 0; i < 3; i++ {
		f.svc.Dispatch(context.Background(), fullContact, request(models.TriggerWeeklyReminder))
	}
	f.svc.Dispatch(context.Background(), models.Recipient{ID: "o-1"}, request(models.TriggerOfficerAbsent))

	items, page, err := f.svc.ListInbox(context.Background(), "w-1", dto.NotificationListQuery{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 3, page.TotalCount)

	require.NoError(t, f.svc.MarkRead(context.Background(), "n-1", "w-1"))
	unread, err := f.svc.UnreadCount(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	items, _, err = f.svc.ListInbox(context.Background(), "w-1", dto.NotificationListQuery{UnreadOnly: true, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.True(t, f.store.lastFilter.UnreadOnly)

	err = f.svc.MarkRead(context.Background(), "n-4", "w-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	f.store.failList = errStoreDown
	_, _, err = f.svc.ListInbox(context.Background(), "w-1", dto.NotificationListQuery{})
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErrors.FromError(err).Code)
}
