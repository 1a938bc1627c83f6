package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chayanC7mondal/project-sync-sub000/internal/dto"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/jobs"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/notify"
)

// JobTypeDispatch is the queue job type carrying a NotificationRequest.
const JobTypeDispatch = "notification.dispatch"

// Skip reasons reported on channels that were not attempted.
const (
	SkipPriority   = "priority_too_low"
	SkipNoContact  = "no_contact"
	SkipDisabled   = "channel_disabled"
	SkipNoProvider = "no_provider"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// DispatcherConfig toggles delivery channels.
type DispatcherConfig struct {
	SMSEnabled      bool
	EmailEnabled    bool
	ProviderTimeout time.Duration
}

// NotificationService writes in-app notifications, fans out to SMS and email
// and serves the in-app inbox.
type NotificationService struct {
	store       notificationStore
	smsPrimary  notify.SMSSender
	smsFallback notify.SMSSender
	mailer      notify.Mailer
	metrics     *MetricsService
	logger      *zap.Logger
	config      DispatcherConfig
}

// NewNotificationService constructs the dispatcher. smsFallback and mailer may be nil.
func NewNotificationService(store notificationStore, smsPrimary, smsFallback notify.SMSSender, mailer notify.Mailer, metrics *MetricsService, logger *zap.Logger, cfg DispatcherConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	return &NotificationService{
		store:       store,
		smsPrimary:  smsPrimary,
		smsFallback: smsFallback,
		mailer:      mailer,
		metrics:     metrics,
		logger:      logger,
		config:      cfg,
	}
}

// Dispatch persists the in-app notification and then attempts SMS and email
// concurrently. Channel failures are reported in the result, never returned.
func (s *NotificationService) Dispatch(ctx context.Context, to models.Recipient, req models.NotificationRequest) models.DispatchResult {
	req.Recipient = to
	if req.Priority == "" {
		req.Priority = models.PriorityFor(req.TriggerKind)
	}

	var result models.DispatchResult
	n := &models.Notification{
		RecipientID:       to.ID,
		Title:             req.Title,
		Message:           req.Message,
		Priority:          req.Priority,
		TriggerKind:       req.TriggerKind,
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
	}
	if err := s.store.Create(ctx, n); err != nil {
		result.InAppError = err.Error()
		s.logger.Error("in-app notification write failed", zap.String("recipient_id", to.ID), zap.String("trigger", string(req.TriggerKind)), zap.Error(err))
	} else {
		result.InApp = true
		result.NotificationID = n.ID
	}

	var g errgroup.Group
	g.Go(func() error {
		result.SMS = s.sendSMS(ctx, to, req)
		return nil
	})
	g.Go(func() error {
		result.Email = s.sendEmail(ctx, to, req)
		return nil
	})
	_ = g.Wait()

	s.metrics.RecordDelivery("sms", result.SMS)
	s.metrics.RecordDelivery("email", result.Email)
	return result
}

// HandleJob is the dispatch queue handler. Each request is attempted once.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(models.NotificationRequest)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	res := s.Dispatch(ctx, req.Recipient, req)
	s.logger.Info("notification dispatched",
		zap.String("job_id", job.ID),
		zap.String("recipient_id", req.Recipient.ID),
		zap.String("trigger", string(req.TriggerKind)),
		zap.Bool("in_app", res.InApp),
		zap.Bool("sms_attempted", res.SMS.Attempted),
		zap.Bool("sms_success", res.SMS.Success),
		zap.String("sms_skip", res.SMS.SkipReason),
		zap.Bool("email_attempted", res.Email.Attempted),
		zap.Bool("email_success", res.Email.Success),
		zap.String("email_reason", res.Email.Reason))
	return nil
}

func (s *NotificationService) sendSMS(ctx context.Context, to models.Recipient, req models.NotificationRequest) models.ChannelOutcome {
	switch {
	case req.Priority != models.PriorityUrgent && !req.ForceSMS:
		return models.ChannelOutcome{SkipReason: SkipPriority}
	case to.Phone == "":
		return models.ChannelOutcome{SkipReason: SkipNoContact}
	case !s.config.SMSEnabled:
		return models.ChannelOutcome{SkipReason: SkipDisabled}
	case s.smsPrimary == nil:
		return models.ChannelOutcome{SkipReason: SkipNoProvider}
	}

	outcome := models.ChannelOutcome{Attempted: true}
	res, err := s.trySMS(ctx, s.smsPrimary, to.Phone, req.Message)
	if err != nil && s.smsFallback != nil {
		s.logger.Warn("primary sms gateway failed, trying fallback",
			zap.String("provider", s.smsPrimary.Name()), zap.Error(err))
		res, err = s.trySMS(ctx, s.smsFallback, to.Phone, req.Message)
	}
	outcome.Provider = res.Provider
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Success = res.Success
	outcome.MessageID = res.MessageID
	outcome.Error = res.Error
	return outcome
}

func (s *NotificationService) trySMS(ctx context.Context, sender notify.SMSSender, phone, message string) (notify.SMSResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()
	res, err := sender.SendSMS(callCtx, phone, message)
	if res.Provider == "" {
		res.Provider = sender.Name()
	}
	return res, err
}

func (s *NotificationService) sendEmail(ctx context.Context, to models.Recipient, req models.NotificationRequest) models.ChannelOutcome {
	switch {
	case req.Priority != models.PriorityHigh && req.Priority != models.PriorityUrgent:
		return models.ChannelOutcome{SkipReason: SkipPriority}
	case to.Email == "":
		return models.ChannelOutcome{SkipReason: SkipNoContact}
	case !s.config.EmailEnabled:
		return models.ChannelOutcome{SkipReason: SkipDisabled}
	case s.mailer == nil:
		return models.ChannelOutcome{SkipReason: SkipNoProvider}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()
	res := s.mailer.SendEmail(callCtx, to.Email, req.Title, "<p>"+html.EscapeString(req.Message)+"</p>")
	return models.ChannelOutcome{
		Attempted: true,
		Success:   res.Success,
		Provider:  res.Provider,
		MessageID: res.MessageID,
		Error:     res.Error,
		Reason:    res.Reason,
	}
}

// ListInbox returns a page of the recipient's in-app notifications.
func (s *NotificationService) ListInbox(ctx context.Context, recipientID string, q dto.NotificationListQuery) ([]models.Notification, *models.Pagination, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	items, total, err := s.store.List(ctx, models.NotificationFilter{
		RecipientID: recipientID,
		UnreadOnly:  q.UnreadOnly,
		Page:        q.Page,
		PageSize:    q.PageSize,
	})
	if err != nil {
		return nil, nil, storeUnavailable(err, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, &models.Pagination{Page: q.Page, PageSize: q.PageSize, TotalCount: total}, nil
}

// MarkRead flags one of the recipient's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	ok, err := s.store.MarkRead(ctx, id, recipientID)
	if err != nil {
		return storeUnavailable(err, "failed to update notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// UnreadCount returns the recipient's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	n, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, storeUnavailable(err, "failed to count notifications")
	}
	return n, nil
}
