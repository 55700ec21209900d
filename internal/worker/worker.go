package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/photocomp/backend/pkg/mailer"
	"github.com/photocomp/backend/pkg/queue"
)

// DequeueTimeout bounds each blocking pop so shutdown is noticed promptly.
const DequeueTimeout = 5 * time.Second

// JobSource is the queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// NotificationProcessor turns queued notification jobs into emails.
type NotificationProcessor struct {
	queue   JobSource
	sender  mailer.Sender
	logger  *zap.Logger
	backoff time.Duration
}

// NewNotificationProcessor creates a notification email processor.
func NewNotificationProcessor(q JobSource, sender mailer.Sender, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{queue: q, sender: sender, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMembershipDecision {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MembershipDecisionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		p.logger.Warn("decision email has no recipient", zap.String("job_id", job.ID), zap.String("user_id", payload.UserID))
		return nil
	}
	msg, err := DecisionMessage(payload)
	if err != nil {
		return err
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	p.logger.Info("decision email sent",
		zap.String("job_id", job.ID),
		zap.String("decision", payload.Decision),
		zap.String("org", payload.OrgName))
	return nil
}

// DecisionMessage renders the approval or denial email.
func DecisionMessage(p queue.MembershipDecisionPayload) (mailer.Message, error) {
	name := html.EscapeString(p.RecipientName)
	if name == "" {
		name = "there"
	}
	org := html.EscapeString(p.OrgName)
	switch p.Decision {
	case queue.DecisionApproved:
		return mailer.Message{
			To:      p.RecipientEmail,
			Subject: "Your request to join " + p.OrgName + " was approved",
			BodyHTML: fmt.Sprintf("<p>Hi %s,</p><p>You are now a member of <strong>%s</strong>. "+
				"You can browse its events and photos right away.</p>", name, org),
		}, nil
	case queue.DecisionDenied:
		return mailer.Message{
			To:      p.RecipientEmail,
			Subject: "Your request to join " + p.OrgName,
			BodyHTML: fmt.Sprintf("<p>Hi %s,</p><p>Your request to join <strong>%s</strong> was not approved.</p>",
				name, org),
		}, nil
	default:
		return mailer.Message{}, fmt.Errorf("unknown decision: %q", p.Decision)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *NotificationProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
