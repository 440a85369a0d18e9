package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"voluntia-backend/internal/logger"
)

var ErrEmailQueueFull = errors.New("email queue is full")

// EmailJob represents an email to be sent asynchronously
type EmailJob struct {
	ID        string
	Message   EmailMessage
	Retries   int
	CreatedAt time.Time
}

// EmailQueue sends email on background workers with bounded retries. It
// implements EmailSender; SendEmail only enqueues.
type EmailQueue struct {
	sender     EmailSender
	jobs       chan EmailJob
	maxRetries int
	workers    int
	backoff    func(attempt int) time.Duration
	wg         sync.WaitGroup
}

func NewEmailQueue(sender EmailSender, workers, queueSize, maxRetries int) *EmailQueue {
	return &EmailQueue{
		sender:     sender,
		jobs:       make(chan EmailJob, queueSize),
		maxRetries: maxRetries,
		workers:    workers,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Start launches the workers. They stop when ctx is cancelled; Wait blocks
// until they have.
func (q *EmailQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *EmailQueue) Wait() {
	q.wg.Wait()
}

// Pending returns the number of jobs waiting for a worker.
func (q *EmailQueue) Pending() int {
	return len(q.jobs)
}

func (q *EmailQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	log := logger.WithService("email-queue").With("worker", id)
	log.Debug("Email worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("Email worker stopping", "pending", len(q.jobs))
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *EmailQueue) process(ctx context.Context, job EmailJob) {
	err := q.sender.SendEmail(ctx, job.Message)
	if err == nil {
		logger.Debug("Email sent", "jobID", job.ID, "to", job.Message.To)
		return
	}

	if job.Retries >= q.maxRetries {
		logger.Error("Email dropped after retries", "jobID", job.ID, "to", job.Message.To,
			"subject", job.Message.Subject, "retries", job.Retries, "error", err)
		return
	}

	job.Retries++
	delay := q.backoff(job.Retries)
	logger.Warn("Email send failed, retrying", "jobID", job.ID, "to", job.Message.To,
		"attempt", job.Retries, "maxRetries", q.maxRetries, "in", delay, "error", err)

	time.AfterFunc(delay, func() {
		select {
		case q.jobs <- job:
		case <-ctx.Done():
		default:
			logger.Error("Email dropped, queue full on retry", "jobID", job.ID, "to", job.Message.To)
		}
	})
}

// SendEmail enqueues msg without blocking.
func (q *EmailQueue) SendEmail(ctx context.Context, msg EmailMessage) error {
	job := EmailJob{
		ID:        uuid.NewString(),
		Message:   msg,
		CreatedAt: time.Now(),
	}

	select {
	case q.jobs <- job:
		logger.Debug("Email queued", "jobID", job.ID, "to", msg.To, "subject", msg.Subject)
		return nil
	default:
		return ErrEmailQueueFull
	}
}
