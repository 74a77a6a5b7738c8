package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is the JSON body delivered to the service worker.
type pushPayload struct {
	Title  string                 `json:"title"`
	Body   string                 `json:"body"`
	LoanID string                 `json:"loanId"`
	Type   model.NotificationType `json:"type"`
}

const queuePerWorker = 32

// WorkerPool delivers notifications to every push subscription.
type WorkerPool struct {
	size    int
	jobs    chan *model.Notification
	subs    *Subscriptions
	webpush *webpush.Options
	sender  Sender
}

var _ Dispatcher = (*WorkerPool)(nil)

func NewWorkerPool(size int, subs *Subscriptions, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan *model.Notification, size*queuePerWorker),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	slog.Debug("Push worker started", slog.Int("worker", id))
	for {
		select {
		case n := <-wp.jobs:
			wp.deliver(ctx, n)
		case <-ctx.Done():
			slog.Debug("Push worker shutting down", slog.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a notification. A full queue drops it: the feed already
// holds the notification and push is best effort.
func (wp *WorkerPool) Dispatch(n *model.Notification) {
	select {
	case wp.jobs <- n:
	default:
		slog.Warn("Push queue full, dropping notification", logfields.LoanID(n.LoanID),
			logfields.Type(string(n.Type)))
	}
}

func (wp *WorkerPool) deliver(ctx context.Context, n *model.Notification) {
	subs := wp.subs.List(ctx)
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(pushPayload{
		Title:  "Loan desk",
		Body:   Message(n),
		LoanID: n.LoanID,
		Type:   n.Type,
	})
	if err != nil {
		slog.Error("Failed to encode push payload", logfields.Error(err))
		return
	}
	slog.Debug("Sending push notifications", logfields.LoanID(n.LoanID), logfields.Count(len(subs)))
	for _, sub := range subs {
		wp.send(ctx, sub, payload)
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		slog.Warn("Failed to send push notification", slog.String("endpoint", sub.Endpoint), logfields.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		slog.Info("Push subscription expired, removing", slog.String("endpoint", sub.Endpoint))
		if _, err := wp.subs.Remove(ctx, sub.Endpoint); err != nil {
			slog.Warn("Failed to remove expired subscription", slog.String("endpoint", sub.Endpoint), logfields.Error(err))
		}
	}
}
