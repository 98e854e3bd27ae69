package notification

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"dairy-collection-backend/internal/logs"
	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/store"
)

// Event is one device occurrence worth notifying operators about.
type Event struct {
	TenantID  uint
	MachineID uint
	Message   string
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers delivering device-event
// notifications to subscribed operators.
type WorkerPool struct {
	size    int
	jobs    chan Event
	store   store.Store
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size*4),
		store:   s,
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
	logs.Logger.Debugf("notification worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.process(ctx, ev)
		case <-ctx.Done():
			logs.Logger.Debugf("notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event without blocking the device request that
// produced it; under backpressure the event is dropped.
func (wp *WorkerPool) Dispatch(ev Event) {
	select {
	case wp.jobs <- ev:
	default:
		logs.Logger.WithField("machine_id", ev.MachineID).Warn("notification queue full, dropping event")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

func (wp *WorkerPool) process(ctx context.Context, ev Event) {
	subs, err := wp.store.SubscribersForMachine(ctx, ev.TenantID, ev.MachineID)
	if err != nil {
		logs.Logger.WithError(err).Errorf("fetching subscribers for machine %d", ev.MachineID)
		return
	}
	for _, sub := range subs {
		wp.send(ctx, sub, []byte(ev.Message))
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
		logs.Logger.WithError(err).Errorf("sending notification to %s", sub.Endpoint)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions get cleaned up on the spot.
	if resp.StatusCode == http.StatusGone {
		logs.Logger.Infof("subscription %s expired, deleting", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			logs.Logger.WithError(err).Errorf("deleting expired subscription %s", sub.Endpoint)
		}
	}
}
