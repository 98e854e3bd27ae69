package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"dairy-collection-backend/internal/store"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestWorkerPool_Dispatch(t *testing.T) {
	gormDB, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{})

	ev := Event{TenantID: 1, MachineID: 123, Message: "test"}
	wp.Dispatch(ev)

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, ev, job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchFullQueueDrops(t *testing.T) {
	gormDB, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{})

	// The queue holds size*4 events; workers are not started, so the
	// fifth dispatch must drop instead of blocking the caller.
	for i := 0; i < 5; i++ {
		wp.Dispatch(Event{MachineID: uint(i)})
	}
	assert.Len(t, wp.Jobs(), 4)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "Machine M1 uploaded a COW correction", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions" JOIN subscription_targets st`).
			WithArgs(1, 101).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", time.Now()))

		wp.Dispatch(Event{TenantID: 1, MachineID: 101, Message: "Machine M1 uploaded a COW correction"})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions" JOIN subscription_targets st`).
			WithArgs(1, 102).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", "test_p256dh", "test_auth", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "subscription_targets" WHERE endpoint = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"\."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		wp.Dispatch(Event{TenantID: 1, MachineID: 102, Message: "expired"})

		// A short sleep to allow the worker to process the job
		time.Sleep(100 * time.Millisecond)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
