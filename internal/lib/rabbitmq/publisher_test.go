package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/union-portal/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestPublisher_PublishAndConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	uri := amqpURI(ctx, t)

	conn, err := Connect(uri, 3, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := SetupChannel(conn, NotificationQueues())
	require.NoError(t, err)
	_, err = ch.QueuePurge("notification.receipt", false)
	require.NoError(t, err)

	pub := NewPublisher(ch)
	msg := models.Notification{Kind: models.NotifyReceipt, UnionID: "123456", Locale: "hi", Amount: 5000}
	require.NoError(t, pub.Publish(ctx, models.NotifyReceipt, msg))

	got := make(chan models.Notification, 1)
	err = ConsumerMessage(ctx, newNoopLogger(), ch, "notification.receipt", func(body []byte) error {
		var n models.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return err
		}
		got <- n
		return nil
	})
	require.NoError(t, err)

	select {
	case n := <-got:
		assert.Equal(t, msg.UnionID, n.UnionID)
		assert.Equal(t, msg.Locale, n.Locale)
		assert.Equal(t, msg.Amount, n.Amount)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestConsumerMessage_HandlerErrorRedeliversOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	uri := amqpURI(ctx, t)

	conn, err := Connect(uri, 3, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := SetupChannel(conn, NotificationQueues())
	require.NoError(t, err)
	_, err = ch.QueuePurge("notification.lapsed", false)
	require.NoError(t, err)

	require.NoError(t, PublishMessage(ch, Exchange, models.NotifyLapsed, models.Notification{Kind: models.NotifyLapsed}))

	var calls atomic.Int32
	err = ConsumerMessage(ctx, newNoopLogger(), ch, "notification.lapsed", func([]byte) error {
		calls.Add(1)
		return errors.New("mail server down")
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, 50*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPublisher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := NewPublisher(nil)
	err := pub.Publish(ctx, models.NotifyOTP, models.Notification{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishMessage_UnmarshalableBody(t *testing.T) {
	err := PublishMessage(nil, Exchange, models.NotifyOTP, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
}
