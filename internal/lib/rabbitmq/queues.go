package rabbitmq

import "github.com/magabrotheeeer/union-portal/internal/models"

const prefetch = 10

// QueueConfig очередь и ключ маршрутизации, с которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues очереди воркера рассылки. Ключ маршрутизации совпадает
// с видом уведомления.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.renewal", RoutingKey: models.NotifyRenewalUpcoming},
		{QueueName: "notification.lapsed", RoutingKey: models.NotifyLapsed},
		{QueueName: "notification.receipt", RoutingKey: models.NotifyReceipt},
		{QueueName: "notification.otp", RoutingKey: models.NotifyOTP},
	}
}
