package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Bus struct {
	rdb      *redis.Client
	log      *zap.Logger
	ctx      context.Context
	wsHub    WSHub
	activity *Activity
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{
		rdb:      rdb,
		log:      log,
		ctx:      context.Background(),
		activity: NewActivity(rdb, DefaultActivityLength, log),
	}
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// Activity returns the patient activity feed
func (b *Bus) Activity() *Activity {
	return b.activity
}

// PublishTemplate publishes an event to a template's channel
func (b *Bus) PublishTemplate(templateID string, event map[string]interface{}) error {
	return b.Publish("template:"+templateID, event)
}

// PublishDocument publishes an event to a document's channel
func (b *Bus) PublishDocument(documentID string, event map[string]interface{}) error {
	return b.Publish("document:"+documentID, event)
}

// PublishPatient publishes an event to a patient's channel and records it in
// the patient's activity feed
func (b *Bus) PublishPatient(patientID string, event map[string]interface{}) error {
	channel := "patient:" + patientID
	if err := b.activity.Append(b.ctx, channel, event); err != nil {
		// the live event still goes out
		b.log.Warn("Failed to record activity", zap.String("channel", channel), zap.Error(err))
	}
	return b.Publish(channel, event)
}

// Publish publishes an event to a channel
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
		b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	if b.wsHub != nil {
		b.wsHub.Publish(channel, event)
	}

	b.log.Debug("Published event", zap.String("channel", channel), zap.String("event", string(data)))
	return nil
}
