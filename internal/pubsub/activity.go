package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultActivityLength caps each activity stream
const DefaultActivityLength = 500

// ActivityEntry is one event recorded in a channel's activity stream
type ActivityEntry struct {
	ID        string                 `json:"id"`
	Channel   string                 `json:"channel"`
	Event     map[string]interface{} `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
}

// Activity keeps a capped Redis Stream of events per channel
type Activity struct {
	rdb    *redis.Client
	maxLen int64
	log    *zap.Logger
	now    func() time.Time
}

func NewActivity(rdb *redis.Client, maxLen int64, log *zap.Logger) *Activity {
	if maxLen <= 0 {
		maxLen = DefaultActivityLength
	}
	return &Activity{rdb: rdb, maxLen: maxLen, log: log, now: time.Now}
}

func streamKey(channel string) string {
	return fmt.Sprintf("stream:%s", channel)
}

// Append records an event, trimming the stream to its cap
func (a *Activity) Append(ctx context.Context, channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := a.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(channel),
		MaxLen: a.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": a.now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	a.log.Debug("Recorded activity", zap.String("channel", channel), zap.String("stream_id", id))
	return nil
}

// Recent returns up to limit entries, newest first
func (a *Activity) Recent(ctx context.Context, channel string, limit int64) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := a.rdb.XRevRangeN(ctx, streamKey(channel), "+", "-", limit).Result()
	if err == redis.Nil {
		return []ActivityEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	entries := make([]ActivityEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry, ok := decodeEntry(channel, msg)
		if !ok {
			a.log.Warn("Skipping malformed activity entry", zap.String("stream_id", msg.ID))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeEntry(channel string, msg redis.XMessage) (ActivityEntry, bool) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return ActivityEntry{}, false
	}
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ActivityEntry{}, false
	}
	entry := ActivityEntry{ID: msg.ID, Channel: channel, Event: event}
	if ts, ok := msg.Values["timestamp"].(string); ok {
		entry.Timestamp, _ = time.Parse(time.RFC3339, ts)
	}
	return entry, true
}
