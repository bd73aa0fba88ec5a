// Package queue hands completed patient records to the waiting-room queue:
// the record is stored, ranked in a priority sorted set and announced on a
// pub/sub channel for dashboards.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"triage/assistant/internal/config"
	"triage/assistant/internal/types"
)

// ErrNotQueued is returned by Remove for a patient that is not waiting.
var ErrNotQueued = errors.New("patient not in queue")

// Notification is published on the realtime channel for each new patient.
type Notification struct {
	Type         string `json:"type"`
	PatientID    string `json:"patientId"`
	Name         string `json:"name"`
	UrgencyLabel string `json:"urgencyLabel"`
	Position     int64  `json:"position"`
}

type RedisQueue struct {
	client       *redis.Client
	queueKey     string
	recordPrefix string
	channel      string
	ttl          time.Duration
	log          zerolog.Logger
}

func NewClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewRedisQueue(client *redis.Client, cfg config.Config, log zerolog.Logger) *RedisQueue {
	return &RedisQueue{
		client:       client,
		queueKey:     cfg.Redis.QueueKey,
		recordPrefix: cfg.Redis.RecordPrefix,
		channel:      cfg.Redis.Channel,
		ttl:          time.Duration(cfg.Redis.RecordTTLHours) * time.Hour,
		log:          log.With().Str("component", "queue").Logger(),
	}
}

// Deliver stores rec and enqueues it. It is the record sink, so it is called
// once per completed assessment and not retried.
func (q *RedisQueue) Deliver(ctx context.Context, rec types.PatientRecord) error {
	start := time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal patient record: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.recordPrefix+rec.ID, data, q.ttl)
	pipe.ZAdd(ctx, q.queueKey, redis.Z{Score: Score(rec), Member: rec.ID})
	rank := pipe.ZRank(ctx, q.queueKey, rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		metricDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("enqueue patient %s: %w", rec.ID, err)
	}
	metricDeliveries.WithLabelValues("ok").Inc()
	metricDeliverMS.Observe(float64(time.Since(start).Milliseconds()))

	position := rank.Val() + 1
	note, _ := json.Marshal(Notification{
		Type:         "new_patient",
		PatientID:    rec.ID,
		Name:         rec.Name,
		UrgencyLabel: rec.UrgencyLabel,
		Position:     position,
	})
	// the record is queued; a missed announcement only delays dashboards
	if err := q.client.Publish(ctx, q.channel, note).Err(); err != nil {
		metricPublishFailures.Inc()
		q.log.Warn().Err(err).Str("patient_id", rec.ID).Msg("publish new patient")
	}
	q.log.Info().
		Str("patient_id", rec.ID).
		Str("urgency", rec.UrgencyLabel).
		Int64("position", position).
		Msg("patient queued")
	return nil
}

// Waiting returns queued records in priority order, most urgent first.
func (q *RedisQueue) Waiting(ctx context.Context, limit int64) ([]types.PatientRecord, error) {
	ids, err := q.client.ZRange(ctx, q.queueKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.PatientRecord, 0, len(ids))
	for _, id := range ids {
		data, err := q.client.Get(ctx, q.recordPrefix+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec types.PatientRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode patient %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Remove takes a patient out of the queue once seen and drops the stored
// record.
func (q *RedisQueue) Remove(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	removed := pipe.ZRem(ctx, q.queueKey, id)
	pipe.Del(ctx, q.recordPrefix+id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove patient %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return ErrNotQueued
	}
	metricRemovals.Inc()
	q.log.Info().Str("patient_id", id).Msg("patient removed")
	return nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

var urgencyRank = map[string]float64{
	types.UrgencyCritical: 0,
	types.UrgencyHigh:     1,
	types.UrgencyMedium:   2,
	types.UrgencyLow:      3,
}

// Score orders the queue by urgency band, then arrival time. Lower is
// served first.
func Score(rec types.PatientRecord) float64 {
	band, ok := urgencyRank[rec.UrgencyLabel]
	if !ok {
		band = urgencyRank[types.UrgencyLow]
	}
	return band*1e13 + float64(rec.ArrivalTime.UnixMilli())
}
