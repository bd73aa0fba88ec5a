package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage/assistant/internal/config"
	"triage/assistant/internal/types"
)

func TestScoreOrdersByUrgencyThenArrival(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	critLate := types.PatientRecord{UrgencyLabel: types.UrgencyCritical, ArrivalTime: base.Add(3 * time.Hour)}
	highEarly := types.PatientRecord{UrgencyLabel: types.UrgencyHigh, ArrivalTime: base}
	lowEarly := types.PatientRecord{UrgencyLabel: types.UrgencyLow, ArrivalTime: base}
	lowLate := types.PatientRecord{UrgencyLabel: types.UrgencyLow, ArrivalTime: base.Add(time.Minute)}

	if !(Score(critLate) < Score(highEarly)) {
		t.Fatalf("critical should outrank high regardless of arrival")
	}
	if !(Score(highEarly) < Score(lowEarly)) {
		t.Fatalf("high should outrank low")
	}
	if !(Score(lowEarly) < Score(lowLate)) {
		t.Fatalf("earlier arrival should go first within a band")
	}
	unknown := types.PatientRecord{UrgencyLabel: "", ArrivalTime: base}
	if Score(unknown) != Score(lowEarly) {
		t.Fatalf("unknown label should rank as low")
	}
}

// Runs against a real server when REDIS_ADDR is set.
func TestDeliverAndWaiting(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	var cfg config.Config
	cfg.Redis.Addr = addr
	suffix := uuid.New().String()
	cfg.Redis.QueueKey = "test:queue:" + suffix
	cfg.Redis.RecordPrefix = "test:patient:" + suffix + ":"
	cfg.Redis.Channel = "test:patients:" + suffix
	cfg.Redis.RecordTTLHours = 1

	client := NewClient(cfg)
	defer client.Close()
	q := NewRedisQueue(client, cfg, zerolog.Nop())
	ctx := context.Background()
	if err := q.Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	defer client.Del(ctx, cfg.Redis.QueueKey)

	now := time.Now().UTC()
	low := types.PatientRecord{ID: "p-low", Name: "Ann", UrgencyLabel: types.UrgencyLow, ArrivalTime: now}
	crit := types.PatientRecord{ID: "p-crit", Name: "Bo", UrgencyLabel: types.UrgencyCritical, ArrivalTime: now.Add(time.Second)}
	for _, rec := range []types.PatientRecord{low, crit} {
		if err := q.Deliver(ctx, rec); err != nil {
			t.Fatalf("deliver %s: %v", rec.ID, err)
		}
		defer client.Del(ctx, cfg.Redis.RecordPrefix+rec.ID)
	}
	got, err := q.Waiting(ctx, 10)
	if err != nil {
		t.Fatalf("waiting: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p-crit" || got[1].ID != "p-low" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if err := q.Remove(ctx, "p-crit"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ = q.Waiting(ctx, 10)
	if len(got) != 1 || got[0].ID != "p-low" {
		t.Fatalf("unexpected queue after remove: %+v", got)
	}
	if err := q.Remove(ctx, "p-crit"); !errors.Is(err, ErrNotQueued) {
		t.Fatalf("second remove: expected ErrNotQueued, got %v", err)
	}
}
