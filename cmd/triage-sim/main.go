// triage-sim drives one assessment end to end with scripted speech, printing
// every prompt, phase change and answer, then the patient record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"triage/assistant/internal/config"
	"triage/assistant/internal/dialogue"
	"triage/assistant/internal/logging"
	"triage/assistant/internal/queue"
	"triage/assistant/internal/record"
	"triage/assistant/internal/speech"
	"triage/assistant/internal/types"
)

func main() {
	answers := flag.String("answers", "maria lopez|34|female|bad headache|no||yes|~yes",
		"answers separated by |; empty is silence, ~text is a mumble left to the silence timer, ! is a missing microphone")
	silence := flag.Duration("silence", 300*time.Millisecond, "silence timeout")
	hard := flag.Duration("hard", 1500*time.Millisecond, "hard timeout")
	speakDelay := flag.Duration("speak", 50*time.Millisecond, "simulated prompt playback time")
	enqueue := flag.Bool("redis", false, "deliver the record to the Redis queue from REDIS_ADDR")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.Server.LogLevel, true)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var sink record.Sink = record.SinkFunc(func(context.Context, types.PatientRecord) error { return nil })
	if *enqueue {
		if cfg.Redis.Addr == "" {
			fmt.Fprintln(os.Stderr, "REDIS_ADDR not set")
			os.Exit(2)
		}
		client := queue.NewClient(cfg)
		defer client.Close()
		sink = queue.NewRedisQueue(client, cfg, logger)
	}

	speaker := &speech.ScriptedSpeaker{Delay: *speakDelay}
	capturer := speech.NewScriptedCapturer(parseReplies(*answers)...)
	ctl := dialogue.New(speaker, capturer, record.NewEmitter(nil, nil, sink), dialogue.Options{
		SilenceTimeout: *silence,
		HardTimeout:    *hard,
		Observer:       printer{start: time.Now()},
		Logger:         &logger,
	})

	fmt.Printf("=== Triage Simulation ===\n")
	sessionID, err := ctl.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session: %s\n\n", sessionID)

	rec, err := ctl.Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nassessment failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n[*] Patient record")
	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(out))
}

func parseReplies(s string) []speech.Reply {
	var replies []speech.Reply
	for _, a := range strings.Split(s, "|") {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			replies = append(replies, speech.Silence())
		case a == "!":
			replies = append(replies, speech.Unavailable())
		case strings.HasPrefix(a, "~"):
			replies = append(replies, speech.Mumble(strings.TrimPrefix(a, "~")))
		default:
			replies = append(replies, speech.Say(a))
		}
	}
	return replies
}

// printer runs under the controller lock, so it only prints.
type printer struct{ start time.Time }

func (p printer) ts() string { return fmt.Sprintf("%6dms", time.Since(p.start).Milliseconds()) }

func (p printer) PhaseChanged(_ string, from, to types.Phase, step int) {
	fmt.Printf("[%s] %s -> %s (step %d)\n", p.ts(), from, to, step)
}

func (p printer) AnswerRecorded(_ string, q types.Question, rec types.AnswerRecord) {
	if rec.WasTimeout {
		fmt.Printf("[%s] <- %s: (no answer)\n", p.ts(), q.Key)
		return
	}
	fmt.Printf("[%s] <- %s: %q\n", p.ts(), q.Key, rec.NormalizedValue)
}

func (p printer) Notice(_, code, detail string) {
	fmt.Printf("[%s] !! %s: %s\n", p.ts(), code, detail)
}

func (p printer) Completed(_ string, rec types.PatientRecord, err error) {
	if err != nil {
		fmt.Printf("[%s] record not delivered: %v\n", p.ts(), err)
		return
	}
	fmt.Printf("[%s] record %s delivered (%s)\n", p.ts(), rec.ID, rec.UrgencyLabel)
}
