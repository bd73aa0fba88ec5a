package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"triage/assistant/internal/config"
)

func testConfig(baseURL string) config.Config {
	var cfg config.Config
	cfg.Eleven.APIKey = "key-1"
	cfg.Eleven.VoiceID = "voice-1"
	cfg.Eleven.ModelID = "eleven_monolingual_v1"
	cfg.Eleven.BaseURL = baseURL
	cfg.Eleven.Stability = 0.75
	cfg.Eleven.SimilarityBoost = 0.75
	return cfg
}

func TestSynthesizeCachesByText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/text-to-speech/voice-1" || r.Header.Get("xi-api-key") != "key-1" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var body struct {
			Text    string `json:"text"`
			ModelID string `json:"model_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" || body.ModelID == "" {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	e := NewElevenLabs(testConfig(srv.URL), zerolog.Nop())
	for i := 0; i < 2; i++ {
		clip, err := e.Synthesize(context.Background(), "What is your age?")
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		if string(clip.Audio) != "ID3-audio" || clip.MIME != "audio/mpeg" {
			t.Fatalf("unexpected clip: %q %s", clip.Audio, clip.MIME)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}
}

func TestSynthesizeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewElevenLabs(testConfig(srv.URL), zerolog.Nop())
	if _, err := e.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error on 401")
	}
	if n := e.Warm(context.Background(), []string{"a", "b"}); n != 0 {
		t.Fatalf("expected no warmed prompts, got %d", n)
	}

	cfg := testConfig(srv.URL)
	cfg.Eleven.APIKey = ""
	if _, err := NewElevenLabs(cfg, zerolog.Nop()).Synthesize(context.Background(), "hello"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
