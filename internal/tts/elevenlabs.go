// Package tts renders prompt audio with ElevenLabs so the browser can play a
// consistent voice instead of its built-in synthesizer.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"triage/assistant/internal/config"
)

var ErrNotConfigured = errors.New("elevenlabs api key not set")

const maxClipBytes = 8 << 20

// Clip is rendered prompt audio.
type Clip struct {
	Audio []byte
	MIME  string
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// ElevenLabs synthesizes text through the REST text-to-speech endpoint.
// Prompts repeat across assessments, so clips are cached by text.
type ElevenLabs struct {
	apiKey   string
	voiceID  string
	modelID  string
	baseURL  string
	settings VoiceSettings
	client   *http.Client
	log      zerolog.Logger

	mu    sync.RWMutex
	cache map[string]Clip
}

func NewElevenLabs(cfg config.Config, log zerolog.Logger) *ElevenLabs {
	timeout := time.Duration(cfg.Eleven.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ElevenLabs{
		apiKey:  cfg.Eleven.APIKey,
		voiceID: cfg.Eleven.VoiceID,
		modelID: cfg.Eleven.ModelID,
		baseURL: cfg.Eleven.BaseURL,
		settings: VoiceSettings{
			Stability:       cfg.Eleven.Stability,
			SimilarityBoost: cfg.Eleven.SimilarityBoost,
			UseSpeakerBoost: true,
		},
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "tts").Logger(),
		cache:  make(map[string]Clip),
	}
}

func (e *ElevenLabs) Configured() bool { return e.apiKey != "" }

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (Clip, error) {
	if !e.Configured() {
		return Clip{}, ErrNotConfigured
	}
	e.mu.RLock()
	clip, ok := e.cache[text]
	e.mu.RUnlock()
	if ok {
		ttsSynthesisTotal.WithLabelValues("cached").Inc()
		return clip, nil
	}

	start := time.Now()
	clip, err := e.render(ctx, text)
	ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return Clip{}, err
	}
	ttsSynthesisTotal.WithLabelValues("ok").Inc()
	e.mu.Lock()
	e.cache[text] = clip
	e.mu.Unlock()
	e.log.Debug().Int("text_len", len(text)).Int("bytes", len(clip.Audio)).Msg("prompt rendered")
	return clip, nil
}

// Warm renders every prompt up front. Failures are logged and left for
// Synthesize to retry on demand.
func (e *ElevenLabs) Warm(ctx context.Context, prompts []string) int {
	n := 0
	for _, p := range prompts {
		if _, err := e.Synthesize(ctx, p); err != nil {
			e.log.Warn().Err(err).Msg("prompt warmup failed")
			continue
		}
		n++
	}
	return n
}

func (e *ElevenLabs) render(ctx context.Context, text string) (Clip, error) {
	body, err := json.Marshal(map[string]any{
		"text":           text,
		"model_id":       e.modelID,
		"voice_settings": e.settings,
	})
	if err != nil {
		return Clip{}, err
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Clip{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return Clip{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()
	ttsElevenLabsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Clip{}, fmt.Errorf("elevenlabs status=%d body=%s", resp.StatusCode, string(b))
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
	if err != nil {
		return Clip{}, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return Clip{}, errors.New("elevenlabs returned no audio")
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return Clip{Audio: audio, MIME: mime}, nil
}
