package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"triage/assistant/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Skipped bool          `json:"skipped,omitempty"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		switch {
		case c.Skipped:
			mark = "-"
		case !c.OK:
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Pinger is satisfied by the redis queue.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes the services the intake depends on. Redis and ElevenLabs
// are both optional; an unconfigured one is reported as skipped.
type Checker struct {
	cfg    config.Config
	redis  Pinger
	client *http.Client
}

func NewChecker(cfg config.Config, redis Pinger) *Checker {
	return &Checker{cfg: cfg, redis: redis, client: &http.Client{Timeout: 10 * time.Second}}
}

// CheckAll runs all health checks and returns combined status
func (c *Checker) CheckAll(ctx context.Context) HealthStatus {
	checks := []CheckResult{
		c.checkRedis(ctx),
		c.checkElevenLabs(ctx),
	}

	allOK := true
	for _, r := range checks {
		if !r.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "redis"}
	if c.redis == nil {
		result.OK, result.Skipped = true, true
		result.Error = "REDIS_ADDR not set, records are logged only"
		return result
	}
	err := c.redis.Ping(ctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("ping failed: %v", err)
		return result
	}
	result.OK = true
	return result
}

func (c *Checker) checkElevenLabs(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "elevenlabs"}

	if c.cfg.Eleven.APIKey == "" {
		result.OK, result.Skipped = true, true
		result.Error = "ELEVENLABS_API_KEY not set, browser voice in use"
		return result
	}
	if c.cfg.Eleven.VoiceID == "" {
		result.Error = "ELEVENLABS_VOICE_ID not set"
		return result
	}

	// A one character synthesis works with TTS-only keys that lack user_read.
	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", c.cfg.Eleven.BaseURL, c.cfg.Eleven.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(`{"text":"."}`))
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	req.Header.Set("xi-api-key", c.cfg.Eleven.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("invalid API key (401): %s", string(body))
		return result
	case resp.StatusCode == http.StatusNotFound:
		result.Error = fmt.Sprintf("voice ID %q not found", c.cfg.Eleven.VoiceID)
		return result
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	result.OK = true
	return result
}
