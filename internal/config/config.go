package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port         string
		GRPCPort     string
		LogLevel     string
		LogFormat    string
		ShutdownSecs int
	}
	Dialogue struct {
		SilenceTimeoutMS int
		HardTimeoutMS    int
		MinAnswerRunes   int
	}
	Client struct {
		TokenSecret      string
		TokenTTLMin      int
		TokenSkewSecs    int
		OriginPatterns   []string
		SpeakTimeoutSecs int
		CaptureOpenSecs  int
	}
	Eleven struct {
		APIKey          string
		VoiceID         string
		ModelID         string
		BaseURL         string
		TimeoutSecs     int
		Stability       float64
		SimilarityBoost float64
	}
	Redis struct {
		Addr           string
		Password       string
		DB             int
		QueueKey       string
		RecordPrefix   string
		Channel        string
		RecordTTLHours int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_secs", 5)

	v.SetDefault("dialogue.silence_timeout_ms", 2500)
	v.SetDefault("dialogue.hard_timeout_ms", 7000)
	v.SetDefault("dialogue.min_answer_runes", 1)

	v.SetDefault("client.token_ttl_min", 60)
	v.SetDefault("client.token_skew_secs", 30)
	v.SetDefault("client.origin_patterns", "")
	v.SetDefault("client.speak_timeout_secs", 30)
	v.SetDefault("client.capture_open_timeout_secs", 5)

	v.SetDefault("elevenlabs.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("elevenlabs.model_id", "eleven_monolingual_v1")
	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("elevenlabs.timeout_secs", 30)
	v.SetDefault("elevenlabs.stability", 0.75)
	v.SetDefault("elevenlabs.similarity_boost", 0.75)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "triage:queue")
	v.SetDefault("redis.record_prefix", "triage:patient:")
	v.SetDefault("redis.channel", "triage:patients")
	v.SetDefault("redis.record_ttl_hours", 24)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.grpc_port", "GRPC_PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_format", "LOG_FORMAT")
	v.BindEnv("server.shutdown_secs", "SHUTDOWN_SECS")

	v.BindEnv("dialogue.silence_timeout_ms", "DIALOGUE_SILENCE_TIMEOUT_MS")
	v.BindEnv("dialogue.hard_timeout_ms", "DIALOGUE_HARD_TIMEOUT_MS")
	v.BindEnv("dialogue.min_answer_runes", "DIALOGUE_MIN_ANSWER_RUNES")

	v.BindEnv("client.token_secret", "CLIENT_TOKEN_SECRET")
	v.BindEnv("client.token_ttl_min", "CLIENT_TOKEN_TTL_MIN")
	v.BindEnv("client.token_skew_secs", "CLIENT_TOKEN_SKEW_SECS")
	v.BindEnv("client.origin_patterns", "CLIENT_ORIGIN_PATTERNS")
	v.BindEnv("client.speak_timeout_secs", "CLIENT_SPEAK_TIMEOUT_SECS")
	v.BindEnv("client.capture_open_timeout_secs", "CLIENT_CAPTURE_OPEN_TIMEOUT_SECS")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")
	v.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	v.BindEnv("elevenlabs.timeout_secs", "ELEVENLABS_TIMEOUT_SECS")
	v.BindEnv("elevenlabs.stability", "ELEVENLABS_STABILITY")
	v.BindEnv("elevenlabs.similarity_boost", "ELEVENLABS_SIMILARITY_BOOST")

	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.queue_key", "REDIS_QUEUE_KEY")
	v.BindEnv("redis.record_prefix", "REDIS_RECORD_PREFIX")
	v.BindEnv("redis.channel", "REDIS_CHANNEL")
	v.BindEnv("redis.record_ttl_hours", "REDIS_RECORD_TTL_HOURS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.GRPCPort = toString(v.Get("server.grpc_port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFormat = v.GetString("server.log_format")
	c.Server.ShutdownSecs = v.GetInt("server.shutdown_secs")

	c.Dialogue.SilenceTimeoutMS = v.GetInt("dialogue.silence_timeout_ms")
	c.Dialogue.HardTimeoutMS = v.GetInt("dialogue.hard_timeout_ms")
	c.Dialogue.MinAnswerRunes = v.GetInt("dialogue.min_answer_runes")

	c.Client.TokenSecret = v.GetString("client.token_secret")
	c.Client.TokenTTLMin = v.GetInt("client.token_ttl_min")
	c.Client.TokenSkewSecs = v.GetInt("client.token_skew_secs")
	c.Client.OriginPatterns = splitList(v.GetString("client.origin_patterns"))
	c.Client.SpeakTimeoutSecs = v.GetInt("client.speak_timeout_secs")
	c.Client.CaptureOpenSecs = v.GetInt("client.capture_open_timeout_secs")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")
	c.Eleven.BaseURL = strings.TrimSuffix(v.GetString("elevenlabs.base_url"), "/")
	c.Eleven.TimeoutSecs = v.GetInt("elevenlabs.timeout_secs")
	c.Eleven.Stability = v.GetFloat64("elevenlabs.stability")
	c.Eleven.SimilarityBoost = v.GetFloat64("elevenlabs.similarity_boost")

	c.Redis.Addr = v.GetString("redis.addr")
	c.Redis.Password = v.GetString("redis.password")
	c.Redis.DB = v.GetInt("redis.db")
	c.Redis.QueueKey = v.GetString("redis.queue_key")
	c.Redis.RecordPrefix = v.GetString("redis.record_prefix")
	c.Redis.Channel = v.GetString("redis.channel")
	c.Redis.RecordTTLHours = v.GetInt("redis.record_ttl_hours")

	return c
}

func (c Config) SilenceTimeout() time.Duration {
	return time.Duration(c.Dialogue.SilenceTimeoutMS) * time.Millisecond
}

func (c Config) HardTimeout() time.Duration {
	return time.Duration(c.Dialogue.HardTimeoutMS) * time.Millisecond
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Client.TokenTTLMin) * time.Minute
}

func (c Config) TokenSkew() time.Duration {
	return time.Duration(c.Client.TokenSkewSecs) * time.Second
}

func (c Config) SpeakTimeout() time.Duration {
	return time.Duration(c.Client.SpeakTimeoutSecs) * time.Second
}

func (c Config) CaptureOpenTimeout() time.Duration {
	return time.Duration(c.Client.CaptureOpenSecs) * time.Second
}

func toString(v any) string { return fmt.Sprint(v) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
