package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"":       zerolog.InfoLevel,
		"chatty": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := New(in, false).GetLevel(); got != want {
			t.Fatalf("level %q: got %s want %s", in, got, want)
		}
	}
}
