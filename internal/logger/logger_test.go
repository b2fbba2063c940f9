package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	var tests = []struct {
		in       string
		level    Level
		errIsNil bool
	}{
		{"debug", LevelDebug, true},
		{"", LevelInfo, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"loud", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l, err := ParseLevel(tt.in)
			if l != tt.level {
				t.Errorf("\ngot level %v, wanted %v", l, tt.level)
			} else if (err == nil) != tt.errIsNil {
				t.Errorf("\ngot error %v, wanted nil error: %v", err, tt.errIsNil)
			}
		})
	}
}

func TestThreshold(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("\ninfo message printed below threshold: %q", out)
	}
	if !strings.Contains(out, warnLabel+"shown 2") {
		t.Errorf("\nwarn message missing: %q", out)
	}
}
