package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput(t *testing.T) {
	tests := []struct {
		env      string
		level    logrus.Level
		wantJSON bool
	}{
		{"local", logrus.DebugLevel, false},
		{"development", logrus.DebugLevel, true},
		{"production", logrus.InfoLevel, true},
		{"anything-else", logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithOutput(tt.env, &buf)
			assert.Equal(t, tt.level, log.GetLevel())

			log.WithField("op", "test").Info("hello")

			var entry map[string]any
			err := json.Unmarshal(buf.Bytes(), &entry)
			if tt.wantJSON {
				require.NoError(t, err)
				assert.Equal(t, "hello", entry["msg"])
				assert.Equal(t, "test", entry["op"])
			} else {
				assert.Error(t, err)
				assert.Contains(t, buf.String(), "op=test")
			}
		})
	}
}
