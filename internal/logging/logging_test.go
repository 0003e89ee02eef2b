package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	defer func() {
		logrus.SetFormatter(&logrus.TextFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	}()

	t.Run("json output carries component", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := Configure("debug", "json", "server", &buf)
		require.NoError(t, err)

		log.Debug("hello")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "server", entry["component"])
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	})

	t.Run("defaults to info text", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := Configure("", "", "worker", &buf)
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := Configure("loud", "text", "x", nil)
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := Configure("info", "xml", "x", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log format")
	})
}
