package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger("prod", &buf), "hub")
	logger.Debug().Msg("скрыто")
	logger.Info().Int64("user_id", 7).Msg("подключение")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hub", entry["component"])
	require.Equal(t, "prod", entry["env"])
	require.EqualValues(t, 7, entry["user_id"])
	require.Equal(t, "подключение", entry["message"])
}

func TestNewLoggerDevEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("dev", &buf)
	logger.Debug().Msg("отладка")
	require.Contains(t, buf.String(), "отладка")
}
