package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "info")

	log.Debug().Msg("hidden")
	log.Info().Str("request_id", "abc").Msg("conversion succeeded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "conversion succeeded", entry["message"])
	assert.Equal(t, "media-converter", entry["service"])
	assert.Equal(t, "abc", entry["request_id"])
}

func TestDevelopmentDefaultsToDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "development", "")

	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
