package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("extracted", "entry", "e00_001.lin")

	assert.Contains(t, buf.String(), `"msg":"extracted"`)
	assert.Contains(t, buf.String(), `"entry":"e00_001.lin"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelWarn)
	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelDebug).With("archive", "dr1_data.wad").WithGroup("entry")
	log.Debug("open", "name", "bgm.awb")

	assert.Contains(t, buf.String(), `"archive":"dr1_data.wad"`)
	assert.Contains(t, buf.String(), `"entry":{"name":"bgm.awb"}`)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing happens")
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)

	assert.NotNil(t, FromContext(context.Background()))

	FromContext(WithContext(context.Background(), log)).Info("round trip")
	assert.Contains(t, buf.String(), "round trip")
}

func TestParseLevel(t *testing.T) {
	for _, x := range []struct {
		Level string
		Want  slog.Level
		Error bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	} {
		l, err := ParseLevel(x.Level)
		if x.Error {
			require.Error(t, err, x.Level)
			continue
		}
		require.NoError(t, err, x.Level)
		assert.Equal(t, x.Want, l, x.Level)
	}
}
