package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ProdWritesJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
	var buf bytes.Buffer
	setup("prod", &buf)

	log.Debug().Msg("hidden")
	logger := Component("order")
	logger.Info().Int64("order", 7).Msg("order created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "order", line["component"])
	assert.Equal(t, "order created", line["message"])
	assert.EqualValues(t, 7, line["order"])
	assert.Contains(t, line, "time")
}
