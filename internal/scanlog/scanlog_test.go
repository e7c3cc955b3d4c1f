package scanlog

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_TagsLinesWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New("scheduler", &buf)
	logger.Info("target expanded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "scheduler", line["component"])
	require.Equal(t, "target expanded", line["msg"])
}

func TestWithScan_AddsScanID(t *testing.T) {
	var buf bytes.Buffer
	logger := WithScan(New("aggregator", &buf), "scan-42")
	logger.Info("committed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "scan-42", line["scan_id"])
	require.Equal(t, "aggregator", line["component"])
}

func TestFromContext_ReturnsDiscardWhenUnset(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
}

func TestIntoContext_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	logger := New("correlator", &buf)
	ctx := IntoContext(context.Background(), logger)

	got := FromContext(ctx)
	got.Info("resolved")
	require.Contains(t, buf.String(), "resolved")
}
