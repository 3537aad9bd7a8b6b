package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "cardoncue-test"})
	return log, &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestJSONOutputCarriesFields(t *testing.T) {
	log, buf := newBufferLogger(t)

	log.WithFields(Fields{FieldJobID: "job-1", FieldProvider: "community"}).Info("lookup finished")

	entry := lastLine(t, buf)
	assert.Equal(t, "lookup finished", entry["message"])
	assert.Equal(t, "cardoncue-test", entry["service"])
	assert.Equal(t, "job-1", entry[FieldJobID])
	assert.Equal(t, "community", entry[FieldProvider])
}

func TestContextPropagation(t *testing.T) {
	log, buf := newBufferLogger(t)

	ctx := log.WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-42")
	ctx = SetBatchID(ctx, "batch-7")

	assert.Equal(t, "req-42", GetRequestID(ctx))

	CtxInfo(ctx, "claimed %d jobs", 3)

	entry := lastLine(t, buf)
	assert.Equal(t, "claimed 3 jobs", entry["message"])
	assert.Equal(t, "req-42", entry[FieldRequestID])
	assert.Equal(t, "batch-7", entry[FieldBatchID])
}

func TestEntryMetricFields(t *testing.T) {
	log, buf := newBufferLogger(t)
	ctx := log.WithContext(context.Background())

	With(Fields{FieldCount: 12}).WithCost(0.049).WithDuration(830).Info(ctx, "batch finished")

	entry := lastLine(t, buf)
	assert.EqualValues(t, 12, entry[FieldCount])
	assert.InDelta(t, 0.049, entry[FieldCost].(float64), 1e-9)
	assert.EqualValues(t, 830, entry[FieldDurationMs])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, FromContext(nil)) //nolint:staticcheck
}
