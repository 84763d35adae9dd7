// internal/events/registry_test.go
package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Unmarshal(t *testing.T) {
	registry := NewRegistry()
	registry.Register(EventFileProcessed, func() Event { return &FileProcessed{} })

	raw := RawEvent{
		EventType: EventFileProcessed,
		Payload:   `{"type":"file.processed","entity_type":"job","entity_id":"j1","occurred_at":"2024-01-01T00:00:00Z","index":7,"path":"/in/a.mp4","outcome":"failure","kind":"oversized","duration_ms":12}`,
	}

	event, err := registry.Unmarshal(raw)
	require.NoError(t, err)

	fp, ok := event.(*FileProcessed)
	require.True(t, ok)
	assert.Equal(t, 7, fp.Index)
	assert.Equal(t, "oversized", fp.Kind)
	assert.Equal(t, "j1", fp.EntityID())
	assert.False(t, fp.Succeeded())
}

func TestRegistry_UnmarshalUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Unmarshal(RawEvent{EventType: "unknown.event", Payload: `{}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestRegistry_UnmarshalInvalidJSON(t *testing.T) {
	registry := NewRegistry()
	registry.Register(EventJobStarted, func() Event { return &JobStarted{} })

	_, err := registry.Unmarshal(RawEvent{EventType: EventJobStarted, Payload: `{not json`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal event payload")
}

func TestDefaultRegistry_RegistersImportEvents(t *testing.T) {
	registry := DefaultRegistry()

	for _, eventType := range []string{
		EventJobStarted, EventJobStateChanged, EventJobFinished, EventJobCleared,
		EventBatchStarted, EventBatchCompleted, EventFileProcessed, EventMediaAdded,
	} {
		t.Run(eventType, func(t *testing.T) {
			e, err := registry.Unmarshal(RawEvent{EventType: eventType, Payload: `{}`})
			require.NoError(t, err)
			assert.NotNil(t, e)
		})
	}
}
