package envelope

import (
	"encoding/json"
	"testing"
	"time"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAnnotateMeta_AdditivePreservesExistingKeys(t *testing.T) {
	t.Parallel()

	existing := map[string]any{"custom": "value", "session_id": "keep-me"}
	now := fixedNow(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	got := AnnotateMeta(existing, "transport-session", now)

	if got["custom"] != "value" {
		t.Fatalf("expected pre-existing custom key preserved, got %v", got["custom"])
	}
	if got["session_id"] != "keep-me" {
		t.Fatalf("expected pre-existing session_id preserved additively, got %v", got["session_id"])
	}
	if got["source"] != MetadataSource {
		t.Fatalf("expected source = %q, got %v", MetadataSource, got["source"])
	}
	if got["timestamp"] == "" {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestAnnotateMeta_TimestampAlwaysRefreshed(t *testing.T) {
	t.Parallel()

	t1 := fixedNow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	t2 := fixedNow(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))

	meta := AnnotateMeta(nil, "s1", t1)
	first := meta["timestamp"]

	meta = AnnotateMeta(meta, "s1", t2)
	second := meta["timestamp"]

	if first == second {
		t.Fatalf("expected timestamp to advance between annotations, got %v twice", first)
	}
}

func TestAnnotateRequestParams_PreservesOtherFields(t *testing.T) {
	t.Parallel()

	params := json.RawMessage(`{"name":"echo","arguments":{"x":"hi"}}`)
	now := fixedNow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	out, err := AnnotateRequestParams(params, "sess-1", now)
	if err != nil {
		t.Fatalf("AnnotateRequestParams: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Unmarshal annotated params: %v", err)
	}

	if decoded["name"] != "echo" {
		t.Fatalf("expected name preserved, got %v", decoded["name"])
	}
	meta, ok := decoded["_meta"].(map[string]any)
	if !ok {
		t.Fatalf("expected _meta object, got %T", decoded["_meta"])
	}
	if meta["session_id"] != "sess-1" {
		t.Fatalf("expected session_id = sess-1, got %v", meta["session_id"])
	}
	if meta["source"] != MetadataSource {
		t.Fatalf("expected source annotated, got %v", meta["source"])
	}
}
