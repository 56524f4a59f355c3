package conversion

import "testing"

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"progress and logs", `{"progress":{"completed":1,"total":3},"logs":["🔢 Converting sequences"]}`, true},
		{"logs only", `{"logs":[]}`, true},
		{"plain text", "✅ A: 1 rows in 1s", false},
		{"unrelated json", `{"status":"ok"}`, false},
		{"broken json", `{"progress":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := DecodePayload(tt.data); ok != tt.ok {
				t.Errorf("DecodePayload() ok = %v, want %v", ok, tt.ok)
			}
		})
	}
}

func TestPayload_Events(t *testing.T) {
	p, ok := DecodePayload(`{"progress":{"completed":1,"total":4},"logs":["🔢 Converting sequences","✅ SEQ_A migrated"]}`)
	if !ok {
		t.Fatal("payload not recognised")
	}
	evs := p.Events(ObjectSequence)
	if len(evs) != 2 {
		t.Fatalf("len = %d, want 2", len(evs))
	}
	if evs[0].Phase != PhaseSequences {
		t.Errorf("first event phase = %q", evs[0].Phase)
	}
	last := evs[1]
	if last.Done != 1 || last.Total != 4 || last.Percent == nil || *last.Percent != 25 {
		t.Errorf("progress not attached to last event: %+v", last)
	}
	if last.Terminal {
		t.Error("1/4 must not be terminal")
	}
}

func TestPayload_EventsCompletion(t *testing.T) {
	p, _ := DecodePayload(`{"progress":{"completed":4,"total":4},"logs":[]}`)
	evs := p.Events(ObjectSequence)
	if len(evs) != 1 {
		t.Fatalf("len = %d, want a synthetic progress event", len(evs))
	}
	ev := evs[0]
	if ev.Message != "Progress: 4/4" || !ev.Terminal || ev.Phase != PhaseCompleted {
		t.Errorf("event = %+v", ev)
	}
}

func TestPayload_TypedLogEntries(t *testing.T) {
	p, ok := DecodePayload(`{"logs":[{"type":"success","message":"✅ Sequence 'S1' created successfully."}],"progress":{"completed":1,"total":1}}`)
	if !ok {
		t.Fatal("payload with object log entries not recognised")
	}
	evs := p.Events(ObjectSequence)
	if len(evs) != 1 {
		t.Fatalf("len = %d, want 1", len(evs))
	}
	ev := evs[0]
	if ev.Message != "✅ Sequence 'S1' created successfully." {
		t.Errorf("Message = %q", ev.Message)
	}
	if ev.Severity != SeveritySuccess || !ev.Terminal || ev.Phase != PhaseCompleted {
		t.Errorf("event = %+v", ev)
	}
}

func TestPayload_TypeOverridesSeverity(t *testing.T) {
	p, _ := DecodePayload(`{"logs":[{"type":"info","message":"🎉 Sequence migration completed: 3 total."},"plain ⚠️ line"],"progress":{"completed":3,"total":3}}`)
	evs := p.Events(ObjectSequence)
	if len(evs) != 2 {
		t.Fatalf("len = %d, want 2", len(evs))
	}
	if evs[0].Severity != SeverityInfo {
		t.Errorf("typed entry severity = %q, want info", evs[0].Severity)
	}
	if evs[1].Severity != SeverityWarning {
		t.Errorf("bare entry severity = %q, want warning", evs[1].Severity)
	}
}

func TestPayload_NothingToConvert(t *testing.T) {
	start, _ := DecodePayload(`{"logs":[{"type":"info","message":"🔢 Starting sequences migration for schema 'HR' from source 'oracle'."}],"progress":{"completed":0,"total":0}}`)
	if evs := start.Events(ObjectSequence); evs[0].Terminal {
		t.Errorf("0/0 start unit must not end the job: %+v", evs[0])
	}
	empty, _ := DecodePayload(`{"logs":[{"type":"warning","message":"⚠️ No sequences found to migrate in schema 'HR'."}],"progress":{"completed":0,"total":0}}`)
	ev := empty.Events(ObjectSequence)[0]
	if !ev.Terminal || ev.Phase != PhaseCompleted || ev.Severity != SeverityWarning {
		t.Errorf("event = %+v", ev)
	}
}
