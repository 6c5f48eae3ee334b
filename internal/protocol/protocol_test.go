package protocol

import (
	"strings"
	"testing"
	"time"
)

func TestProgressSubject(t *testing.T) {
	if got := ProgressSubject("abc"); got != "juggie.progress.abc" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestProgressEventWireNames(t *testing.T) {
	data, err := Encode(ProgressEvent{SessionID: "s1", Stage: "synthesizing", Level: LevelInfo, Message: "Generating voice part 1/2", Part: 1, Total: 2, Timestamp: time.Unix(0, 0).UTC()})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"session_id":"s1"`, `"part":1`, `"total":2`, `"stage":"synthesizing"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("expected %s in %s", key, data)
		}
	}
	if strings.Contains(string(data), `"final"`) {
		t.Fatalf("final should be omitted when false: %s", data)
	}
	var back ProgressEvent
	if err := Decode(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Message != "Generating voice part 1/2" {
		t.Fatalf("unexpected message %q", back.Message)
	}
}
