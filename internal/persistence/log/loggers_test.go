package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"veldora.quest/internal/sim/world"
)

func TestTranscriptLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTranscriptLogger(dir)

	entries := []world.TranscriptEntry{
		{Tick: 1, Requester: "Bob", Responder: "Hank", Prompt: "hi", Message: "hello", OK: true},
		{Tick: 2, Requester: "Bob", Responder: "Hank", Prompt: "sword?", Message: "here", OK: true,
			Actions: []world.TranscriptAction{{Item: "Steel Sword", Amount: 1, OK: true}}},
	}
	for _, e := range entries {
		if err := l.WriteTranscript(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(dir, "transcripts"))
	if err != nil || len(files) != 1 {
		t.Fatalf("transcript files: %v err=%v", files, err)
	}
	name := files[0].Name()
	if !strings.HasPrefix(name, "transcripts-") || !strings.HasSuffix(name, ".jsonl.zst") {
		t.Fatalf("file name: %q", name)
	}

	f, err := os.Open(filepath.Join(dir, "transcripts", name))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []world.TranscriptEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e world.TranscriptEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line: %v", err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Tick != 1 || got[1].Prompt != "sword?" {
		t.Fatalf("entries: %+v", got)
	}
	if len(got[1].Actions) != 1 || got[1].Actions[0].Item != "Steel Sword" {
		t.Fatalf("actions: %+v", got[1].Actions)
	}
}
