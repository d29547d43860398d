package world

// TranscriptLogger receives one entry per completed exchange. Writers
// are append-only observability sinks (JSONL files, the sqlite index);
// nothing in the sim ever reads them back.
type TranscriptLogger interface {
	WriteTranscript(entry TranscriptEntry) error
}

type TranscriptEntry struct {
	Tick      uint64             `json:"tick"`
	Requester string             `json:"requester"`
	Responder string             `json:"responder"`
	Prompt    string             `json:"prompt"`
	Reply     string             `json:"reply,omitempty"` // raw model output
	Message   string             `json:"message"`         // decoded dialogue text
	OK        bool               `json:"ok"`
	Code      string             `json:"code,omitempty"`
	Actions   []TranscriptAction `json:"actions,omitempty"`
}

type TranscriptAction struct {
	Item   string `json:"item"`
	Amount int    `json:"amount"`
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
}
