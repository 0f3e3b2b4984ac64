package flows

import (
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"
)

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  string
	}{
		{"empty falls back", "", DefaultModel},
		{"allow-listed bare name", "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"allow-listed qualified name", "googleai/gemini-2.0-flash", "googleai/gemini-2.0-flash"},
		{"unknown falls back", "gpt-4", DefaultModel},
		{"unknown qualified falls back", "googleai/gemini-1.0-pro", DefaultModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveModel(tt.model); got != tt.want {
				t.Errorf("resolveModel(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestDataURIContentType(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"data:image/png;base64,AAAA", "image/png"},
		{"data:audio/wav;base64,AAAA", "audio/wav"},
		{"data:text/plain,hello", "text/plain"},
		{"https://example.com/cat.png", ""},
		{"data:", ""},
	}
	for _, tt := range tests {
		if got := dataURIContentType(tt.uri); got != tt.want {
			t.Errorf("dataURIContentType(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestPCMToWAV(t *testing.T) {
	pcm := make([]byte, 480) // 10ms of 24kHz mono 16-bit audio
	wav := pcmToWAV(pcm, 24000, 1, 16)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("header magic = %q %q, want RIFF WAVE", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bit depth = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data length = %d, want %d", got, len(pcm))
	}
}

func TestDecodeDataURI(t *testing.T) {
	got, err := decodeDataURI("data:audio/pcm;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("decodeDataURI() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("decodeDataURI() = %q, want %q", got, "hello")
	}

	for _, bad := range []string{"https://example.com/a.wav", "data:audio/pcm;base64,!!!", "hello"} {
		if _, err := decodeDataURI(bad); err == nil {
			t.Errorf("decodeDataURI(%q) error = nil, want error", bad)
		}
	}
}

func TestFormatSearchResults(t *testing.T) {
	t.Run("answer and results", func(t *testing.T) {
		var resp tavilyResponse
		raw := `{"answer":"It is sunny.","results":[{"title":"Weather today","url":"https://example.com/wx","content":"Sunny, 25C"}]}`
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			t.Fatalf("unmarshal fixture: %v", err)
		}

		got := formatSearchResults("weather", resp)
		for _, want := range []string{`Search results for "weather"`, "Summary: It is sunny.", "1. Weather today", "https://example.com/wx", "Sunny, 25C"} {
			if !strings.Contains(got, want) {
				t.Errorf("formatted output missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("no results", func(t *testing.T) {
		got := formatSearchResults("weather", tavilyResponse{})
		if !strings.Contains(got, "No results found.") {
			t.Errorf("formatted output missing no-results marker:\n%s", got)
		}
	})
}
