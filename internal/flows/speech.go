package flows

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// Gemini TTS output format: 16-bit signed little-endian PCM, mono, 24 kHz.
const (
	ttsSampleRate = 24000
	ttsChannels   = 1
	ttsBitDepth   = 16
)

// ttsVoice is the prebuilt voice used for read-aloud playback.
const ttsVoice = "Algenib"

// Speak synthesizes speech for the given text and returns a playable WAV
// audio data URI.
func (s *Service) Speak(ctx context.Context, text string) (string, error) {
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(ttsModel),
		ai.WithPrompt(text),
		ai.WithConfig(&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: ttsVoice},
				},
			},
		}),
	)
	if err != nil {
		return "", fmt.Errorf("speech synthesis: %w", err)
	}

	url := firstMediaURL(resp)
	if url == "" {
		return "", fmt.Errorf("speech synthesis: no audio produced")
	}

	pcm, err := decodeDataURI(url)
	if err != nil {
		return "", fmt.Errorf("speech synthesis: %w", err)
	}

	wav := pcmToWAV(pcm, ttsSampleRate, ttsChannels, ttsBitDepth)
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav), nil
}

// decodeDataURI extracts and decodes the base64 payload of a data URI.
func decodeDataURI(uri string) ([]byte, error) {
	i := strings.Index(uri, ",")
	if !strings.HasPrefix(uri, "data:") || i < 0 {
		return nil, fmt.Errorf("not a data URI")
	}
	data, err := base64.StdEncoding.DecodeString(uri[i+1:])
	if err != nil {
		return nil, fmt.Errorf("decoding audio payload: %w", err)
	}
	return data, nil
}

// pcmToWAV wraps raw PCM samples in a RIFF/WAVE header so browsers can play
// the result directly.
func pcmToWAV(pcm []byte, sampleRate, channels, bitDepth int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	dataLen := len(pcm)

	buf := make([]byte, 0, 44+dataLen)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataLen))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16) // PCM chunk size
	buf = binary.LittleEndian.AppendUint16(buf, 1)  // PCM format
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bitDepth))
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))
	buf = append(buf, pcm...)
	return buf
}
