package flows

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// GenerateImage creates an image from a text prompt and returns it as a
// data URI. A call that succeeds but yields no image returns
// ErrNoImageProduced.
func (s *Service) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(imageGenModel),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		}),
	)
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}

	if url := firstMediaURL(resp); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("image generation: %w", ErrNoImageProduced)
}

// EditImage applies a text-described edit to a source image and returns the
// edited image as a data URI.
func (s *Service) EditImage(ctx context.Context, imageDataURI, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(imageEditModel),
		ai.WithMessages(ai.NewUserMessage(
			mediaPart(imageDataURI),
			ai.NewTextPart(prompt),
		)),
		ai.WithConfig(&genai.GenerateContentConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		}),
	)
	if err != nil {
		return "", fmt.Errorf("image editing: %w", err)
	}

	if url := firstMediaURL(resp); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("image editing: %w", ErrNoImageProduced)
}
