package flows

import (
	"context"
	"fmt"
)

// Rephrase styles accepted by Rephrase.
const (
	StyleSimpler    = "simpler"
	StyleMoreFormal = "more formal"
)

// Rephrase rewrites text in the requested style.
func (s *Service) Rephrase(ctx context.Context, text, style string) (string, error) {
	if style != StyleSimpler && style != StyleMoreFormal {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}

	prompt := fmt.Sprintf(`Rephrase the following text to be %s. Do not add any commentary, just provide the rephrased text.

Original text:
"""
%s
"""

Rephrased text:`, style, text)

	return s.generateText(ctx, "You are an expert editor.", prompt)
}

// Translate translates text into the target language.
func (s *Service) Translate(ctx context.Context, text, language string) (string, error) {
	prompt := fmt.Sprintf(`Translate the following text into %s. Provide only the translated text.

Original text:
"""
%s
"""

Translated text:`, language, text)

	return s.generateText(ctx, "You are a skilled translator.", prompt)
}

// Expand elaborates on an idea, adding detail, depth, and examples.
func (s *Service) Expand(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Expand on the following text, providing more detail, depth, and examples where appropriate.

Original text:
"""
%s
"""

Expanded version:`, text)

	return s.generateText(ctx, "You are a helpful assistant that elaborates on ideas.", prompt)
}

// ImprovePrompt suggests a sharper version of the user's original prompt,
// given the response it produced.
func (s *Service) ImprovePrompt(ctx context.Context, originalPrompt, aiResponse string) (string, error) {
	prompt := fmt.Sprintf(`Given the user's original prompt and the response it produced, write an improved prompt that would elicit a clearer, more complete answer. Return only the improved prompt.

Original prompt:
"""
%s
"""

Response it produced:
"""
%s
"""

Improved prompt:`, originalPrompt, aiResponse)

	return s.generateText(ctx, "You are a prompt engineering expert.", prompt)
}
