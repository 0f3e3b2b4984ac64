package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// ChatRequest is one conversational round-trip to the model.
type ChatRequest struct {
	Prompt string
	// Model optionally selects a chat model; anything outside the
	// allow-list falls back to DefaultModel.
	Model string
	// ImageDataURI optionally grounds the prompt in a user-provided image.
	ImageDataURI string
	// UseRealtimeSearch enables the web-search tool for this turn.
	UseRealtimeSearch bool
}

// ChatResponse carries the model's reply and optional follow-up suggestions.
type ChatResponse struct {
	ResponseText string   `json:"responseText"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

const baseSystemPrompt = "You are OMNI, a helpful assistant. After your main response, " +
	"provide a few brief, relevant follow-up questions or actions as suggestions for the user. " +
	"These should be concise and directly related to the conversation topic."

const searchSystemPrompt = " If the user's query seems to require current information, " +
	"browsing the web, or finding specific facts you don't know (such as current weather, " +
	"climate data, or forecasts), use the 'searchTool' to get up-to-date information. " +
	"Incorporate the search results into your answer. Clearly indicate when you are using " +
	"the search tool. When providing weather or climate information obtained from the " +
	"searchTool, present it in a structured format such as a Markdown table for key details " +
	"like Temperature, Humidity, Wind, and Conditions; if a table isn't suitable, use clear " +
	"bullet points."

const imageSystemPrompt = "\nThe user has provided an image. Your primary task is to " +
	"analyze the image in conjunction with the text prompt. Do not use tools unless the " +
	"user explicitly asks for external information related to the image."

// Chat runs one conversational turn, optionally grounded in an image and
// optionally augmented with the web-search tool.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	system := baseSystemPrompt
	if req.UseRealtimeSearch {
		system += searchSystemPrompt
	}
	if req.ImageDataURI != "" {
		system += imageSystemPrompt
	}

	parts := make([]*ai.Part, 0, 2)
	if req.ImageDataURI != "" {
		parts = append(parts, mediaPart(req.ImageDataURI))
	}
	parts = append(parts, ai.NewTextPart(req.Prompt))

	opts := []ai.GenerateOption{
		ai.WithModelName(resolveModel(req.Model)),
		ai.WithSystem(system),
		ai.WithMessages(ai.NewUserMessage(parts...)),
		ai.WithOutputType(ChatResponse{}),
		ai.WithConfig(chatSafetyConfig()),
	}
	if req.UseRealtimeSearch {
		opts = append(opts,
			ai.WithTools(s.searchTool),
			ai.WithMaxTurns(3),
		)
	}

	s.logger.Debug("chat turn",
		"model", resolveModel(req.Model),
		"has_image", req.ImageDataURI != "",
		"search", req.UseRealtimeSearch,
	)

	resp, err := genkit.Generate(ctx, s.g, opts...)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat generation: %w", err)
	}

	var out ChatResponse
	if err := resp.Output(&out); err != nil || strings.TrimSpace(out.ResponseText) == "" {
		// Structured output missing: fall back to the raw response text.
		out = ChatResponse{ResponseText: resp.Text()}
	}
	return out, nil
}

// AnalyzeImage answers a question about a user-provided image. An empty
// question defaults to a description request.
func (s *Service) AnalyzeImage(ctx context.Context, imageDataURI, question string) (string, error) {
	if question == "" {
		question = "Describe this image."
	}

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(DefaultModel),
		ai.WithMessages(ai.NewUserMessage(
			mediaPart(imageDataURI),
			ai.NewTextPart(question),
		)),
		ai.WithConfig(chatSafetyConfig()),
	)
	if err != nil {
		return "", fmt.Errorf("image analysis: %w", err)
	}
	return resp.Text(), nil
}

// chatSafetyConfig mirrors the safety thresholds the hosted product ships
// with: sexually explicit content is blocked at a lower threshold than the
// other harm categories.
func chatSafetyConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		},
	}
}
