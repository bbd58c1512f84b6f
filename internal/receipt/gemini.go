package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for OCR when none is configured.
const DefaultModelName = "gemini-2.5-flash"

const ocrPrompt = "You are an OCR engine for shop receipts.\n\n" +
	"Task:\n" +
	"- Transcribe ALL text printed on the attached receipt image, line by line, top to bottom.\n" +
	"- Keep amounts, dates and currency symbols exactly as printed.\n" +
	"- Estimate how legible the receipt is as a confidence between 0 and 1.\n\n" +
	"Output STRICT JSON only, with exactly these fields:\n" +
	"- \"text\": string (the transcription, lines separated by \\n)\n" +
	"- \"confidence\": number\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// contentGenerator is the part of genai.Models the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor performs OCR with a Gemini multimodal model.
type GeminiExtractor struct {
	models contentGenerator
	model  string
}

var _ TextExtractor = (*GeminiExtractor)(nil)

// NewGeminiExtractor creates a Gemini client. An empty apiKey lets the SDK
// read GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{models: client.Models, model: model}, nil
}

// ExtractText implements TextExtractor.
func (g *GeminiExtractor) ExtractText(ctx context.Context, image []byte, mimeType string) (Extraction, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: ocrPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Extraction{}, fmt.Errorf("ExtractText: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return Extraction{}, fmt.Errorf("ExtractText: empty response from model")
	}

	var out Extraction
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		// Some responses ignore the JSON instruction and return the bare transcription.
		return Extraction{Text: strings.TrimSpace(raw)}, nil
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		out.Confidence = 0
	}
	return out, nil
}

// cleanModelJSON strips Markdown fences and anything around the outermost object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
