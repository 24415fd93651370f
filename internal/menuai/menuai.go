// Package menuai turns a photo of the mess menu into a structured day menu using the
// Gemini generateContent API, degrading to a static menu on any failure.
package menuai

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/observability"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"
)

// MaxImageBytes is the largest photo sent to the AI API.
const MaxImageBytes = 4 << 20

const prompt = `You are reading a photo of a college mess (dining hall) menu for a single day.
Return ONLY a JSON object with exactly these keys: "breakfast", "lunch", "snacks", "dinner".
Each value is an array of dish names as strings, in the order they appear. Use an empty array
for a meal that is not on the menu. Do not add any other keys, prose or markdown.`

//go:embed fallback.yaml
var fallbackYAML []byte

// Menu is the four meals of one day.
type Menu struct {
	Breakfast []string `json:"breakfast" yaml:"breakfast"`
	Lunch     []string `json:"lunch" yaml:"lunch"`
	Snacks    []string `json:"snacks" yaml:"snacks"`
	Dinner    []string `json:"dinner" yaml:"dinner"`
}

// Result is a parsed menu and where it came from. Reason is set for fallbacks.
type Result struct {
	Menu   Menu
	Source models.MenuSource
	Reason string
}

// Parser extracts a menu from an image. Implementations never fail; they fall back.
type Parser interface {
	ParseMenu(ctx context.Context, image []byte, contentType string) Result
}

// Fallback returns a copy of the static menu.
func Fallback() Menu {
	var m Menu
	if err := yaml.Unmarshal(fallbackYAML, &m); err != nil {
		panic(fmt.Sprintf("menuai: embedded fallback menu is invalid: %v", err))
	}
	return m
}

// GeminiClient calls POST <endpoint>/models/<model>:generateContent?key=<key>.
type GeminiClient struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// NewGeminiClient returns a client with a 30s default timeout.
func NewGeminiClient(apiKey, model, endpoint string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		APIKey:   apiKey,
		Model:    model,
		Endpoint: strings.TrimRight(endpoint, "/"),
		Timeout:  timeout,
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type fallbackError struct {
	reason string
	err    error
}

func (e *fallbackError) Error() string {
	if e.err != nil {
		return e.reason + ": " + e.err.Error()
	}
	return e.reason
}

func fallbackBecause(reason string, err error) error {
	return &fallbackError{reason: reason, err: err}
}

// ParseMenu implements Parser.
func (c *GeminiClient) ParseMenu(ctx context.Context, image []byte, contentType string) Result {
	menu, err := c.parse(ctx, image, contentType)
	if err == nil {
		observability.MenuParses.WithLabelValues("ai").Inc()
		return Result{Menu: menu, Source: models.MenuSourceAI}
	}

	reason := "unknown"
	var fe *fallbackError
	if errors.As(err, &fe) {
		reason = fe.reason
	}
	observability.MenuParses.WithLabelValues("fallback_" + reason).Inc()
	middleware.Logger.WarnContext(ctx, "menu parse fell back to static menu",
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	return Result{Menu: Fallback(), Source: models.MenuSourceFallback, Reason: reason}
}

func (c *GeminiClient) parse(ctx context.Context, image []byte, contentType string) (Menu, error) {
	if c.APIKey == "" {
		return Menu{}, fallbackBecause("no_api_key", nil)
	}
	if len(image) == 0 {
		return Menu{}, fallbackBecause("empty_image", nil)
	}
	if len(image) > MaxImageBytes {
		return Menu{}, fallbackBecause("too_large", fmt.Errorf("%d bytes", len(image)))
	}
	mimeType := http.DetectContentType(image)
	if !strings.HasPrefix(mimeType, "image/") {
		return Menu{}, fallbackBecause("not_image", fmt.Errorf("declared %q, detected %q", contentType, mimeType))
	}

	ctx, span := observability.StartClientSpan(ctx, "gemini", "generateContent")
	defer span.End()

	timeout := c.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return Menu{}, fallbackBecause("timeout", context.DeadlineExceeded)
	}

	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{
			{Text: prompt},
			{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
		}}},
		GenerationConfig: map[string]any{"temperature": 0, "responseMimeType": "application/json"},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.Endpoint, c.Model)
	status, body, errs := fiber.Post(url).
		Set("x-goog-api-key", c.APIKey).
		Timeout(timeout).
		JSON(req).
		Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.SetError(err)
		return Menu{}, fallbackBecause("request_failed", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.SetError(err)
		return Menu{}, fallbackBecause("bad_response", err)
	}
	if status >= fiber.StatusBadRequest || resp.Error != nil {
		err := fmt.Errorf("status %d", status)
		if resp.Error != nil {
			err = fmt.Errorf("status %d %s: %s", status, resp.Error.Status, resp.Error.Message)
		}
		span.SetError(err)
		if status == fiber.StatusTooManyRequests {
			return Menu{}, fallbackBecause("quota", err)
		}
		return Menu{}, fallbackBecause("http_error", err)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	menu, err := DecodeMenu(text.String())
	if err != nil {
		return Menu{}, fallbackBecause("invalid_menu", err)
	}
	return menu, nil
}

var mealKeys = []string{"breakfast", "lunch", "snacks", "dinner"}

// DecodeMenu parses model output: an optional markdown code fence around a JSON
// object with exactly the keys breakfast, lunch, snacks and dinner, each an array
// of strings. Blank dish names are dropped.
func DecodeMenu(raw string) (Menu, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return Menu{}, errors.New("empty response")
	}

	var meals map[string][]string
	if err := json.Unmarshal([]byte(text), &meals); err != nil {
		return Menu{}, fmt.Errorf("decode menu json: %w", err)
	}
	if len(meals) != len(mealKeys) {
		return Menu{}, fmt.Errorf("expected %d meals, got %d", len(mealKeys), len(meals))
	}
	for _, k := range mealKeys {
		dishes, ok := meals[k]
		if !ok {
			return Menu{}, fmt.Errorf("missing key %q", k)
		}
		if dishes == nil {
			return Menu{}, fmt.Errorf("key %q is not an array", k)
		}
	}

	return Menu{
		Breakfast: cleanDishes(meals["breakfast"]),
		Lunch:     cleanDishes(meals["lunch"]),
		Snacks:    cleanDishes(meals["snacks"]),
		Dinner:    cleanDishes(meals["dinner"]),
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func cleanDishes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
