package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hzerradi/foodscan/internal/domain/ai"
	"github.com/hzerradi/foodscan/internal/domain/food"
	"github.com/hzerradi/foodscan/internal/infra/ai/prompt"
)

// Fixed defaults: all overridable at construction.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "deepseek/deepseek-chat-v3-0324:free"
	DefaultMaxTokens   = 800
	DefaultTemperature = 0.7

	// Successful responses are cached keyed by the exact serialized request;
	// beyond cacheLimit entries the first-inserted one is evicted (FIFO, not
	// LRU).
	cacheLimit = 50
)

// Identification headers OpenRouter expects on every call.
const (
	refererHeader = "com.foodscanner.app"
	titleHeader   = "Food Scanner App"
)

// Config carries the tunables merged into every outbound request.
type Config struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

func (c *Config) fillDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
}

// Client talks to OpenRouter's OpenAI-compatible completion endpoint. It is
// safe for concurrent use; the cache is process-local and never persisted.
type Client struct {
	api   *openai.Client
	httpc *http.Client
	cfg   Config

	baseURL string
	apiKey  string

	mu    sync.Mutex
	cache map[string]openai.ChatCompletionResponse
	order []string
}

var _ ai.Client = (*Client)(nil)

// identifyingTransport injects the OpenRouter identification headers.
type identifyingTransport struct {
	base http.RoundTripper
}

func (t identifyingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r.Header.Set("HTTP-Referer", refererHeader)
	r.Header.Set("X-Title", titleHeader)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

func New(apiKey string, cfg Config) *Client {
	cfg.fillDefaults()

	httpc := &http.Client{Transport: identifyingTransport{}}

	apiCfg := openai.DefaultConfig(apiKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = httpc

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		httpc:   httpc,
		cfg:     cfg,
		baseURL: cfg.BaseURL,
		apiKey:  apiKey,
		cache:   make(map[string]openai.ChatCompletionResponse),
	}
}

// chat sends a completion request, going through the cache first. The cache
// key is the exact serialization of the full request, so any payload change
// is a miss.
func (c *Client) chat(ctx context.Context, messages []openai.ChatCompletionMessage) (openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    messages,
	}

	keyBytes, err := json.Marshal(req)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	key := string(keyBytes)

	c.mu.Lock()
	if resp, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return resp, nil
	}
	c.mu.Unlock()

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, classify(err)
	}

	c.mu.Lock()
	if _, ok := c.cache[key]; !ok {
		c.cache[key] = resp
		c.order = append(c.order, key)
		if len(c.cache) > cacheLimit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.cache, oldest)
		}
	}
	c.mu.Unlock()

	return resp, nil
}

// classify maps provider failures to the fixed user-facing messages. The
// wording is part of the observable contract: the orchestrator's message
// classifier matches on substrings of these.
func classify(err error) error {
	status := 0
	body := ""

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		body = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		body = reqErr.Error()
	default:
		return err
	}

	switch status {
	case http.StatusTooManyRequests:
		return errors.New("Limite de requêtes atteinte (429)")
	case http.StatusUnauthorized:
		return errors.New("Clé API invalide ou expirée")
	case http.StatusForbidden:
		return errors.New("Accès refusé. Vérifie ta clé API.")
	case http.StatusNotFound:
		return errors.New("Modèle ou endpoint introuvable (404)")
	default:
		return fmt.Errorf("Erreur API: %d - %s", status, body)
	}
}

func content(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// AnalyzeFood asks the model for ingredients, recipes and nutrition for a
// food description. Decode failures never surface: the parser degrades to a
// fixed fallback result.
func (c *Client) AnalyzeFood(ctx context.Context, description string) (food.Analysis, error) {
	resp, err := c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.AnalyzeSystem},
		{Role: openai.ChatMessageRoleUser, Content: prompt.Analyze(description)},
	})
	if err != nil {
		return food.Analysis{}, err
	}
	return prompt.ParseAnalysis(content(resp)), nil
}

// RecipesByIngredients suggests recipes for up to three ingredients. Decode
// failures yield an empty list.
func (c *Client) RecipesByIngredients(ctx context.Context, ingredients []string) ([]food.Recipe, error) {
	resp, err := c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.RecipesSystem},
		{Role: openai.ChatMessageRoleUser, Content: prompt.Recipes(ingredients)},
	})
	if err != nil {
		return nil, err
	}
	return prompt.ParseRecipes(content(resp)), nil
}

// NutritionalInfo returns nutrition facts for 100g of a food. This path
// propagates decode failures instead of falling back.
func (c *Client) NutritionalInfo(ctx context.Context, foodName string) (food.NutritionalInfo, error) {
	resp, err := c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.NutritionSystem},
		{Role: openai.ChatMessageRoleUser, Content: prompt.Nutrition(foodName)},
	})
	if err != nil {
		return food.NutritionalInfo{}, err
	}
	return prompt.ParseNutrition(content(resp))
}

// TestConnection sends a minimal prompt and reports whether the answer
// acknowledges. Any failure is false, never an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	resp, err := c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt.ConnectionProbe},
	})
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(content(resp)), "ok")
}

// CheckQuota probes the provider's key endpoint. Best effort: any failure
// returns a zero quota.
func (c *Client) CheckQuota(ctx context.Context) ai.Quota {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/key", nil)
	if err != nil {
		return ai.Quota{}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return ai.Quota{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ai.Quota{}
	}

	var data struct {
		Usage struct {
			Remaining float64 `json:"remaining"`
			Limit     float64 `json:"limit"`
			ResetTime string  `json:"reset_time"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return ai.Quota{}
	}
	return ai.Quota{
		Remaining: data.Usage.Remaining,
		Limit:     data.Usage.Limit,
		ResetTime: data.Usage.ResetTime,
	}
}

func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]openai.ChatCompletionResponse)
	c.order = nil
	c.mu.Unlock()
}

func (c *Client) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
