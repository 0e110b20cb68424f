// Package cost estimates what a chat completion spent at list prices.
package cost

import (
	"encoding/json"
	"sync"
)

type ModelPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

var defaultPricing = map[string]ModelPricing{
	"gpt-4o":        {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":   {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4.1-mini":  {InputPer1K: 0.0004, OutputPer1K: 0.0016},
	"gpt-4.1-nano":  {InputPer1K: 0.0001, OutputPer1K: 0.0004},
	"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
}

// Usage is the token accounting block of a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ParseUsage reads the upstream usage object. It reports false for null or
// unparseable usage.
func ParseUsage(raw json.RawMessage) (Usage, bool) {
	var u Usage
	if len(raw) == 0 || string(raw) == "null" {
		return u, false
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return Usage{}, false
	}
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return u, false
	}
	return u, true
}

type Calculator struct {
	mu      sync.RWMutex
	pricing map[string]ModelPricing
}

func NewCalculator() *Calculator {
	pricing := make(map[string]ModelPricing, len(defaultPricing))
	for model, p := range defaultPricing {
		pricing[model] = p
	}
	return &Calculator{pricing: pricing}
}

// Calculate returns the estimated USD cost, or 0 for an unpriced model.
func (c *Calculator) Calculate(model string, usage Usage) float64 {
	c.mu.RLock()
	pricing, ok := c.pricing[model]
	c.mu.RUnlock()
	if !ok {
		return 0
	}

	inputCost := float64(usage.PromptTokens) / 1000 * pricing.InputPer1K
	outputCost := float64(usage.CompletionTokens) / 1000 * pricing.OutputPer1K

	return inputCost + outputCost
}

func (c *Calculator) SetPricing(model string, pricing ModelPricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[model] = pricing
}
