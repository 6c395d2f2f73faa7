// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package inference

import (
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// llmCatalog is the static catalog of hosted models served next to the
// gateway proxy. Deployment args are what the serving stack is launched
// with; gated models need the user's own access token.
var llmCatalog = []model.LLMModel{
	{
		Name:          "llama-3.3-70b-instruct",
		Family:        "llama",
		License:       "Llama 3.3 Community License",
		ContextWindow: 131072,
		Args:          []string{"--max-model-len", "131072", "--tensor-parallel-size", "4"},
		NeedsToken:    true,
	},
	{
		Name:          "qwen2.5-72b-instruct",
		Family:        "qwen",
		License:       "Qwen License",
		ContextWindow: 131072,
		Args:          []string{"--max-model-len", "131072", "--tensor-parallel-size", "4"},
		NeedsToken:    false,
	},
	{
		Name:          "mistral-small-24b-instruct",
		Family:        "mistral",
		License:       "Apache-2.0",
		ContextWindow: 32768,
		Args:          []string{"--max-model-len", "32768"},
		NeedsToken:    false,
	},
	{
		Name:          "deepseek-r1-distill-llama-70b",
		Family:        "deepseek",
		License:       "MIT",
		ContextWindow: 131072,
		Args:          []string{"--max-model-len", "131072", "--tensor-parallel-size", "4"},
		NeedsToken:    false,
	},
}

// LLMModels lists the hosted model catalog.
func LLMModels() []model.LLMModel {
	out := make([]model.LLMModel, len(llmCatalog))
	copy(out, llmCatalog)
	return out
}

// LLMModel returns one catalog entry by name.
func LLMModel(name string) (*model.LLMModel, error) {
	for i := range llmCatalog {
		if llmCatalog[i].Name == name {
			entry := llmCatalog[i]
			return &entry, nil
		}
	}
	return nil, errors.NewNotFound("no hosted model named " + name)
}
