// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package catalog resolves deployable workload metadata from upstream
// git-hosted indexes. Variants implement one Catalog capability set and
// compose: the git-backed source does the fetching, the cached wrapper
// adds TTLs and request coalescing, the static variant serves fixed items.
package catalog

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// Catalog is the capability set every variant provides.
type Catalog interface {
	List(ctx context.Context, kind model.Kind) ([]string, error)
	Detail(ctx context.Context, kind model.Kind) ([]model.CatalogSummary, error)
	Metadata(ctx context.Context, kind model.Kind, name string) (*model.CatalogItem, error)
	ConfigTemplate(ctx context.Context, kind model.Kind, name string) (ConfigSchema, error)
	// Refresh invalidates cached state for a subset: both empty clears
	// everything, kind alone clears that kind, kind+name one item.
	Refresh(ctx context.Context, kind model.Kind, name string) error
}

// Static serves a fixed item list. Used for kinds without an upstream
// index and as the test double.
type Static struct {
	items     []model.CatalogItem
	gpuModels []string
}

func NewStatic(items []model.CatalogItem, gpuModels []string) *Static {
	return &Static{items: items, gpuModels: gpuModels}
}

// LoadStatic reads a YAML file holding a list of catalog items.
func LoadStatic(path string, gpuModels []string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewInternalError("failed to read static catalog").WithError(err)
	}
	items := []model.CatalogItem{}
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, errors.NewInternalError("failed to parse static catalog").WithError(err)
	}
	return &Static{items: items, gpuModels: gpuModels}, nil
}

func (s *Static) List(_ context.Context, kind model.Kind) ([]string, error) {
	names := []string{}
	for _, item := range s.items {
		if item.Kind == kind {
			names = append(names, item.Name)
		}
	}
	return names, nil
}

func (s *Static) Detail(_ context.Context, kind model.Kind) ([]model.CatalogSummary, error) {
	summaries := []model.CatalogSummary{}
	for _, item := range s.items {
		if item.Kind == kind {
			summaries = append(summaries, item.Summarize())
		}
	}
	return summaries, nil
}

func (s *Static) Metadata(_ context.Context, kind model.Kind, name string) (*model.CatalogItem, error) {
	for i := range s.items {
		if s.items[i].Kind == kind && s.items[i].Name == name {
			item := s.items[i]
			return &item, nil
		}
	}
	return nil, errors.NewUnknownWorkload(string(kind), name)
}

func (s *Static) ConfigTemplate(ctx context.Context, kind model.Kind, name string) (ConfigSchema, error) {
	item, err := s.Metadata(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	return SchemaFor(*item, s.gpuModels), nil
}

func (s *Static) Refresh(context.Context, model.Kind, string) error {
	return nil
}
