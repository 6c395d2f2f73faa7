// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/AMD-AGI/primus-papi/pkg/clients/sourcehost"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

const (
	indexFile    = "MODULES.yml"
	metadataFile = "metadata.yml"

	// metadataFetchParallelism bounds concurrent upstream fetches when a
	// detail view hydrates a whole kind.
	metadataFetchParallelism = 8
)

// GitSource resolves catalog items from upstream git-hosted indexes. One
// bad item never sinks the index: validation failures are logged, counted
// and dropped.
type GitSource struct {
	source    *sourcehost.Client
	repos     map[model.Kind]config.CatalogRepo
	allowlist *ImageAllowlist
	gpuModels []string

	mu      sync.Mutex
	dropped map[string]string // "kind/name" -> reason, for operators
}

func NewGitSource(source *sourcehost.Client, repos map[string]config.CatalogRepo, allowlist *ImageAllowlist, gpuModels []string) *GitSource {
	kindRepos := make(map[model.Kind]config.CatalogRepo, len(repos))
	for kind, repo := range repos {
		kindRepos[model.Kind(kind)] = repo
	}
	return &GitSource{
		source:    source,
		repos:     kindRepos,
		allowlist: allowlist,
		gpuModels: gpuModels,
		dropped:   map[string]string{},
	}
}

// indexEntry is one module-list row: a name with its source repository.
type indexEntry struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
}

// metadataDoc is the upstream metadata document, latest schema version.
type metadataDoc struct {
	MetadataVersion string   `yaml:"metadata_version"`
	Title           string   `yaml:"title"`
	Summary         string   `yaml:"summary"`
	Description     string   `yaml:"description"`
	Keywords        []string `yaml:"keywords"`
	License         string   `yaml:"license"`
	Links           struct {
		DockerImage string `yaml:"docker_image"`
		SourceCode  string `yaml:"source_code"`
	} `yaml:"links"`
	DockerTags []string `yaml:"docker_tags"`
	Resources  struct {
		CPU      int64 `yaml:"cpu"`
		GPU      int64 `yaml:"gpu"`
		MemoryMB int64 `yaml:"memory_MB"`
		DiskMB   int64 `yaml:"disk_MB"`
	} `yaml:"resources"`
}

func (s *GitSource) index(ctx context.Context, kind model.Kind) ([]indexEntry, error) {
	repo, ok := s.repos[kind]
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("no catalog configured for kind %q", kind))
	}
	raw, err := s.source.RawFile(ctx, repo.URL, repo.Branch, indexFile)
	if err != nil {
		return nil, err
	}
	return parseModuleList(raw)
}

// parseModuleList accepts the two index forms in the wild: a YAML/JSON
// list of {name, url, branch} rows, or plain "name url" lines.
func parseModuleList(raw []byte) ([]indexEntry, error) {
	entries := []indexEntry{}
	if err := yaml.Unmarshal(raw, &entries); err == nil && len(entries) > 0 && entries[0].Name != "" {
		return entries, nil
	}

	entries = entries[:0]
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		entry := indexEntry{Name: fields[0]}
		if len(fields) > 1 {
			entry.URL = fields[1]
		}
		if len(fields) > 2 {
			entry.Branch = fields[2]
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, errors.NewBackendError("catalog index is empty or unparsable")
	}
	return entries, nil
}

func (s *GitSource) drop(kind model.Kind, name, reason string) {
	s.mu.Lock()
	s.dropped[string(kind)+"/"+name] = reason
	s.mu.Unlock()
	log.Warnf("catalog: dropping %s %q: %s", kind, name, reason)
}

// Metadata fetches and validates one item's metadata document, then
// overwrites license and last-commit with live source-host values when the
// host answers.
func (s *GitSource) Metadata(ctx context.Context, kind model.Kind, name string) (*model.CatalogItem, error) {
	entries, err := s.index(ctx, kind)
	if err != nil {
		return nil, err
	}
	var entry *indexEntry
	for i := range entries {
		if entries[i].Name == name {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		return nil, errors.NewUnknownWorkload(string(kind), name)
	}
	return s.fetchItem(ctx, kind, *entry)
}

func (s *GitSource) fetchItem(ctx context.Context, kind model.Kind, entry indexEntry) (*model.CatalogItem, error) {
	raw, err := s.source.RawFile(ctx, entry.URL, entry.Branch, metadataFile)
	if err != nil {
		s.drop(kind, entry.Name, fmt.Sprintf("metadata fetch failed: %v", err))
		return nil, errors.NewUnknownWorkload(string(kind), entry.Name)
	}

	doc := &metadataDoc{}
	if err := yaml.Unmarshal(raw, doc); err != nil {
		s.drop(kind, entry.Name, fmt.Sprintf("metadata unparsable: %v", err))
		return nil, errors.NewUnknownWorkload(string(kind), entry.Name)
	}
	if reason := validateDoc(doc); reason != "" {
		s.drop(kind, entry.Name, reason)
		return nil, errors.NewUnknownWorkload(string(kind), entry.Name)
	}
	if !s.allowlist.Allowed(doc.Links.DockerImage) {
		s.drop(kind, entry.Name, fmt.Sprintf("docker image %q outside the registry allow-list", doc.Links.DockerImage))
		return nil, errors.NewUnknownWorkload(string(kind), entry.Name)
	}

	item := &model.CatalogItem{
		Kind:        kind,
		Name:        entry.Name,
		Title:       doc.Title,
		Summary:     doc.Summary,
		Description: doc.Description,
		Keywords:    doc.Keywords,
		License:     doc.License,
		DockerImage: doc.Links.DockerImage,
		DockerTags:  doc.DockerTags,
		GitURL:      entry.URL,
		GitBranch:   entry.Branch,
		Resources: model.Resources{
			CPUs:     doc.Resources.CPU,
			GPUs:     doc.Resources.GPU,
			MemoryMB: doc.Resources.MemoryMB,
			DiskMB:   doc.Resources.DiskMB,
		},
		RefreshedAt: time.Now().UTC(),
	}
	if len(item.DockerTags) == 0 {
		item.DockerTags = []string{"latest"}
	}

	// Live overrides are best-effort: the host being down keeps the
	// document's own values.
	if info, err := s.source.RepoInfo(ctx, entry.URL, entry.Branch); err == nil && info != nil {
		if info.License != "" {
			item.License = info.License
		}
		if !info.LastCommit.IsZero() {
			item.LastCommit = info.LastCommit
		}
	} else if err != nil {
		log.Debugf("catalog: live override for %s/%s skipped: %v", kind, entry.Name, err)
	}
	return item, nil
}

// validateDoc checks the latest metadata schema version. An empty string
// means valid.
func validateDoc(doc *metadataDoc) string {
	if doc.MetadataVersion != "" && !strings.HasPrefix(doc.MetadataVersion, "2.") {
		return fmt.Sprintf("unsupported metadata version %q", doc.MetadataVersion)
	}
	if doc.Title == "" {
		return "metadata lacks a title"
	}
	if doc.Links.DockerImage == "" {
		return "metadata lacks a docker image"
	}
	return ""
}

// Detail hydrates a whole kind, fetching metadata in parallel and
// silently skipping items that fail validation or the allow-list.
func (s *GitSource) Detail(ctx context.Context, kind model.Kind) ([]model.CatalogSummary, error) {
	entries, err := s.index(ctx, kind)
	if err != nil {
		return nil, err
	}

	results := make([]*model.CatalogItem, len(entries))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(metadataFetchParallelism)
	for i := range entries {
		i := i
		group.Go(func() error {
			item, err := s.fetchItem(groupCtx, kind, entries[i])
			if err != nil {
				return nil // dropped and logged, never fails the index
			}
			results[i] = item
			return nil
		})
	}
	_ = group.Wait()

	summaries := make([]model.CatalogSummary, 0, len(entries))
	for _, item := range results {
		if item != nil {
			summaries = append(summaries, item.Summarize())
		}
	}
	return summaries, nil
}

func (s *GitSource) List(ctx context.Context, kind model.Kind) ([]string, error) {
	summaries, err := s.Detail(ctx, kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		names = append(names, summary.Name)
	}
	return names, nil
}

func (s *GitSource) ConfigTemplate(ctx context.Context, kind model.Kind, name string) (ConfigSchema, error) {
	item, err := s.Metadata(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	return SchemaFor(*item, s.gpuModels), nil
}

// Refresh is a no-op at the source: the source holds no state. The cached
// wrapper intercepts it.
func (s *GitSource) Refresh(context.Context, model.Kind, string) error {
	return nil
}

// Dropped reports the items rejected since startup and why.
func (s *GitSource) Dropped() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.dropped))
	for k, v := range s.dropped {
		out[k] = v
	}
	return out
}
