// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// History reads the pre-computed daily summaries an external accounting
// process writes to disk, one JSON file per day.
type History struct {
	root string
}

func NewHistory(root string) *History {
	return &History{root: root}
}

func (h *History) enabled() bool {
	return h.root != ""
}

// load reads every daily file, oldest first. A single unreadable day is
// logged and skipped; a missing archive is an empty history, not an
// error.
func (h *History) load() ([]model.UsageDay, error) {
	if !h.enabled() {
		return []model.UsageDay{}, nil
	}
	entries, err := os.ReadDir(h.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.UsageDay{}, nil
		}
		return nil, errors.NewInternalError("accounting archive unreadable").
			WithError(pkgerrors.Wrap(err, "read accounting dir"))
	}

	names := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	days := []model.UsageDay{}
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(h.root, name))
		if err != nil {
			log.Warnf("accounting: skipping unreadable %s: %v", name, err)
			continue
		}
		rows := []model.UsageDay{}
		if err := json.Unmarshal(raw, &rows); err != nil {
			log.Warnf("accounting: skipping unparsable %s: %v", name, err)
			continue
		}
		days = append(days, rows...)
	}
	return days, nil
}

// PerUser returns the daily rows of one user, oldest first.
func (h *History) PerUser(user string) ([]model.UsageDay, error) {
	days, err := h.load()
	if err != nil {
		return nil, err
	}
	out := []model.UsageDay{}
	for _, day := range days {
		if day.Owner == user {
			out = append(out, day)
		}
	}
	return out, nil
}

// PerVO returns the daily aggregate rows of one VO, oldest first.
func (h *History) PerVO(vo string) ([]model.UsageDay, error) {
	days, err := h.load()
	if err != nil {
		return nil, err
	}
	out := []model.UsageDay{}
	for _, day := range days {
		if day.VO == vo && day.Owner == "" {
			out = append(out, day)
		}
	}
	return out, nil
}
