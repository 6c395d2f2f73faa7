// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deployment

import (
	"embed"
	"sync"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
	"github.com/AMD-AGI/primus-papi/pkg/template"
)

//go:embed templates/*.hcl
var templateFS embed.FS

// kindTemplateFiles binds each workload kind to its job template. Tools
// share the module shape; try-me carries its own stripped batch template.
var kindTemplateFiles = map[model.Kind]string{
	model.KindModule:         "templates/module.hcl",
	model.KindTool:           "templates/module.hcl",
	model.KindTryMe:          "templates/tryme.hcl",
	model.KindBatchInference: "templates/batch.hcl",
	model.KindSnapshot:       "templates/snapshot.hcl",
}

// kindPriority is the scheduler priority band per kind. Try-me sits below
// everything else so demos never displace real work.
var kindPriority = map[model.Kind]int{
	model.KindModule:         50,
	model.KindTool:           50,
	model.KindBatchInference: 40,
	model.KindSnapshot:       40,
	model.KindTryMe:          25,
}

var (
	templateMu    sync.Mutex
	templateCache = map[model.Kind]*template.Template{}
)

// TemplateFor parses (once) and returns the job template of a kind.
func TemplateFor(kind model.Kind) (*template.Template, error) {
	templateMu.Lock()
	defer templateMu.Unlock()
	if tpl, ok := templateCache[kind]; ok {
		return tpl, nil
	}
	file, ok := kindTemplateFiles[kind]
	if !ok {
		return nil, errors.NewBadRequestf("kind %q has no job template", kind)
	}
	raw, err := templateFS.ReadFile(file)
	if err != nil {
		return nil, errors.NewInternalError("job template missing from binary").WithError(err)
	}
	tpl, err := template.Parse(string(raw))
	if err != nil {
		return nil, err
	}
	templateCache[kind] = tpl
	return tpl, nil
}

// PriorityFor returns the kind's priority band.
func PriorityFor(kind model.Kind) int {
	if priority, ok := kindPriority[kind]; ok {
		return priority
	}
	return 50
}
