// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package catalog

import (
	"fmt"
	"strings"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// Field is one user-facing parameter: a label, a default, and optionally a
// closed option set or a numeric range.
type Field struct {
	Name        string        `json:"name"`
	Value       interface{}   `json:"value"`
	Options     []interface{} `json:"options,omitempty"`
	Range       []float64     `json:"range,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Section groups fields under a top-level key (general, hardware, storage,
// workload-specific extras).
type Section map[string]Field

// ConfigSchema is the whole parameter schema of one workload.
type ConfigSchema map[string]Section

const (
	maxTitleLength    = 45
	minPasswordLength = 9
)

// Params is a user-submitted parameter map, section -> field -> value.
type Params map[string]map[string]interface{}

func (p Params) String(section, field string) string {
	if sec, ok := p[section]; ok {
		if value, ok := sec[field]; ok {
			return fmt.Sprintf("%v", value)
		}
	}
	return ""
}

func (p Params) Number(section, field string) (float64, bool) {
	sec, ok := p[section]
	if !ok {
		return 0, false
	}
	value, ok := sec[field]
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Validate checks a parameter map against the schema: every submitted
// field must exist, sit inside its range or option set, and satisfy the
// cross-cutting rules (title length, password length, hostname charset).
// The returned error names the offending field.
func (s ConfigSchema) Validate(params Params) error {
	for sectionID, fields := range params {
		schemaSection, ok := s[sectionID]
		if !ok {
			return errors.NewBadRequestf("unknown configuration section %q", sectionID)
		}
		for fieldID, value := range fields {
			field, ok := schemaSection[fieldID]
			if !ok {
				return errors.NewBadRequestf("unknown field %s.%s", sectionID, fieldID)
			}
			if err := field.check(sectionID+"."+fieldID, value); err != nil {
				return err
			}
		}
	}

	if title := params.String("general", "title"); len(title) > maxTitleLength {
		return errors.NewBadRequestf("general.title must be at most %d characters", maxTitleLength).
			WithDetail("field", "general.title")
	}
	if hostname := params.String("general", "hostname"); hostname != "" && !isAlphanumeric(hostname) {
		return errors.NewBadRequest("general.hostname must be alphanumeric").
			WithDetail("field", "general.hostname")
	}
	if service := params.String("general", "service"); service == "jupyter" || service == "vscode" {
		if password := params.String("general", "jupyter_password"); len(password) < minPasswordLength {
			return errors.NewBadRequestf("general.jupyter_password must be at least %d characters", minPasswordLength).
				WithDetail("field", "general.jupyter_password")
		}
	}
	return nil
}

func (f Field) check(path string, value interface{}) error {
	if len(f.Options) > 0 {
		matched := false
		for _, option := range f.Options {
			if fmt.Sprintf("%v", option) == fmt.Sprintf("%v", value) {
				matched = true
				break
			}
		}
		if !matched {
			return errors.NewBadRequestf("%s: %v is not one of the allowed values", path, value).
				WithDetail("field", path)
		}
	}
	if len(f.Range) == 2 {
		number, ok := toNumber(value)
		if !ok {
			return errors.NewBadRequestf("%s: expected a number", path).WithDetail("field", path)
		}
		if number < f.Range[0] || number > f.Range[1] {
			return errors.NewBadRequestf("%s: %v is outside [%v, %v]", path, value, f.Range[0], f.Range[1]).
				WithDetail("field", path)
		}
	}
	return nil
}

func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func isAlphanumeric(s string) bool {
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		default:
			return false
		}
	}
	return true
}

// WithDefaults merges schema defaults into a parameter map, so a sparse
// submission still renders a complete substitution set.
func (s ConfigSchema) WithDefaults(params Params) Params {
	merged := Params{}
	for sectionID, fields := range s {
		merged[sectionID] = map[string]interface{}{}
		for fieldID, field := range fields {
			merged[sectionID][fieldID] = field.Value
		}
	}
	for sectionID, fields := range params {
		if _, ok := merged[sectionID]; !ok {
			merged[sectionID] = map[string]interface{}{}
		}
		for fieldID, value := range fields {
			merged[sectionID][fieldID] = value
		}
	}
	return merged
}

// BaseSchema builds the schema every interactive workload shares, bound to
// one catalog item's image and tags.
func BaseSchema(item model.CatalogItem, gpuModels []string) ConfigSchema {
	tags := make([]interface{}, 0, len(item.DockerTags))
	for _, tag := range item.DockerTags {
		tags = append(tags, tag)
	}
	defaultTag := "latest"
	if len(item.DockerTags) > 0 {
		defaultTag = item.DockerTags[0]
	}
	models := make([]interface{}, 0, len(gpuModels)+1)
	models = append(models, GPUModelAny)
	for _, m := range gpuModels {
		models = append(models, m)
	}

	schema := ConfigSchema{
		"general": Section{
			"title": Field{
				Name:        "Deployment title",
				Value:       "",
				Description: "Short description shown in the dashboard.",
			},
			"desc": Field{
				Name:  "Deployment description",
				Value: "",
			},
			"hostname": Field{
				Name:        "Hostname",
				Value:       "",
				Description: "Alphanumeric label for the deployment endpoints. Defaults to the job ID.",
			},
			"docker_image": Field{
				Name:  "Docker image",
				Value: item.DockerImage,
			},
			"docker_tag": Field{
				Name:    "Docker tag",
				Value:   defaultTag,
				Options: tags,
			},
			"service": Field{
				Name:    "Service to run",
				Value:   "jupyter",
				Options: []interface{}{"jupyter", "vscode", "deepaas"},
			},
			"jupyter_password": Field{
				Name:        "IDE password",
				Value:       "",
				Description: "Password for Jupyter or VS Code, at least 9 characters.",
			},
		},
		"hardware": Section{
			"cpu_num": Field{
				Name:  "Number of CPUs",
				Value: 4,
				Range: []float64{1, 32},
			},
			"gpu_num": Field{
				Name:  "Number of GPUs",
				Value: 0,
				Range: []float64{0, 8},
			},
			"gpu_type": Field{
				Name:    "GPU model",
				Value:   GPUModelAny,
				Options: models,
			},
			"ram": Field{
				Name:  "RAM memory (MB)",
				Value: 8000,
				Range: []float64{2000, 256000},
			},
			"disk": Field{
				Name:  "Disk memory (MB)",
				Value: 10000,
				Range: []float64{1000, 1000000},
			},
		},
		"storage": Section{
			"rclone_url": Field{
				Name:  "Storage URL",
				Value: "",
			},
			"rclone_vendor": Field{
				Name:    "Storage vendor",
				Value:   "nextcloud",
				Options: []interface{}{"nextcloud", "owncloud"},
			},
			"rclone_user": Field{
				Name:  "Storage user",
				Value: "",
			},
			"rclone_password": Field{
				Name:  "Storage password",
				Value: "",
			},
			"datasets": Field{
				Name:        "Datasets to download",
				Value:       "",
				Description: "Comma-separated DOIs pre-downloaded into the deployment.",
			},
		},
	}
	return schema
}

// GPUModelAny is the sentinel for "no GPU model preference".
const GPUModelAny = "any"

// FederatedSection is the extra section federated-learning servers carry.
func FederatedSection() Section {
	return Section{
		"rounds": Field{
			Name:  "Number of rounds",
			Value: 5,
			Range: []float64{1, 100},
		},
		"min_clients": Field{
			Name:  "Minimal number of clients",
			Value: 2,
			Range: []float64{1, 100},
		},
		"strategy": Field{
			Name:    "Aggregation strategy",
			Value:   "fedavg",
			Options: []interface{}{"fedavg", "fedprox", "fedadam"},
		},
	}
}

// BatchSection is the extra section batch-inference workloads carry.
func BatchSection() Section {
	return Section{
		"input_path": Field{
			Name:        "Input path",
			Value:       "",
			Description: "Storage path the batch run reads from.",
		},
		"output_path": Field{
			Name:        "Output path",
			Value:       "",
			Description: "Storage path results are written to.",
		},
	}
}

// CVATSection is the extra section annotation tools carry.
func CVATSection() Section {
	return Section{
		"cvat_username": Field{
			Name:  "CVAT admin user",
			Value: "",
		},
		"cvat_password": Field{
			Name:  "CVAT admin password",
			Value: "",
		},
	}
}

// SchemaFor returns the full schema of one catalog item, with the
// workload-specific extras its keywords declare.
func SchemaFor(item model.CatalogItem, gpuModels []string) ConfigSchema {
	schema := BaseSchema(item, gpuModels)
	if item.Kind == model.KindBatchInference {
		schema["batch"] = BatchSection()
	}
	for _, keyword := range item.Keywords {
		switch strings.ToLower(keyword) {
		case "federated-learning":
			schema["flower"] = FederatedSection()
		case "cvat", "annotation":
			schema["cvat"] = CVATSection()
		}
	}
	return schema
}
