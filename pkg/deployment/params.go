// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deployment

import (
	"context"
	"strconv"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// submission bundles everything one render needs.
type submission struct {
	user    *auth.UserInfo
	profile config.VOProfile
	item    *model.CatalogItem
	kind    model.Kind
	params  catalog.Params
	uuid    string
}

// requestedResources projects the validated parameter map into a resource
// request for quota and for the job meta stamp.
func requestedResources(params catalog.Params) model.Resources {
	res := model.Resources{}
	if v, ok := params.Number("hardware", "cpu_num"); ok {
		res.CPUs = int64(v)
	}
	if v, ok := params.Number("hardware", "gpu_num"); ok {
		res.GPUs = int64(v)
	}
	if v, ok := params.Number("hardware", "ram"); ok {
		res.MemoryMB = int64(v)
	}
	if v, ok := params.Number("hardware", "disk"); ok {
		res.DiskMB = int64(v)
	}
	if gpuModel := params.String("hardware", "gpu_type"); gpuModel != "" && gpuModel != catalog.GPUModelAny {
		res.GPUModel = gpuModel
	}
	return res
}

// buildSubstitutions assembles the full user-placeholder map: computed
// fields, user parameters and brokered secrets. Passwords headed for the
// storage client are obscured the way its containers expect.
func (c *Controller) buildSubstitutions(ctx context.Context, sub submission) (map[string]string, error) {
	params := sub.params
	res := requestedResources(params)

	hostname := params.String("general", "hostname")
	if hostname == "" {
		hostname = sub.uuid
	}

	values := map[string]string{
		"JOB_UUID":      sub.uuid,
		"NAMESPACE":     sub.profile.Namespace,
		"BASE_DOMAIN":   sub.profile.Domain,
		"VO":            sub.profile.Name,
		"KIND":          string(sub.kind),
		"WORKLOAD_NAME": sub.item.Name,
		"OWNER":         sub.user.Subject,
		"OWNER_NAME":    sub.user.Name,
		"OWNER_EMAIL":   sub.user.Email,
		"PRIORITY":      strconv.Itoa(PriorityFor(sub.kind)),
		"TITLE":         params.String("general", "title"),
		"DESCRIPTION":   params.String("general", "desc"),
		"HOSTNAME":      hostname,
		"DOCKER_IMAGE":  params.String("general", "docker_image"),
		"DOCKER_TAG":    params.String("general", "docker_tag"),
		"SERVICE":       params.String("general", "service"),
		"JUPYTER_PASSWORD": params.String("general", "jupyter_password"),
		"CPU_NUM":       strconv.FormatInt(res.CPUs, 10),
		"GPU_NUM":       strconv.FormatInt(res.GPUs, 10),
		"GPU_MODELNAME": params.String("hardware", "gpu_type"),
		"RAM":           strconv.FormatInt(res.MemoryMB, 10),
		"DISK":          strconv.FormatInt(res.DiskMB, 10),
		// half the RAM, in bytes, for the container's shared memory
		"SHARED_MEMORY": strconv.FormatInt(res.MemoryMB*1024*1024/2, 10),
		"RCLONE_URL":    params.String("storage", "rclone_url"),
		"RCLONE_VENDOR": params.String("storage", "rclone_vendor"),
		"RCLONE_USER":   params.String("storage", "rclone_user"),
		"DATASETS":      params.String("storage", "datasets"),
		"MLFLOW_URI":    sub.profile.MLflowURI,
		"ZENODO_TOKEN":  c.env.ZenodoToken,
		"INPUT_PATH":    params.String("batch", "input_path"),
		"OUTPUT_PATH":   params.String("batch", "output_path"),
		"WALL_SECONDS":  strconv.Itoa(int(c.tryMe.WallClock().Seconds())),
	}

	// storage password: user-supplied wins, the brokered secret is the
	// fallback; the container wants the obscured form either way
	rclonePassword := params.String("storage", "rclone_password")
	if rclonePassword == "" {
		rclonePassword = c.secretValue(ctx, sub, "rclone", "password")
	}
	obscured, err := Obscure(rclonePassword)
	if err != nil {
		return nil, err
	}
	values["RCLONE_PASSWORD"] = obscured

	values["MLFLOW_USERNAME"] = c.secretValue(ctx, sub, "mlflow", "username")
	values["MLFLOW_PASSWORD"] = c.secretValue(ctx, sub, "mlflow", "password")
	values["HF_TOKEN"] = c.secretValue(ctx, sub, "hf", "token")

	return values, nil
}

// secretValue fetches one brokered secret key, treating absence as empty.
// Only transport failures surface in logs; a user simply not having the
// secret is normal.
func (c *Controller) secretValue(ctx context.Context, sub submission, subpath, key string) string {
	value, err := c.secrets.GetValue(ctx, sub.user.Subject, sub.profile.Name, subpath, key)
	if err != nil {
		if !errors.IsNotFound(err) {
			log.Warnf("secret %s/%s for %s unavailable: %v", subpath, key, sub.user.Subject, err)
		}
		return ""
	}
	return value
}

// validateImageOverride enforces the docker-image allow-list on the value
// the user may have overridden.
func validateImageOverride(allowlist *catalog.ImageAllowlist, params catalog.Params) error {
	image := params.String("general", "docker_image")
	if image == "" {
		return errors.NewBadRequest("general.docker_image is required")
	}
	if !allowlist.Allowed(image) {
		return errors.NewBadRequestf("docker image %q is not in the allowed registries", image).
			WithDetail("field", "general.docker_image")
	}
	return nil
}

// metaStamp is the projection written into job metadata for the quota
// ledger and the list views.
func metaStamp(values map[string]string) map[string]string {
	return map[string]string{
		"owner":       values["OWNER"],
		"owner_name":  values["OWNER_NAME"],
		"owner_email": values["OWNER_EMAIL"],
		"vo":          values["VO"],
		"kind":        values["KIND"],
		"workload":    values["WORKLOAD_NAME"],
		"title":       values["TITLE"],
		"hostname":    values["HOSTNAME"],
		"cpu_num":     values["CPU_NUM"],
		"gpu_num":     values["GPU_NUM"],
		"ram":         values["RAM"],
		"disk":        values["DISK"],
	}
}
