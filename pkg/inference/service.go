// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package inference wraps the external function platform. The controller
// translates the declarative service spec into the platform's native
// request, stamps provenance, and routes to the VO's cluster.
package inference

import (
	"fmt"
	"context"
	"strconv"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/clients/oscar"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

const (
	labelOwner = "papi.owner"
	labelVO    = "papi.vo"
)

type Controller struct {
	clusters  map[string]*oscar.Client
	allowlist *catalog.ImageAllowlist
}

// NewController takes the platform clients already built, one per VO,
// keyed by VO name.
func NewController(clusters map[string]*oscar.Client, allowlist *catalog.ImageAllowlist) *Controller {
	return &Controller{clusters: clusters, allowlist: allowlist}
}

func (c *Controller) clusterFor(user *auth.UserInfo, vo string) (*oscar.Client, error) {
	if !user.MemberOf(vo) {
		return nil, errors.NewForbidden("no membership in " + vo)
	}
	client, ok := c.clusters[vo]
	if !ok {
		return nil, errors.NewBadRequestf("virtual organization %q has no inference cluster", vo)
	}
	return client, nil
}

// translate maps the declarative spec into the platform's native service.
func translate(user *auth.UserInfo, clusterID string, spec model.ServiceSpec) *oscar.Service {
	service := &oscar.Service{
		Name:         spec.Name,
		ClusterID:    clusterID,
		Image:        spec.Image,
		CPU:          strconv.FormatFloat(spec.CPUs, 'f', -1, 64),
		Memory:       fmt.Sprintf("%dMi", spec.MemoryMB),
		Script:       spec.Script,
		AllowedUsers: spec.AllowedUsers,
		Labels: map[string]string{
			labelOwner: user.Subject,
			labelVO:    spec.VO,
		},
		Environment: oscar.Environment{Variables: spec.Environment},
	}
	if service.Environment.Variables == nil {
		service.Environment.Variables = map[string]string{}
	}
	if spec.InputPath != "" {
		service.Input = []oscar.StorageBinding{{Provider: "minio.default", Path: spec.InputPath}}
	}
	if spec.OutputPath != "" {
		service.Output = []oscar.StorageBinding{{Provider: "minio.default", Path: spec.OutputPath}}
	}
	return service
}

func (c *Controller) validate(spec model.ServiceSpec) error {
	if spec.Name == "" {
		return errors.NewBadRequest("service name is required").WithDetail("field", "name")
	}
	if spec.Image == "" {
		return errors.NewBadRequest("service image is required").WithDetail("field", "image")
	}
	if !c.allowlist.Allowed(spec.Image) {
		return errors.NewBadRequestf("docker image %q is not in the allowed registries", spec.Image).
			WithDetail("field", "image")
	}
	if spec.CPUs <= 0 || spec.MemoryMB <= 0 {
		return errors.NewBadRequest("cpu and memory must be positive").WithDetail("field", "cpu")
	}
	return nil
}

func (c *Controller) List(ctx context.Context, user *auth.UserInfo, vo string) ([]model.ServiceInfo, error) {
	client, err := c.clusterFor(user, vo)
	if err != nil {
		return nil, err
	}
	services, err := client.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	infos := []model.ServiceInfo{}
	for _, service := range services {
		// other users' services stay invisible unless shared
		if owner := service.Labels[labelOwner]; owner != "" && owner != user.Subject && !contains(service.AllowedUsers, user.Subject) {
			continue
		}
		infos = append(infos, model.ServiceInfo{
			Name:   service.Name,
			VO:     service.Labels[labelVO],
			Image:  service.Image,
			Owner:  service.Labels[labelOwner],
			Labels: service.Labels,
		})
	}
	return infos, nil
}

func (c *Controller) Create(ctx context.Context, user *auth.UserInfo, spec model.ServiceSpec) error {
	client, err := c.clusterFor(user, spec.VO)
	if err != nil {
		return err
	}
	if err := c.validate(spec); err != nil {
		return err
	}
	return client.CreateService(ctx, translate(user, client.ClusterID(), spec))
}

func (c *Controller) Update(ctx context.Context, user *auth.UserInfo, spec model.ServiceSpec) error {
	client, err := c.clusterFor(user, spec.VO)
	if err != nil {
		return err
	}
	if err := c.validate(spec); err != nil {
		return err
	}
	if err := c.assertOwner(ctx, user, client, spec.Name); err != nil {
		return err
	}
	return client.UpdateService(ctx, translate(user, client.ClusterID(), spec))
}

func (c *Controller) Delete(ctx context.Context, user *auth.UserInfo, vo, name string) error {
	client, err := c.clusterFor(user, vo)
	if err != nil {
		return err
	}
	if err := c.assertOwner(ctx, user, client, name); err != nil {
		return err
	}
	return client.DeleteService(ctx, name)
}

func (c *Controller) Logs(ctx context.Context, user *auth.UserInfo, vo, name string) (string, error) {
	client, err := c.clusterFor(user, vo)
	if err != nil {
		return "", err
	}
	if err := c.assertOwner(ctx, user, client, name); err != nil {
		return "", err
	}
	return client.ServiceLogs(ctx, name)
}

func (c *Controller) assertOwner(ctx context.Context, user *auth.UserInfo, client *oscar.Client, name string) error {
	service, err := client.GetService(ctx, name)
	if err != nil {
		return err
	}
	if owner := service.Labels[labelOwner]; owner != "" && owner != user.Subject {
		return errors.NewForbidden("service belongs to another user")
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
