// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package nomad

import (
	"context"
	"fmt"
)

// ListJobs returns the job stubs of one namespace, metadata included so
// callers can filter on ownership without fetching each job.
func (c *Client) ListJobs(ctx context.Context, namespace string) ([]JobListStub, error) {
	jobs := []JobListStub{}
	resp, err := c.bulk.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"namespace": namespace,
			"meta":      "true",
		}).
		SetResult(&jobs).
		Get("/v1/jobs")
	if tErr := translate(resp, err, "job list"); tErr != nil {
		return nil, tErr
	}
	return jobs, nil
}

// ListJobsByOwner filters the namespace's jobs on the owner metadata field.
func (c *Client) ListJobsByOwner(ctx context.Context, namespace, owner string) ([]JobListStub, error) {
	jobs, err := c.ListJobs(ctx, namespace)
	if err != nil {
		return nil, err
	}
	owned := make([]JobListStub, 0, len(jobs))
	for _, job := range jobs {
		if job.Meta["owner"] == owner {
			owned = append(owned, job)
		}
	}
	return owned, nil
}

func (c *Client) GetJob(ctx context.Context, namespace, jobID string) (*Job, error) {
	job := &Job{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("namespace", namespace).
		SetResult(job).
		Get(fmt.Sprintf("/v1/job/%s", jobID))
	if tErr := translate(resp, err, "job read"); tErr != nil {
		return nil, tErr
	}
	return job, nil
}

// ParseJob sends a rendered HCL job specification through the scheduler's
// parser and returns the canonical job structure.
func (c *Client) ParseJob(ctx context.Context, hcl string) (*Job, error) {
	job := &Job{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"JobHCL":       hcl,
			"Canonicalize": true,
		}).
		SetResult(job).
		Post("/v1/jobs/parse")
	if tErr := translate(resp, err, "job parse"); tErr != nil {
		return nil, tErr
	}
	return job, nil
}

// RegisterJob submits a parsed job. Not retried: the caller re-submits.
func (c *Client) RegisterJob(ctx context.Context, namespace string, job *Job) (*JobRegisterResponse, error) {
	result := &JobRegisterResponse{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("namespace", namespace).
		SetBody(map[string]interface{}{"Job": job}).
		SetResult(result).
		Post("/v1/jobs")
	if tErr := translate(resp, err, "job submit"); tErr != nil {
		return nil, tErr
	}
	return result, nil
}

// PurgeJob stops and purges a job in any state, including dead.
func (c *Client) PurgeJob(ctx context.Context, namespace, jobID string) error {
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"namespace": namespace,
			"purge":     "true",
		}).
		Delete(fmt.Sprintf("/v1/job/%s", jobID))
	return translate(resp, err, "job purge")
}

// JobAllocations lists a job's allocations in the order the scheduler
// returns them; no sorting is applied here.
func (c *Client) JobAllocations(ctx context.Context, namespace, jobID string) ([]AllocationListStub, error) {
	allocs := []AllocationListStub{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("namespace", namespace).
		SetResult(&allocs).
		Get(fmt.Sprintf("/v1/job/%s/allocations", jobID))
	if tErr := translate(resp, err, "allocation list"); tErr != nil {
		return nil, tErr
	}
	return allocs, nil
}

// ListAllocations returns every allocation of a namespace; the stats
// poller reads restart counts from it.
func (c *Client) ListAllocations(ctx context.Context, namespace string) ([]AllocationListStub, error) {
	allocs := []AllocationListStub{}
	resp, err := c.bulk.R().
		SetContext(ctx).
		SetQueryParam("namespace", namespace).
		SetResult(&allocs).
		Get("/v1/allocations")
	if tErr := translate(resp, err, "allocation list"); tErr != nil {
		return nil, tErr
	}
	return allocs, nil
}

// JobEvaluations exposes placement failures for the queued/error split.
func (c *Client) JobEvaluations(ctx context.Context, namespace, jobID string) ([]Evaluation, error) {
	evals := []Evaluation{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("namespace", namespace).
		SetResult(&evals).
		Get(fmt.Sprintf("/v1/job/%s/evaluations", jobID))
	if tErr := translate(resp, err, "evaluation list"); tErr != nil {
		return nil, tErr
	}
	return evals, nil
}

// ServiceRegistrations resolves a service name through the scheduler's
// service discovery. Used only to confirm liveness of predicted endpoints.
func (c *Client) ServiceRegistrations(ctx context.Context, namespace, service string) ([]ServiceRegistration, error) {
	regs := []ServiceRegistration{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("namespace", namespace).
		SetResult(&regs).
		Get(fmt.Sprintf("/v1/service/%s", service))
	if tErr := translate(resp, err, "service lookup"); tErr != nil {
		return nil, tErr
	}
	return regs, nil
}
