// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import "time"

// NodeState is the projection of a scheduler node's health.
type NodeState string

const (
	NodeReady      NodeState = "ready"
	NodeIneligible NodeState = "ineligible"
	NodeFailing    NodeState = "failing"
	// NodeRescheduling marks a node mid-drain or lost to a transient
	// network cut, so users can tell it apart from a true failure.
	NodeRescheduling NodeState = "rescheduling"
)

type GPUPool struct {
	Model string `json:"model"`
	Count int64  `json:"count"`
}

// NodeStats is one node's capacity and reservations at poll time.
type NodeStats struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	State        NodeState `json:"state"`
	PoolTags     []string  `json:"pool_tags,omitempty"`
	Namespace    string    `json:"namespace,omitempty"`
	CPUTotal     int64     `json:"cpu_total"`
	CPUUsed      int64     `json:"cpu_used"`
	MemoryTotalMB int64    `json:"memory_total_mb"`
	MemoryUsedMB int64     `json:"memory_used_mb"`
	DiskTotalMB  int64     `json:"disk_total_mb"`
	DiskUsedMB   int64     `json:"disk_used_mb"`
	GPUs         []GPUPool `json:"gpus,omitempty"`
	GPUsUsed     int64     `json:"gpus_used"`
}

// VOStats aggregates capacity and usage for one VO's namespace.
type VOStats struct {
	VO           string `json:"vo"`
	CPUTotal     int64  `json:"cpu_total"`
	CPUUsed      int64  `json:"cpu_used"`
	MemoryTotalMB int64 `json:"memory_total_mb"`
	MemoryUsedMB int64  `json:"memory_used_mb"`
	DiskTotalMB  int64  `json:"disk_total_mb"`
	DiskUsedMB   int64  `json:"disk_used_mb"`
	GPUTotal     int64  `json:"gpu_total"`
	GPUUsed      int64  `json:"gpu_used"`
	NodeCount    int64  `json:"node_count"`
}

// ClusterSnapshot is the immutable result of one poll; the aggregator swaps
// the latest one atomically.
type ClusterSnapshot struct {
	PolledAt        time.Time          `json:"polled_at"`
	Nodes           []NodeStats        `json:"nodes"`
	PerVO           map[string]VOStats `json:"per_vo"`
	IneligibleNodes int64              `json:"ineligible_nodes"`
	FailingNodes    int64              `json:"failing_nodes"`
	// Reallocations counts allocation restarts observed across the
	// polling window, keyed by allocation ID.
	Reallocations map[string]int64 `json:"reallocations,omitempty"`
}

// UsageDay is one pre-computed daily summary row from the accounting
// archive on disk.
type UsageDay struct {
	Date        string  `json:"date"`
	Owner       string  `json:"owner,omitempty"`
	VO          string  `json:"vo,omitempty"`
	CPUHours    float64 `json:"cpu_hours"`
	GPUHours    float64 `json:"gpu_hours"`
	MemoryGBHours float64 `json:"memory_gb_hours"`
	DeploymentCount int64 `json:"deployment_count"`
}
