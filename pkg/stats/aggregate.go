// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package stats aggregates cluster capacity and usage. A background
// poller keeps the latest snapshot in memory; history is read from the
// accounting archive an external process writes.
package stats

import (
	"strconv"

	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// nodeVOTag is the node metadata key binding a node to one VO's pool.
// Untagged nodes belong to the shared pool every VO draws from.
const nodeVOTag = "vo"

// projectNode maps a scheduler node to its stats view.
func projectNode(node nomad.NodeListStub) model.NodeStats {
	stats := model.NodeStats{
		ID:    node.ID,
		Name:  node.Name,
		State: deriveNodeState(node),
	}
	if node.NodeClass != "" {
		stats.PoolTags = append(stats.PoolTags, node.NodeClass)
	}
	if vo := node.Meta[nodeVOTag]; vo != "" {
		stats.PoolTags = append(stats.PoolTags, vo)
	}
	if node.NodeResources != nil {
		stats.CPUTotal = node.NodeResources.Cpu.CpuShares / 1000
		stats.MemoryTotalMB = node.NodeResources.Memory.MemoryMB
		stats.DiskTotalMB = node.NodeResources.Disk.DiskMB
		for _, device := range node.NodeResources.Devices {
			if device.Type != "gpu" {
				continue
			}
			healthy := int64(0)
			for _, instance := range device.Instances {
				if instance.Healthy {
					healthy++
				}
			}
			stats.GPUs = append(stats.GPUs, model.GPUPool{Model: device.Name, Count: healthy})
		}
	}
	if node.ReservedResources != nil {
		stats.CPUUsed = node.ReservedResources.Cpu.CpuShares / 1000
		stats.MemoryUsedMB = node.ReservedResources.Memory.MemoryMB
	}
	return stats
}

// deriveNodeState splits the scheduler's node status so users can tell a
// true failure from a transient cut or a drain in progress.
func deriveNodeState(node nomad.NodeListStub) model.NodeState {
	switch node.Status {
	case nomad.NodeStatusDown:
		return model.NodeFailing
	case nomad.NodeStatusInit:
		return model.NodeRescheduling
	}
	if node.Drain {
		return model.NodeRescheduling
	}
	if node.SchedulingEligibility == nomad.NodeIneligible {
		return model.NodeIneligible
	}
	return model.NodeReady
}

// nodeServesVO reports whether a node's capacity counts toward a VO:
// either tagged for it, or untagged and therefore shared.
func nodeServesVO(node nomad.NodeListStub, vo string) bool {
	tag := node.Meta[nodeVOTag]
	return tag == "" || tag == vo
}

// BuildSnapshot folds one poll's raw reads into the immutable snapshot.
// Capacity counts ready-eligible nodes only; everything else lands in the
// ineligible/failing tallies. Usage comes from the job metadata stamps,
// reallocation counts from the allocations' restart totals.
func BuildSnapshot(
	nodes []nomad.NodeListStub,
	jobsByVO map[string][]nomad.JobListStub,
	allocsByVO map[string][]nomad.AllocationListStub,
	profiles map[string]config.VOProfile,
) *model.ClusterSnapshot {
	snapshot := &model.ClusterSnapshot{
		PerVO:         map[string]model.VOStats{},
		Reallocations: map[string]int64{},
	}

	projected := make([]model.NodeStats, 0, len(nodes))
	for _, node := range nodes {
		stats := projectNode(node)
		projected = append(projected, stats)
		switch stats.State {
		case model.NodeIneligible, model.NodeRescheduling:
			snapshot.IneligibleNodes++
		case model.NodeFailing:
			snapshot.FailingNodes++
		}
	}
	snapshot.Nodes = projected

	for vo := range profiles {
		voStats := model.VOStats{VO: vo}
		for i, node := range nodes {
			stats := projected[i]
			if stats.State != model.NodeReady || !nodeServesVO(node, vo) {
				continue
			}
			voStats.NodeCount++
			voStats.CPUTotal += stats.CPUTotal
			voStats.MemoryTotalMB += stats.MemoryTotalMB
			voStats.DiskTotalMB += stats.DiskTotalMB
			for _, pool := range stats.GPUs {
				voStats.GPUTotal += pool.Count
			}
		}
		for _, job := range jobsByVO[vo] {
			if job.Status == nomad.JobStatusDead || job.Meta["owner"] == "" {
				continue
			}
			voStats.CPUUsed += metaInt(job.Meta, "cpu_num")
			voStats.GPUUsed += metaInt(job.Meta, "gpu_num")
			voStats.MemoryUsedMB += metaInt(job.Meta, "ram")
			voStats.DiskUsedMB += metaInt(job.Meta, "disk")
		}
		snapshot.PerVO[vo] = voStats
	}

	for _, allocs := range allocsByVO {
		for _, alloc := range allocs {
			var restarts int64
			for _, state := range alloc.TaskStates {
				restarts += state.Restarts
			}
			if restarts > 0 {
				snapshot.Reallocations[alloc.ID] = restarts
			}
		}
	}
	return snapshot
}

func metaInt(meta map[string]string, key string) int64 {
	value, err := strconv.ParseInt(meta[key], 10, 64)
	if err != nil {
		return 0
	}
	return value
}
