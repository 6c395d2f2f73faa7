// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deployment

import (
	"sort"

	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

const mainTaskName = "main"

// DeriveStatus translates scheduler job state plus the newest allocation
// into the user-facing status. The error message, when there is one, is
// the last failure event of the main task in that allocation.
func DeriveStatus(jobStatus, jobType string, allocs []nomad.AllocationListStub) (model.Status, string) {
	latest := latestAllocation(allocs)

	switch jobStatus {
	case nomad.JobStatusPending:
		if latest == nil {
			return model.StatusQueued, ""
		}
		if latest.ClientStatus == nomad.AllocClientStatusPending {
			return model.StatusStarting, ""
		}
		return model.StatusQueued, ""

	case nomad.JobStatusRunning:
		if latest == nil {
			return model.StatusQueued, ""
		}
		switch latest.ClientStatus {
		case nomad.AllocClientStatusLost:
			// node disconnected: transient, not a failure
			return model.StatusDown, ""
		case nomad.AllocClientStatusPending:
			return model.StatusStarting, ""
		}
		if failed, message := deadTask(latest); failed {
			return model.StatusError, message
		}
		if main, ok := latest.TaskStates[mainTaskName]; ok &&
			main.State == nomad.TaskStateDead && !main.Failed && jobType == "batch" {
			return model.StatusComplete, ""
		}
		return model.StatusRunning, ""

	case nomad.JobStatusDead:
		if latest == nil {
			// never placed: the scheduler gave up
			return model.StatusError, "no allocation could be placed"
		}
		if latest.DesiredStatus == nomad.DesiredStatusStop || latest.DesiredStatus == nomad.DesiredStatusEvict {
			return model.StatusDeleted, ""
		}
		if failed, message := deadTask(latest); failed {
			return model.StatusError, message
		}
		if jobType == "batch" && latest.ClientStatus == nomad.AllocClientStatusComplete {
			return model.StatusComplete, ""
		}
		return model.StatusDeleted, ""
	}
	return model.StatusQueued, ""
}

// latestAllocation picks the most recent allocation by create time.
func latestAllocation(allocs []nomad.AllocationListStub) *nomad.AllocationListStub {
	if len(allocs) == 0 {
		return nil
	}
	sorted := make([]nomad.AllocationListStub, len(allocs))
	copy(sorted, allocs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreateTime > sorted[j].CreateTime
	})
	return &sorted[0]
}

// deadTask reports whether any task of the allocation died with a failure,
// and the last failure message of the main task (or the failed task when
// main is fine).
func deadTask(alloc *nomad.AllocationListStub) (bool, string) {
	var failedTask string
	for name, state := range alloc.TaskStates {
		if state.State == nomad.TaskStateDead && state.Failed {
			if name == mainTaskName {
				return true, lastFailureMessage(state)
			}
			failedTask = name
		}
	}
	if failedTask != "" {
		return true, lastFailureMessage(alloc.TaskStates[failedTask])
	}
	return false, ""
}

func lastFailureMessage(state nomad.TaskState) string {
	for i := len(state.Events) - 1; i >= 0; i-- {
		if message := state.Events[i].DisplayMessage; message != "" {
			return message
		}
	}
	return "task failed"
}
