// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package nomad

import (
	"context"
	"fmt"
)

// ListNodes returns every node with its resource inventory.
func (c *Client) ListNodes(ctx context.Context) ([]NodeListStub, error) {
	nodes := []NodeListStub{}
	resp, err := c.bulk.R().
		SetContext(ctx).
		SetQueryParam("resources", "true").
		SetResult(&nodes).
		Get("/v1/nodes")
	if tErr := translate(resp, err, "node list"); tErr != nil {
		return nil, tErr
	}
	return nodes, nil
}

// AllocDiskUsage reads the client-side disk statistics of one allocation.
// The snapshot admission check compares it against the container cap.
func (c *Client) AllocDiskUsage(ctx context.Context, allocID string) (int64, error) {
	stats := struct {
		DiskStats struct {
			Used int64 `json:"Used"`
		} `json:"DiskStats"`
	}{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(&stats).
		Get(fmt.Sprintf("/v1/client/allocation/%s/stats", allocID))
	if tErr := translate(resp, err, "allocation stats"); tErr != nil {
		return 0, tErr
	}
	return stats.DiskStats.Used, nil
}

// NodeAllocations lists the live allocations placed on one node.
func (c *Client) NodeAllocations(ctx context.Context, nodeID string) ([]AllocationListStub, error) {
	allocs := []AllocationListStub{}
	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(&allocs).
		Get(fmt.Sprintf("/v1/node/%s/allocations", nodeID))
	if tErr := translate(resp, err, "node allocations"); tErr != nil {
		return nil, tErr
	}
	return allocs, nil
}
