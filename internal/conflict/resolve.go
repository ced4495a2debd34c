// Package conflict merges local and remote task snapshots with per-record
// last-write-wins. Local is the baseline: a remote copy replaces it only when
// its timestamp is strictly greater, so ties keep the local copy.
//
// Deletions are not reconciled here. A task removed remotely but still
// present locally survives the merge.
package conflict

import "tasksync/internal/models"

// Result is a merge outcome.
type Result struct {
	// Tasks is the merged set: local order first, then remote-only tasks in remote order.
	Tasks []models.Task
	// Pulled holds the remote records that won, i.e. new ids and newer copies.
	Pulled []models.Task
	// Conflicts counts ids present on both sides with different timestamps.
	Conflicts int
}

// Resolve returns the merged task set. It does not modify its inputs.
func Resolve(local, remote []models.Task) []models.Task {
	return Merge(local, remote).Tasks
}

// Merge resolves local against remote and reports which remote records won.
func Merge(local, remote []models.Task) Result {
	index := make(map[string]int, len(local)+len(remote))
	merged := make([]models.Task, 0, len(local)+len(remote))
	for _, t := range local {
		if i, ok := index[t.ID]; ok {
			merged[i] = t
			continue
		}
		index[t.ID] = len(merged)
		merged = append(merged, t)
	}

	var res Result
	for _, r := range remote {
		i, ok := index[r.ID]
		if !ok {
			index[r.ID] = len(merged)
			merged = append(merged, r)
			res.Pulled = append(res.Pulled, r)
			continue
		}
		cur := merged[i]
		if cur.Timestamp != r.Timestamp {
			res.Conflicts++
		}
		if r.Timestamp > cur.Timestamp {
			merged[i] = r
			res.Pulled = append(res.Pulled, r)
		}
	}
	res.Tasks = merged
	return res
}
