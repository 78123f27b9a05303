package engine

import "github.com/bolasblack/medbuddy/internal/model"

// Merge combines local and remote datasets collection by collection.
// See mergeRecords for the rule.
func Merge(local, remote model.Dataset) model.Dataset {
	return model.Dataset{
		Users:         mergeRecords(local.Users, remote.Users),
		FeverLogs:     mergeRecords(local.FeverLogs, remote.FeverLogs),
		Prescriptions: mergeRecords(local.Prescriptions, remote.Prescriptions),
	}
}

// mergeRecords returns the union by id. On an id collision the local record
// wins. Local records keep their order; remote-only records follow in remote
// order. There are no tombstones: a record deleted on one side and present on
// the other comes back.
func mergeRecords[T model.Record](local, remote []T) []T {
	out := make([]T, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))
	for _, r := range local {
		if _, ok := seen[r.RecordID()]; ok {
			continue
		}
		seen[r.RecordID()] = struct{}{}
		out = append(out, r)
	}
	for _, r := range remote {
		if _, ok := seen[r.RecordID()]; ok {
			continue
		}
		seen[r.RecordID()] = struct{}{}
		out = append(out, r)
	}
	return out
}
