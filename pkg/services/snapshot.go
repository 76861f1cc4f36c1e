package services

import "github.com/hodlisma/hodlisma-engine/pkg/models"

// diffSnapshots narrows two full-row snapshots to the keys that changed,
// giving the partial before/after pair an update entry records.
func diffSnapshots(before, after models.Snapshot) (oldData, newData models.Snapshot) {
	oldData = models.Snapshot{}
	newData = models.Snapshot{}
	for k, v := range after {
		if prev, ok := before[k]; !ok || prev != v {
			oldData[k] = before[k]
			newData[k] = v
		}
	}
	return oldData, newData
}
