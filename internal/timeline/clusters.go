package timeline

import (
	"time"

	"horse.fit/storyline/internal/clustering"
)

// PartitionClusters buckets clusters by last update.
func PartitionClusters(clusters []clustering.Cluster, now time.Time, loc *time.Location) []Block[clustering.Cluster] {
	return Partition(clusters, func(c clustering.Cluster) time.Time { return c.LastUpdated }, now, loc)
}
