package cluster

import (
	"math"
	"strings"
)

// Predict assigns a cluster with the service's rule-based scheme: keyword
// match on the school name and municipality, defaulting to the Clarin
// cluster.
func Predict(s School) int {
	text := strings.ToLower(s.Name + " " + s.Municipality)
	switch {
	case strings.Contains(text, "inabanga") || strings.Contains(text, "dagohoy"):
		return 0
	case strings.Contains(text, "tubigon") || strings.Contains(text, "cawayanan") || strings.Contains(text, "cabulijan"):
		return 2
	default:
		return 1
	}
}

// Fallback builds a full batch response locally, mirroring the shape the
// service returns so callers do not care which path answered.
func Fallback(schools []School) *BatchResponse {
	resp := &BatchResponse{Results: make([]Result, 0, len(schools))}
	counts := [numClusters]int{}
	for _, s := range schools {
		id := Predict(s)
		counts[id]++
		resp.Results = append(resp.Results, Result{
			School:       s.Name,
			Municipality: s.Municipality,
			ClusterID:    id,
			ClusterName:  Name(id),
			ClusterColor: Color(id),
			ModelUsed:    "rule_based",
			Success:      true,
		})
	}

	total := len(schools)
	dominant := 0
	stats := make([]ClusterStat, 0, numClusters)
	for id := 0; id < numClusters; id++ {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(counts[id])/float64(total)*1000) / 10
		}
		stats = append(stats, ClusterStat{
			ID:         id,
			Name:       Name(id),
			Count:      counts[id],
			Percentage: pct,
			Color:      Color(id),
		})
		if counts[id] > counts[dominant] {
			dominant = id
		}
	}
	resp.Summary = Summary{
		TotalSchools:          total,
		SuccessfulPredictions: total,
		Clusters:              stats,
		DominantCluster:       dominant,
		DominantClusterName:   Name(dominant),
		ModelUsed:             "rule_based",
	}
	return resp
}
