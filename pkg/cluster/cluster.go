// Package cluster talks to the external school-clustering service and
// degrades to the service's own rule-based prediction when it is down or its
// model is not loaded. The service groups secondary schools into three
// municipality clusters for the registrar analytics view.
package cluster

// School is one input to a batch prediction.
type School struct {
	Name         string `json:"name"`
	Municipality string `json:"municipality"`
}

// Result is the prediction for one school.
type Result struct {
	School       string `json:"school"`
	Municipality string `json:"municipality"`
	ClusterID    int    `json:"cluster_id"`
	ClusterName  string `json:"cluster_name"`
	ClusterColor string `json:"cluster_color"`
	ModelUsed    string `json:"model_used"`
	Success      bool   `json:"success"`
}

// ClusterStat is one row of the batch summary.
type ClusterStat struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

// Summary aggregates a batch prediction.
type Summary struct {
	TotalSchools          int           `json:"total_schools"`
	SuccessfulPredictions int           `json:"successful_predictions"`
	FailedPredictions     int           `json:"failed_predictions"`
	Clusters              []ClusterStat `json:"clusters"`
	DominantCluster       int           `json:"dominant_cluster"`
	DominantClusterName   string        `json:"dominant_cluster_name"`
	ModelUsed             string        `json:"model_used"`
}

// BatchResponse is the full answer for a batch of schools.
type BatchResponse struct {
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

const numClusters = 3

var clusterNames = [numClusters]string{
	"Inabanga Schools",
	"Clarin Schools",
	"Tubigon Schools",
}

var clusterColors = [numClusters]string{"#0088FE", "#00C49F", "#FFBB28"}

// Name returns the display name for a cluster id.
func Name(id int) string {
	if id >= 0 && id < numClusters {
		return clusterNames[id]
	}
	return "Unknown"
}

// Color returns the chart color for a cluster id.
func Color(id int) string {
	if id >= 0 && id < numClusters {
		return clusterColors[id]
	}
	return clusterColors[0]
}
