package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
)

type clusterResponse struct {
	Node     string   `json:"node"`
	Leader   string   `json:"leader,omitempty"`
	IsLeader bool     `json:"is_leader"`
	Peers    []string `json:"peers"`
}

// ClusterInfo reports this node's identity, the current leader and the
// other alive members.
func ClusterInfo(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := clusterResponse{
			Node:     string(d.Coordinator.LocalID()),
			IsLeader: d.Coordinator.IsLeader(),
			Peers:    []string{},
		}
		if leader, ok := d.Coordinator.LeaderID(); ok {
			resp.Leader = string(leader)
		}
		for _, p := range d.Coordinator.Peers() {
			resp.Peers = append(resp.Peers, string(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type statisticView struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Kind        string  `json:"kind"`
	Description string  `json:"description,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Partial     bool    `json:"partial"`
	Value       float64 `json:"value"`
}

// Statistics samples and returns every published statistic.
func Statistics(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := d.Stats.Snapshot()
		out := make([]statisticView, 0, len(snapshot))
		for _, s := range snapshot {
			out = append(out, statisticView{
				Key:         s.Key,
				Name:        s.Name,
				Kind:        string(s.Kind),
				Description: s.Description,
				Unit:        s.Unit,
				Partial:     s.Partial,
				Value:       s.Value,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
