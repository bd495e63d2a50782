package gateway

import (
	"net/http"
	"sort"
	"time"

	"filedeck/internal/usecase/scheduling"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Name             string                  `json:"name"`
	Version          string                  `json:"version"`
	UptimeSeconds    int64                   `json:"uptime_seconds"`
	SettingsBackend  string                  `json:"settings_backend"`
	SandboxRoot      string                  `json:"sandbox_root"`
	Operations       map[string]uint64       `json:"operations"`
	WebSocketClients int                     `json:"websocket_clients"`
	EventSubscribers int                     `json:"event_subscribers"`
	Tasks            []scheduling.TaskStatus `json:"tasks,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Name:             "filedeck",
		Version:          s.cfg.Version,
		UptimeSeconds:    int64(time.Since(s.started).Seconds()),
		SandboxRoot:      s.cfg.SandboxRoot,
		Operations:       s.operationCounts(),
		WebSocketClients: s.clientCount(),
	}
	if s.deps.Events != nil {
		resp.EventSubscribers = s.deps.Events.Subscribers()
	}
	if s.deps.Settings != nil {
		resp.SettingsBackend = s.deps.Settings.Backend()
	}
	if s.deps.Tasks != nil {
		resp.Tasks = s.deps.Tasks()
	}
	writeJSON(w, http.StatusOK, resp)
}

// operationCounts returns published event counts keyed by event type.
func (s *Server) operationCounts() map[string]uint64 {
	out := map[string]uint64{}
	if s.deps.Events == nil {
		return out
	}
	for typ, n := range s.deps.Events.Counts() {
		out[string(typ)] = n
	}
	return out
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
