package inspect

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/httputil"
	"github.com/getmockd/inspectd/pkg/session"
)

// IndexResponse is returned by GET /.
type IndexResponse struct {
	Version   string         `json:"version,omitempty"`
	LiveCount int            `json:"liveCount"`
	Total     int            `json:"total"`
	Sessions  []session.Info `json:"sessions"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	resp := IndexResponse{
		Version:   s.version,
		LiveCount: s.store.LiveCount(),
		Total:     s.store.Len(),
		Sessions:  s.listSessions(),
	}
	httputil.WriteOK(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, s.listSessions())
}

func (s *Server) listSessions() []session.Info {
	if s.sessions == nil {
		return []session.Info{}
	}
	infos, err := s.sessions.List()
	if err != nil {
		s.log.Warn("listing sessions failed", "error", err)
		return []session.Info{}
	}
	return infos
}

// handleSession handles GET /session/{session}. "live" lists live exchanges
// in capture order; any other name loads that dump into the store.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("session")
	if name == session.LiveName {
		httputil.WriteOK(w, summaries(slices.Collect(s.store.Live())))
		return
	}

	loaded, err := s.loader.Load(r.Context(), name)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteOK(w, summaries(loaded))
}

func summaries(exchanges []*exchange.Exchange) []exchange.Summary {
	out := make([]exchange.Summary, 0, len(exchanges))
	for _, e := range exchanges {
		out = append(out, e.Summary())
	}
	return out
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*exchange.Exchange, bool) {
	e, err := s.store.Lookup(r.PathValue("guid"))
	if err != nil {
		s.writeErr(w, r, err)
		return nil, false
	}
	return e, true
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteOK(w, e.Document())
}

func (s *Server) handleDownloadJSON(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data, err := json.MarshalIndent(e.Document(), "", "  ")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteAttachment(w, e.ID().String()+".json", "application/json", data)
}
