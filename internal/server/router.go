package server

import "net/http"

// NewRouter wires HTTP routes to the server's handlers.
func NewRouter(s *Server) (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/profiles", s.handleProfiles)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/artifacts", s.handleArtifactList)
	mux.HandleFunc("/artifacts/", s.handleArtifactDownload)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.telemetry.Handler())
	return mux, nil
}

func (s *Server) handleArtifactList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.listArtifacts())
}
