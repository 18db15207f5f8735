package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"example.com/canwatch/internal/common"
	"example.com/canwatch/internal/detect"
	"example.com/canwatch/internal/profile"
	"example.com/canwatch/internal/report"
)

// Server coordinates HTTP handlers and manages temporary artifacts produced
// by analysis requests.
type Server struct {
	artifacts *ArtifactStore
	workDir   string
	uploadsDir string
	profiles  map[string]profile.Profile
	sessions  *common.SessionLog
	telemetry *Telemetry
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "canwatchd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	profiles, err := loadProfiles(opts.Profiles)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	sessionPath := opts.SessionLog
	if sessionPath == "" {
		sessionPath = filepath.Join(storageDir, "sessions.jsonl")
	}
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		profiles:   profiles,
		sessions:   common.NewSessionLog(sessionPath),
		telemetry:  NewTelemetry(),
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		ID:          uuid.NewString(),
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[art.ID] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stream := r.URL.Query().Get("stream") == "true"
	var req struct {
		Capture string `json:"capture"`
		Profile string `json:"profile"`
		Lang    string `json:"lang"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Capture) == "" {
		http.Error(w, "capture required", http.StatusBadRequest)
		return
	}
	profileID := strings.TrimSpace(req.Profile)
	if profileID == "" {
		profileID = "default"
	}
	prof, ok := s.profiles[profileID]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown profile %q", profileID), http.StatusBadRequest)
		return
	}
	capturePath, err := s.resolvePath(req.Capture)
	if err != nil {
		http.Error(w, fmt.Sprintf("capture resolve: %v", err), http.StatusBadRequest)
		return
	}
	lang, err := report.ParseLanguage(req.Lang)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	engine, err := detect.NewEngine(prof.EngineConfig())
	if err != nil {
		http.Error(w, fmt.Sprintf("engine init: %v", err), http.StatusInternalServerError)
		return
	}

	if stream {
		writer := NewNDJSONWriter(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
		engine.SetSink(detect.SinkFunc(writer.WriteAlert))
		rep, err := detect.AnalyzeCapture(engine, capturePath, nil)
		engine.SetSink(nil)
		if err != nil {
			s.telemetry.ObserveFailure()
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		summary, err := s.finishAnalysis(rep, capturePath, prof, lang)
		if err != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		_ = writer.WriteObject(summary)
		return
	}

	rep, err := detect.AnalyzeCapture(engine, capturePath, nil)
	if err != nil {
		s.telemetry.ObserveFailure()
		http.Error(w, fmt.Sprintf("analyze: %v", err), http.StatusInternalServerError)
		return
	}
	summary, err := s.finishAnalysis(rep, capturePath, prof, lang)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// analysisSummary closes out one analysis: artifacts, audit trail and
// telemetry.
type analysisSummary struct {
	Type      string        `json:"type"`
	SessionID string        `json:"sessionId"`
	Report    detect.Report `json:"report"`
	Artifacts []ArtifactRef `json:"artifacts"`
}

func (s *Server) finishAnalysis(rep detect.Report, capturePath string, prof profile.Profile, lang report.Language) (analysisSummary, error) {
	digest, _, err := common.Sha256OfFile(capturePath)
	if err != nil {
		return analysisSummary{}, fmt.Errorf("capture digest: %w", err)
	}
	alertsPath, err := s.tempPath("alerts-*.ndjson")
	if err != nil {
		return analysisSummary{}, err
	}
	if err := detect.WriteAlertsNDJSON(alertsPath, rep.Findings); err != nil {
		return analysisSummary{}, fmt.Errorf("write alerts: %w", err)
	}
	reportPath, err := s.tempPath("report-*.json")
	if err != nil {
		return analysisSummary{}, err
	}
	if err := report.SaveReportJSON(rep, reportPath); err != nil {
		return analysisSummary{}, fmt.Errorf("write report: %w", err)
	}
	pdfPath, err := s.tempPath("report-*.pdf")
	if err != nil {
		return analysisSummary{}, err
	}
	if err := report.SaveReportPDF(rep, pdfPath, report.PDFOptions{
		Lang:          lang,
		CaptureName:   filepath.Base(capturePath),
		CaptureDigest: digest,
		Profile:       prof.ID,
	}); err != nil {
		return analysisSummary{}, fmt.Errorf("write pdf: %w", err)
	}
	alertsArt, err := s.addArtifact(alertsPath, "alerts.ndjson", "application/x-ndjson", "alerts")
	if err != nil {
		return analysisSummary{}, err
	}
	reportArt, err := s.addArtifact(reportPath, "report.json", "application/json", "report")
	if err != nil {
		return analysisSummary{}, err
	}
	pdfArt, err := s.addArtifact(pdfPath, "report.pdf", "application/pdf", "report")
	if err != nil {
		return analysisSummary{}, err
	}
	sessionID := uuid.NewString()
	entry := common.SessionEntry{
		SessionID:     sessionID,
		Capture:       filepath.Base(capturePath),
		CaptureSHA256: digest,
		Profile:       prof.ID,
		Frames:        rep.Summary.Frames,
		Alerts:        rep.Summary.Total,
		Errors:        rep.Summary.Errors,
		Warnings:      rep.Summary.Warnings,
		Pass:          rep.Summary.Pass,
	}
	if err := s.sessions.Append(entry); err != nil {
		return analysisSummary{}, fmt.Errorf("session log: %w", err)
	}
	s.telemetry.ObserveReport(rep)
	return analysisSummary{
		Type:      "report",
		SessionID: sessionID,
		Report:    rep,
		Artifacts: []ArtifactRef{toRef(alertsArt), toRef(reportArt), toRef(pdfArt)},
	}, nil
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type profileInfo struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
	}
	infos := make([]profileInfo, 0, len(s.profiles))
	for _, id := range profileIDs(s.profiles) {
		infos = append(infos, profileInfo{ID: id, Name: s.profiles[id].Name})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := common.ReadSessionLog(s.sessions.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusOK, []common.SessionEntry{})
			return
		}
		http.Error(w, fmt.Sprintf("read sessions: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".ndjson", ".jsonl":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".log", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}
