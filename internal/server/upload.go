package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// maxCaptureUpload bounds the multipart form size for capture uploads.
const maxCaptureUpload = 64 << 20

// handleUpload stores every uploaded file under the server workspace and
// registers each as a capture artifact whose id can be handed to /analyze.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxCaptureUpload); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			ref, err := s.storeCapture(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("save upload %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs})
}

// storeCapture copies one uploaded file into the uploads directory, keeping
// the original extension so content-type guessing still works on it.
func (s *Server) storeCapture(fh *multipart.FileHeader) (ArtifactRef, error) {
	if fh == nil {
		return ArtifactRef{}, fmt.Errorf("nil file header")
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	dest, err := os.CreateTemp(s.uploadsDir, "capture-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return ArtifactRef{}, err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	if err := dest.Close(); err != nil {
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	art, err := s.addArtifact(dest.Name(), fh.Filename, guessContentType(fh.Filename), "capture")
	if err != nil {
		return ArtifactRef{}, err
	}
	return toRef(art), nil
}
