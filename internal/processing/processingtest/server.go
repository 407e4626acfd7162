// Package processingtest provides an in-process stand-in for the external
// processing service, speaking the same wire contract.
package processingtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/dunamismax/passportflow/internal/domain"
)

type ProcessCall struct {
	Filename   string `json:"filename"`
	Size       string `json:"size"`
	Background string `json:"background"`
	Watermark  bool   `json:"watermark"`
}

type OutputCall struct {
	Filenames []string `json:"filenames"`
	Copies    int      `json:"copies"`
}

// Server records every call it receives. Fail* switches make the matching
// route answer 500.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	Catalog       domain.Catalog
	FailUpload    bool
	FailCatalog   bool
	FailProcess   bool
	FailOutput    bool
	ProcessGate   chan struct{}
	Uploads       []string
	ProcessCalls  []ProcessCall
	OutputCalls   []OutputCall
	Downloads     []string
	files         map[string][]byte
	uploadCounter int
	pdfCounter    int
}

func NewServer() *Server {
	s := &Server{
		Catalog: domain.Catalog{
			{Key: "us", Name: "US (2x2 inches)", Width: 600, Height: 600},
			{Key: "eu", Name: "EU/UK/Pakistan (35x45 mm)", Width: 413, Height: 531},
			{Key: "india", Name: "India (51x51 mm)", Width: 602, Height: 602},
		},
		files: make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/sizes", s.handleSizes)
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("POST /api/download-pdf", s.handleOutput)
	mux.HandleFunc("GET /api/download/{name}", s.handleDownload)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) Set(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *Server) ProcessCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ProcessCalls)
}

func (s *Server) UploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Uploads)
}

func (s *Server) LastProcess() ProcessCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ProcessCalls) == 0 {
		return ProcessCall{}
	}
	return s.ProcessCalls[len(s.ProcessCalls)-1]
}

func (s *Server) LastOutput() OutputCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.OutputCalls) == 0 {
		return OutputCall{}
	}
	return s.OutputCalls[len(s.OutputCalls)-1]
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.FailUpload
	s.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "upload storage unavailable"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read failed"})
		return
	}

	s.mu.Lock()
	s.uploadCounter++
	ext := ".jpg"
	if i := strings.LastIndex(header.Filename, "."); i >= 0 {
		ext = header.Filename[i:]
	}
	name := fmt.Sprintf("upload-%d%s", s.uploadCounter, ext)
	s.Uploads = append(s.Uploads, header.Filename)
	s.files[name] = data
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"filename": name, "filepath": "uploads/" + name})
}

func (s *Server) handleSizes(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	fail := s.FailCatalog
	catalog := s.Catalog
	s.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "catalog offline"})
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var call ProcessCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	s.mu.Lock()
	s.ProcessCalls = append(s.ProcessCalls, call)
	fail := s.FailProcess
	gate := s.ProcessGate
	size, ok := s.Catalog.Lookup(call.Size)
	_, uploaded := s.files[call.Filename]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "background removal failed"})
		return
	}
	if !uploaded {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}
	if !ok {
		size, _ = s.Catalog.First()
	}

	processed := "processed_" + call.Filename
	s.mu.Lock()
	s.files[processed] = []byte("processed:" + call.Filename + ":" + call.Background)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"processed_filename": processed,
		"processed_filepath": "processed/" + processed,
		"size":               map[string]any{"name": size.Name, "width": size.Width, "height": size.Height},
	})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	var call OutputCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.OutputCalls = append(s.OutputCalls, call)
	if s.FailOutput {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "pdf renderer crashed"})
		return
	}
	if len(call.Filenames) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No filenames provided"})
		return
	}
	s.pdfCounter++
	name := fmt.Sprintf("passport_photos_%d.pdf", s.pdfCounter)
	s.files[name] = []byte(fmt.Sprintf("%%PDF copies=%d", call.Copies))
	writeJSON(w, http.StatusOK, map[string]string{"pdf_filename": name})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.Lock()
	data, ok := s.files[name]
	s.Downloads = append(s.Downloads, name)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
