package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	minFrameHeight     = 200
	maxFrameHeight     = 5000
	defaultFrameHeight = 900

	maxUploadBytes = 32 << 20
)

// viewerTemplateData is used for rendering the viewer page
type viewerTemplateData struct {
	CSS          template.CSS
	Name         string
	Path         string
	HasDoc       bool
	Warning      string
	Error        string
	ServerMode   bool
	FrameHeight  int
	Dark         bool
	ShowDownload bool
	FrameSrc     string
	Inline       string
	TypedPath    string
}

// withRecovery wraps an HTTP handler with panic recovery
func withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Handler panic", "err", err, "stack", string(debug.Stack()))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// withCSRFCheck rejects cross-origin POST requests by validating the Origin header
func withCSRFCheck(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowedLocal := fmt.Sprintf("http://localhost:%d", listenPort)
		allowedLoopback := fmt.Sprintf("http://127.0.0.1:%d", listenPort)
		if origin := r.Header.Get("Origin"); origin != "" && origin != allowedLocal && origin != allowedLoopback {
			log.Warn("Rejected cross-origin POST", "origin", origin)
			http.Error(w, "Forbidden: cross-origin request", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all HTTP routes
func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", withRecovery(serveViewer))
	mux.HandleFunc("/select", withRecovery(withCSRFCheck(handleSelect)))
	mux.HandleFunc("/download", withRecovery(handleDownload))
	mux.HandleFunc("/events", withRecovery(serveSSE))
}

// serveViewer renders the viewer page. Every render is one interaction
// cycle: the document is re-read and the display mode re-applied.
func serveViewer(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	view, frameSrc := viewerSession.runCycle()
	data := viewerSession.templateData(view, frameSrc)

	var buf bytes.Buffer
	if err := viewerTmpl.Execute(&buf, data); err != nil {
		log.Error("Template execution error", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// templateData snapshots the session for the viewer template.
func (s *session) templateData(view *docView, frameSrc string) viewerTemplateData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := viewerTemplateData{
		CSS:          template.CSS(viewerCSS),
		Warning:      s.warning,
		Error:        s.errMsg,
		ServerMode:   s.serverMode,
		FrameHeight:  s.frameHeight,
		Dark:         s.dark,
		ShowDownload: s.showDownload,
		TypedPath:    s.typedPath,
	}
	if s.doc != nil && view != nil {
		data.HasDoc = true
		data.Name = s.doc.Name
		data.Path = s.doc.Path
		data.FrameSrc = frameSrc
		data.Inline = view.Inline
	}
	return data
}

// handleSelect runs one interaction cycle from the submitted form:
// render controls first, then source selection in priority order
// (fresh upload, typed path, current selection, bundled sample).
func handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	s := viewerSession
	typed := strings.TrimSpace(r.FormValue("path"))

	s.mu.Lock()
	s.serverMode = r.FormValue("mode") != "embed"
	s.frameHeight = clampHeight(r.FormValue("height"))
	s.dark = r.FormValue("dark") == "on"
	s.showDownload = r.FormValue("download") == "on"
	s.typedPath = typed
	s.mu.Unlock()

	var doc *document
	var warning string

	file, header, err := r.FormFile("upload")
	switch {
	case err == nil:
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			warning = fmt.Sprintf("Upload failed: %v", readErr)
		} else if doc, err = cacheUpload(header.Filename, data); err != nil {
			warning = err.Error()
			doc = nil
		} else {
			// The upload is the selection now; a stale path input must
			// not override it on the next control-only cycle.
			s.mu.Lock()
			s.typedPath = ""
			s.mu.Unlock()
			log.Info("Cached upload", "name", doc.Name, "bytes", len(data))
		}
	case typed != "":
		if doc, err = resolveTypedPath(typed); err != nil {
			warning = err.Error()
			doc = nil
		}
	default:
		doc = s.currentDoc()
		if doc == nil {
			if doc, err = defaultDocument(); err != nil {
				warning = err.Error()
			}
		}
	}

	s.setDoc(doc)
	if doc != nil {
		if err := fileWatcher.watch(doc.Path); err != nil {
			log.Warn("Cannot watch document", "path", doc.Path, "err", err)
		}
	} else {
		fileWatcher.close()
	}
	if warning != "" {
		s.mu.Lock()
		s.warning = warning
		s.mu.Unlock()
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func clampHeight(raw string) int {
	h, err := strconv.Atoi(raw)
	if err != nil {
		return defaultFrameHeight
	}
	if h < minFrameHeight {
		return minFrameHeight
	}
	if h > maxFrameHeight {
		return maxFrameHeight
	}
	return h
}

// handleDownload serves the selected document's original bytes under its
// original filename. Markdown documents are converted to a self-contained
// HTML page first, matching how they are displayed.
func handleDownload(w http.ResponseWriter, r *http.Request) {
	doc := viewerSession.currentDoc()
	if doc == nil {
		http.NotFound(w, r)
		return
	}

	content, err := os.ReadFile(doc.Path)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	filename := doc.Name
	if doc.Markdown {
		page, err := renderMarkdownPage(doc.Name, content)
		if err != nil {
			http.Error(w, "Failed to render markdown", http.StatusInternalServerError)
			return
		}
		content = []byte(page)
		filename = strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name)) + ".html"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))

	if _, err := w.Write(content); err != nil {
		log.Warn("Failed to write download response", "err", err)
	}
}

var (
	clients      = make(map[chan string]bool)
	clientsMutex sync.RWMutex
)

func serveSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("SSE error: ResponseWriter doesn't support flushing")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan string, 10) // Buffer events to handle bursts

	clientsMutex.Lock()
	clients[clientChan] = true
	clientsMutex.Unlock()

	defer func() {
		clientsMutex.Lock()
		delete(clients, clientChan)
		clientsMutex.Unlock()
		close(clientChan)
	}()

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message := <-clientChan:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", message); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// notifyClients pushes a message to every connected SSE client, dropping
// it for clients whose buffers are full.
func notifyClients(message string) {
	clientsMutex.RLock()
	defer clientsMutex.RUnlock()

	for clientChan := range clients {
		select {
		case clientChan <- message:
		default:
		}
	}
}
