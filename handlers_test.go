package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeViewerEmptyState(t *testing.T) {
	setupTestSession(t)

	html := renderViewer(t)
	assert.Contains(t, html, "HTML Viewer")
	assert.Contains(t, html, "Upload a file or enter a path to begin.")
	assert.NotContains(t, html, "<iframe")
}

func TestServeViewerNotFound(t *testing.T) {
	setupTestSession(t)

	req := httptest.NewRequest("GET", "/nope", nil)
	w := httptest.NewRecorder()
	serveViewer(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestServeViewerEmbedEscapesMarkup(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "page.html", "<p>hi</p>")
	s.setDoc(&document{Name: "page.html", Path: path})
	s.mu.Lock()
	s.serverMode = false
	s.mu.Unlock()

	html := renderViewer(t)
	assert.Contains(t, html, "srcdoc=")
	assert.Contains(t, html, "&lt;p&gt;hi&lt;/p&gt;")
	assert.Contains(t, html, "page.html")
}

func TestServeViewerServerModeFrame(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "page.html", "<p>hi</p>")
	s.setDoc(&document{Name: "page.html", Path: path})

	html := renderViewer(t)
	assert.Contains(t, html, "http://127.0.0.1:")
	assert.Contains(t, html, "/page.html")

	_, _, running := s.server.running()
	assert.True(t, running)
}

func TestHandleSelectUpload(t *testing.T) {
	s := setupTestSession(t)

	fields := selectControls("server", "")
	req := newSelectRequest(t, fields, "demo.html", []byte("<p>hi</p>"))
	runSelect(t, req)

	doc := s.currentDoc()
	require.NotNil(t, doc)
	assert.Equal(t, "demo.html", doc.Name)
	assert.True(t, relativeToCache(doc.Path))
}

func TestHandleSelectUploadBeatsTypedPath(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	typed := createTestFile(t, dir, "other.html", "<p>other</p>")

	fields := selectControls("embed", typed)
	req := newSelectRequest(t, fields, "upload.html", []byte("<p>up</p>"))
	runSelect(t, req)

	doc := s.currentDoc()
	require.NotNil(t, doc)
	assert.Equal(t, "upload.html", doc.Name)

	// The typed path is cleared so it cannot shadow the upload later
	s.mu.RLock()
	assert.Empty(t, s.typedPath)
	s.mu.RUnlock()
}

func TestHandleSelectTypedPath(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "local.html", "<p>local</p>")

	runSelect(t, newSelectRequest(t, selectControls("embed", path), "", nil))

	doc := s.currentDoc()
	require.NotNil(t, doc)
	assert.Equal(t, "local.html", doc.Name)
}

func TestHandleSelectBadPathWarns(t *testing.T) {
	s := setupTestSession(t)
	missing := filepath.Join(t.TempDir(), "missing.html")

	runSelect(t, newSelectRequest(t, selectControls("server", missing), "", nil))

	assert.Nil(t, s.currentDoc())
	s.mu.RLock()
	warning := s.warning
	s.mu.RUnlock()
	assert.Contains(t, warning, "does not exist")

	// The failed cycle must not start a server
	renderViewer(t)
	_, _, running := s.server.running()
	assert.False(t, running)
}

func TestHandleSelectFallsBackToSample(t *testing.T) {
	s := setupTestSession(t)

	runSelect(t, newSelectRequest(t, selectControls("embed", ""), "", nil))

	doc := s.currentDoc()
	require.NotNil(t, doc)
	assert.Equal(t, "sample.html", doc.Name)
}

func TestHandleSelectControlsOnlyKeepsServer(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "page.html", "<p>hi</p>")

	runSelect(t, newSelectRequest(t, selectControls("server", path), "", nil))
	renderViewer(t)

	_, port1, running := s.server.running()
	require.True(t, running)

	// Change only the frame height; same document, same directory
	fields := selectControls("server", path)
	fields["height"] = "1200"
	runSelect(t, newSelectRequest(t, fields, "", nil))
	renderViewer(t)

	_, port2, running := s.server.running()
	require.True(t, running)
	assert.Equal(t, port1, port2)

	s.mu.RLock()
	height := s.frameHeight
	s.mu.RUnlock()
	assert.Equal(t, 1200, height)
}

func TestHandleSelectSwitchToEmbedStopsServer(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "page.html", "<p>hi</p>")

	runSelect(t, newSelectRequest(t, selectControls("server", path), "", nil))
	renderViewer(t)
	_, _, running := s.server.running()
	require.True(t, running)

	runSelect(t, newSelectRequest(t, selectControls("embed", path), "", nil))
	renderViewer(t)
	_, _, running = s.server.running()
	assert.False(t, running)
}

func TestHandleSelectMethodNotAllowed(t *testing.T) {
	setupTestSession(t)

	req := httptest.NewRequest("GET", "/select", nil)
	w := httptest.NewRecorder()
	handleSelect(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Result().StatusCode)
}

func TestSelectRejectsCrossOrigin(t *testing.T) {
	setupTestSession(t)

	mux := http.NewServeMux()
	registerRoutes(mux)

	req := newSelectRequest(t, selectControls("embed", ""), "", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
}

func TestHandleDownload(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "demo.html", "<p>hi</p>")
	s.setDoc(&document{Name: "demo.html", Path: path})

	req := httptest.NewRequest("GET", "/download", nil)
	w := httptest.NewRecorder()
	handleDownload(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="demo.html"`)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("<p>hi</p>"), body)
	assert.Len(t, body, 9)
}

func TestHandleDownloadMarkdownRendered(t *testing.T) {
	s := setupTestSession(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "notes.md", "# Title\n\nbody text")
	s.setDoc(&document{Name: "notes.md", Path: path, Markdown: true})

	req := httptest.NewRequest("GET", "/download", nil)
	w := httptest.NewRecorder()
	handleDownload(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="notes.html"`)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(body)
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "body text")
	assert.NotContains(t, html, "# Title")
}

func TestHandleDownloadNoDocument(t *testing.T) {
	setupTestSession(t)

	req := httptest.NewRequest("GET", "/download", nil)
	w := httptest.NewRecorder()
	handleDownload(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestClampHeight(t *testing.T) {
	assert.Equal(t, defaultFrameHeight, clampHeight(""))
	assert.Equal(t, defaultFrameHeight, clampHeight("abc"))
	assert.Equal(t, minFrameHeight, clampHeight("10"))
	assert.Equal(t, maxFrameHeight, clampHeight("99999"))
	assert.Equal(t, 1200, clampHeight("1200"))
}

func TestWithRecovery(t *testing.T) {
	handler := withRecovery(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
}
