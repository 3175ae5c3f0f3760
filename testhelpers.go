package main

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// relativeToCache reports whether path sits inside the upload cache.
func relativeToCache(path string) bool {
	dir := filepath.Join(os.TempDir(), uploadCacheDirName)
	rel, err := filepath.Rel(dir, path)
	return err == nil && !strings.HasPrefix(rel, "..")
}

// setupTestSession swaps in a fresh session with automatic cleanup of
// any static server the test leaves running.
func setupTestSession(t *testing.T) *session {
	t.Helper()

	old := viewerSession
	s := newSession()
	viewerSession = s

	t.Cleanup(func() {
		s.shutdown()
		fileWatcher.close()
		viewerSession = old
	})

	return s
}

// createTestFile creates a file with the given content in dir
func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// newSelectRequest builds a multipart POST to /select. fileName may be
// empty to omit the upload part.
func newSelectRequest(t *testing.T, fields map[string]string, fileName string, fileData []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("upload", fileName)
		require.NoError(t, err)
		_, err = fw.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/select", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// selectControls returns form fields for a control-only interaction
// cycle with the given mode, echoing back the typed path.
func selectControls(mode, path string) map[string]string {
	return map[string]string{
		"mode":     mode,
		"path":     path,
		"height":   "900",
		"dark":     "on",
		"download": "on",
	}
}

// runSelect posts a select form and requires the redirect back to /.
func runSelect(t *testing.T, req *http.Request) {
	t.Helper()
	w := httptest.NewRecorder()
	handleSelect(w, req)
	require.Equal(t, http.StatusSeeOther, w.Result().StatusCode)
}

// renderViewer performs one GET / interaction cycle and returns the page.
func renderViewer(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	serveViewer(w, req)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	return w.Body.String()
}
