package main

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
)

// document identifies the currently selected source. Bytes are not held
// here: every interaction cycle re-reads the file so external edits show
// up on the next render.
type document struct {
	Name     string // display and download name
	Path     string // absolute path on disk
	Markdown bool   // rendered through goldmark before display
}

// session holds the per-process viewer state: the selected document, the
// render controls, and the single static server handle. All handlers go
// through runCycle, which snapshots and mutates under the lock.
type session struct {
	mu sync.RWMutex

	doc       *document
	typedPath string // echoed back into the path input

	serverMode   bool
	frameHeight  int
	dark         bool
	showDownload bool

	// Messages from the last cycle, shown once on the viewer page.
	warning string
	errMsg  string

	server staticServer
}

func newSession() *session {
	return &session{
		serverMode:   true,
		frameHeight:  defaultFrameHeight,
		dark:         true,
		showDownload: true,
	}
}

// currentDoc returns a snapshot of the selected document.
func (s *session) currentDoc() *document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	snapshot := *s.doc
	return &snapshot
}

// setDoc replaces the selected document and clears stale messages.
func (s *session) setDoc(doc *document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.warning = ""
	s.errMsg = ""
}

// runCycle is the per-interaction entry point: it re-reads the selected
// document from disk and drives the server lifecycle for the current
// mode. Returns the view built for this cycle (nil when no document is
// selected or the read failed).
func (s *session) runCycle() (*docView, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil || !s.serverMode {
		// Inline mode and the empty state both leave no server behind.
		s.server.stop()
	}
	if s.doc == nil {
		return nil, ""
	}

	view, err := buildView(s.doc)
	if err != nil {
		s.errMsg = fmt.Sprintf("Could not read %s: %v", s.doc.Name, err)
		s.server.stop()
		return nil, ""
	}

	var frameSrc string
	if s.serverMode {
		root := filepath.Dir(view.ViewPath)
		port, err := s.server.ensure(root)
		if err != nil {
			s.errMsg = fmt.Sprintf("Static server failed to start: %v", err)
			return view, ""
		}
		frameSrc = fmt.Sprintf("http://127.0.0.1:%d/%s", port, url.PathEscape(filepath.Base(view.ViewPath)))
	}
	return view, frameSrc
}

// shutdown tears down the session's background resources.
func (s *session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.stop()
}
