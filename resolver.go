package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const uploadCacheDirName = "hview-uploads"

// Extensions accepted from uploads and typed paths. Markdown is rendered
// to HTML before display; everything else is framed as-is.
var allowedExts = map[string]bool{
	".html": true,
	".htm":  true,
	".md":   true,
}

// docView is the per-cycle materialization of a document: its bytes as
// read this cycle, the text for inline embedding, and the file the
// static server should frame.
type docView struct {
	Bytes    []byte
	Inline   string
	ViewPath string
}

// uploadCacheDir returns the fixed cache directory for uploaded files,
// creating it if needed.
func uploadCacheDir() (string, error) {
	dir := filepath.Join(os.TempDir(), uploadCacheDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create upload cache: %w", err)
	}
	return dir, nil
}

// cacheUpload persists uploaded bytes under the original basename so the
// static server can serve them. Last write wins on a name collision.
func cacheUpload(name string, data []byte) (*document, error) {
	base := filepath.Base(filepath.Clean(name))
	if !allowedExts[strings.ToLower(filepath.Ext(base))] {
		return nil, fmt.Errorf("unsupported file type: %s", base)
	}

	dir, err := uploadCacheDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("cannot cache upload: %w", err)
	}

	return &document{
		Name:     base,
		Path:     path,
		Markdown: isMarkdown(base),
	}, nil
}

// resolveTypedPath expands and validates a user-typed filesystem path.
// Failures here are user errors, reported as warnings by the caller.
func resolveTypedPath(raw string) (*document, error) {
	targetPath := strings.TrimSpace(raw)

	// Expand ~ to home directory
	if strings.HasPrefix(targetPath, "~/") || targetPath == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		targetPath = filepath.Join(homeDir, strings.TrimPrefix(targetPath, "~"))
	}

	targetPath = filepath.Clean(targetPath)
	if !filepath.IsAbs(targetPath) {
		absPath, err := filepath.Abs(targetPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		targetPath = absPath
	}

	resolvedPath, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %s", raw)
	}

	info, err := os.Stat(resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access path: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", raw)
	}

	return &document{
		Name:     filepath.Base(resolvedPath),
		Path:     resolvedPath,
		Markdown: isMarkdown(resolvedPath),
	}, nil
}

// defaultDocument materializes the bundled sample page into the upload
// cache so both display modes can use it.
func defaultDocument() (*document, error) {
	data, err := themeFS.ReadFile("theme/sample.html")
	if err != nil {
		return nil, fmt.Errorf("bundled sample unavailable: %w", err)
	}
	return cacheUpload("sample.html", data)
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// buildView reads the document from disk and prepares both display
// strategies. Markdown documents are rendered to a self-contained HTML
// page written next to the cache so the static server can frame it.
func buildView(doc *document) (*docView, error) {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, err
	}

	view := &docView{Bytes: data, ViewPath: doc.Path}
	if !doc.Markdown {
		view.Inline = decodeText(data)
		return view, nil
	}

	page, err := renderMarkdownPage(doc.Name, data)
	if err != nil {
		return nil, fmt.Errorf("cannot render markdown: %w", err)
	}
	view.Inline = page

	dir, err := uploadCacheDir()
	if err != nil {
		return nil, err
	}
	htmlName := strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name)) + ".html"
	htmlPath := filepath.Join(dir, htmlName)
	if err := os.WriteFile(htmlPath, []byte(page), 0644); err != nil {
		return nil, fmt.Errorf("cannot write rendered page: %w", err)
	}
	view.ViewPath = htmlPath
	return view, nil
}

// decodeText decodes file contents as UTF-8, falling back to Latin-1
// byte widening so arbitrary byte sequences never fail to decode.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, 0, len(data))
	for _, b := range data {
		runes = append(runes, rune(b))
	}
	return string(runes)
}
