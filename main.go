package main

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

//go:embed theme/*
var themeFS embed.FS

var (
	// Build info (set via ldflags)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// State (global for single-user CLI simplicity; protected by mutexes)
	viewerSession *session
	fileWatcher   docWatcher
	listenPort    int

	// Templates and CSS (loaded once at startup)
	viewerCSS   string
	markdownCSS string
	viewerTmpl  *template.Template
)

var styleURL = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "#2563eb", Dark: "#60a5fa"}).
	Bold(true)

func init() {
	cssData, err := themeFS.ReadFile("theme/viewer.css")
	if err != nil {
		log.Fatal("Failed to load viewer CSS", "err", err)
	}
	viewerCSS = string(cssData)

	mdCSSData, err := themeFS.ReadFile("theme/markdown.css")
	if err != nil {
		log.Fatal("Failed to load markdown CSS", "err", err)
	}
	markdownCSS = string(mdCSSData)

	viewerHTML, err := themeFS.ReadFile("theme/viewer.html")
	if err != nil {
		log.Fatal("Failed to load viewer template", "err", err)
	}
	viewerTmpl = template.Must(template.New("viewer").Parse(string(viewerHTML)))

	viewerSession = newSession()
}

func main() {
	root := &cli.Command{
		Name:      "hview",
		Usage:     "View a local or uploaded HTML file in the browser",
		ArgsUsage: "[file.html]",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port for the viewer UI",
				Value: 6460,
			},
			&cli.BoolFlag{
				Name:  "browser",
				Usage: "Open browser automatically",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log level: debug, info, warn, error",
				Value: "warn",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, err := log.ParseLevel(cmd.String("log"))
			if err != nil {
				return ctx, err
			}
			log.SetLevel(level)
			return ctx, nil
		},
		Action: run,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	listenPort = int(cmd.Int("port"))

	// An optional positional argument pre-selects a document, so
	// "hview report.html" opens straight into it.
	if err := selectStartupDocument(cmd.Args().First()); err != nil {
		return err
	}

	mux := http.NewServeMux()
	registerRoutes(mux)

	addr := fmt.Sprintf("localhost:%d", listenPort)
	url := fmt.Sprintf("http://%s", addr)

	fmt.Printf("hview at %s\n", styleURL.Render(url))
	fmt.Println("Press Ctrl+C to quit")

	if cmd.Bool("browser") {
		go func() {
			time.Sleep(500 * time.Millisecond)
			openURL(url)
		}()
	}

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout intentionally omitted: the SSE endpoint holds
		// its connection open for the life of the page.
		IdleTimeout: 60 * time.Second,
	}

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint

		log.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fileWatcher.close()
		viewerSession.shutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "err", err)
		}
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// selectStartupDocument picks the initial selection: the positional
// argument when given, otherwise the bundled sample. Either way the
// selection is watched so live reload works from the first page load.
func selectStartupDocument(arg string) error {
	var doc *document
	var err error
	if arg != "" {
		if doc, err = resolveTypedPath(arg); err != nil {
			return err
		}
	} else if doc, err = defaultDocument(); err != nil {
		log.Warn("Bundled sample unavailable", "err", err)
		return nil
	}

	viewerSession.setDoc(doc)
	if err := fileWatcher.watch(doc.Path); err != nil {
		log.Warn("Cannot watch document", "path", doc.Path, "err", err)
	}
	return nil
}

func openURL(url string) {
	var cmd string
	var args []string

	switch {
	case fileExists("/usr/bin/open"): // macOS
		cmd = "open"
		args = []string{url}
	case fileExists("/usr/bin/xdg-open"): // Linux
		cmd = "xdg-open"
		args = []string{url}
	default: // Windows
		cmd = "cmd"
		args = []string{"/c", "start", url}
	}

	launch := exec.Command(cmd, args...)
	if err := launch.Start(); err != nil {
		log.Warn("Failed to open URL", "url", url, "err", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
