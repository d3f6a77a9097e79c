package route

import (
	"net/http"
	"os"
	"path/filepath"
	"visiondemo/internal/config"
	"visiondemo/internal/handler"
	"visiondemo/internal/logger"
	"visiondemo/internal/middleware"
	"visiondemo/internal/service"
)

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving and API endpoints,
// and wraps the mux with the session and CORS middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	mux.HandleFunc("/health", handler.HealthHandler(manager))

	// API endpoints
	mux.HandleFunc("/api/scenes", handler.ScenesHandler(manager))
	mux.HandleFunc("/api/session", handler.GetSessionHandler(manager))
	mux.HandleFunc("/api/session/mode", handler.SetModeHandler(manager, log))
	mux.HandleFunc("/api/session/scene", handler.SetSceneHandler(manager, log))
	mux.HandleFunc("/api/upload", handler.UploadHandler(manager, cfg, log))
	mux.HandleFunc("/api/process", handler.ProcessHandler(manager, log))
	mux.HandleFunc("/api/clear", handler.ClearHandler(manager))
	mux.HandleFunc("/api/files/delete", handler.DeleteFileHandler(manager, log))
	mux.HandleFunc("/api/previews/view", handler.ViewPreviewHandler(manager, log))
	mux.HandleFunc("/api/previews/annotated", handler.AnnotatedPreviewHandler(manager, log))
	mux.HandleFunc("/api/events", handler.EventsWebsocketHandler(manager, log))
	mux.HandleFunc("/api/runs", handler.RunsHandler(manager, cfg, log))

	// Log endpoints
	for _, level := range []struct{ path, file string }{
		{"/logs/info", logger.InfoFile},
		{"/logs/warning", logger.WarningFile},
		{"/logs/error", logger.ErrorFile},
	} {
		mux.HandleFunc(level.path, handler.ShowLogsHandler(log, level.file))
		mux.HandleFunc(level.path+"/clear", handler.ClearLogsHandler(log, level.file))
	}

	// Automatic HTML handler mapping for example: /about -> /static/about.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.CORSMiddleware(middleware.SessionMiddleware(mux))
}
