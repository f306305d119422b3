package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robot-workbench/backend/internal/api"
	"github.com/robot-workbench/backend/internal/config"
	"github.com/robot-workbench/backend/internal/parser"
	"github.com/robot-workbench/backend/internal/session"
	"github.com/robot-workbench/backend/internal/storage"
	"github.com/robot-workbench/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "RobotWorkbench.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Check if running in embedded mode (frontend built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Initialize session manager
	sessionMgr := session.NewManager()

	// Open the persistent decoded-robot catalog. The server still works
	// without it; only the catalog endpoints degrade.
	var catalog *parser.Catalog
	catalog, err = parser.OpenCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		fmt.Printf("Warning: catalog disabled: %v\n", err)
		catalog = nil
	} else {
		defer catalog.Close()
		sessionMgr.SetCatalog(catalog)
	}

	// Install the user material palette if one is configured
	if cfg.Decoding.PalettePath != "" {
		data, err := os.ReadFile(cfg.Decoding.PalettePath)
		if err != nil {
			fmt.Printf("Warning: failed to read palette %s: %v\n", cfg.Decoding.PalettePath, err)
		} else if palette, err := parser.ParsePaletteFromBytes(data); err != nil {
			fmt.Printf("Warning: failed to parse palette %s: %v\n", cfg.Decoding.PalettePath, err)
		} else {
			sessionMgr.Registry().SetPalette(palette)
			fmt.Printf("Loaded material palette from %s\n", cfg.Decoding.PalettePath)
		}
	}

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Decoding.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.CleanupOldSessions(time.Duration(cfg.Decoding.SessionTimeoutMinutes) * time.Minute)
		}
	}()

	// Initialize API handler
	h := api.NewHandler(fileStore, sessionMgr, catalog)

	e := echo.New()
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") || path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.Contains(path, "/upload") ||
				strings.Contains(path, "/export")
		},
		ErrorMessage: "Request timeout - decode took too long",
	}))

	// Body limit and response compression
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	e.Use(middleware.Gzip())

	// CORS configuration
	if cfg.Server.EnableCORS {
		if embeddedMode {
			// In embedded mode, use config settings
			origins := strings.Split(cfg.Server.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
			if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
				origins = []string{"*"}
			}
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: origins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			}))
		} else {
			// Development mode - only allow localhost
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{
					"http://localhost:5173", "http://127.0.0.1:5173",
					"http://localhost:3000", "http://127.0.0.1:3000",
				},
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
		}
	}

	// API Routes
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", h.HandleHealth)
	apiGroup.GET("/formats", h.HandleGetFormats)

	// File management
	apiGroup.POST("/files/upload", h.HandleUploadFile)
	apiGroup.GET("/files/recent", h.HandleRecentFiles)
	apiGroup.GET("/files/:id", h.HandleGetFile)
	apiGroup.PUT("/files/:id", h.HandleRenameFile)

	// Conditional delete based on config
	if cfg.Security.AllowFileDeletion {
		apiGroup.DELETE("/files/:id", h.HandleDeleteFile)
	}

	// Decode sessions
	apiGroup.POST("/decode", h.HandleStartDecode)
	apiGroup.GET("/decode/:sessionId/status", h.HandleDecodeStatus)
	apiGroup.POST("/decode/:sessionId/keepalive", h.HandleSessionKeepAlive)
	apiGroup.GET("/decode/:sessionId/model", h.HandleGetModel)
	apiGroup.GET("/decode/:sessionId/model/msgpack", h.HandleGetModelMsgpack)
	apiGroup.GET("/decode/:sessionId/export", h.HandleExportURDF)

	// Material palette
	apiGroup.GET("/palette", h.HandleGetPalette)
	apiGroup.POST("/palette", h.HandleUploadPalette)

	// Decoded-robot catalog
	apiGroup.GET("/catalog/recent", h.HandleCatalogRecent)
	apiGroup.GET("/catalog/search", h.HandleCatalogSearch)

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			fmt.Println("Serving embedded frontend from binary")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	mode := "Development"
	if embeddedMode {
		mode = "Air-Gapped (Embedded)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Robot Workbench Server                          ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	e.Logger.Fatal(e.StartServer(s))
}
