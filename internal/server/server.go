package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hollis-dev/rollcall/internal/handler"
	"github.com/hollis-dev/rollcall/internal/middleware"
	ws "github.com/hollis-dev/rollcall/internal/websocket"
)

// Server assembles the local kiosk API: attendance operations, the status
// feed, and the WebSocket endpoint the displays subscribe to.
type Server struct {
	hub         *ws.Hub
	attendanceH *handler.AttendanceHandler
	auth        *middleware.Authenticator
	logger      *slog.Logger
}

func New(hub *ws.Hub, attendanceH *handler.AttendanceHandler, auth *middleware.Authenticator, logger *slog.Logger) *Server {
	return &Server{
		hub:         hub,
		attendanceH: attendanceH,
		auth:        auth,
		logger:      logger,
	}
}

// Hub returns the broadcast hub so the coordinator's notifications can be
// wired to it.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// API routes — wrapped with RequireAuth when an API secret is configured
	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)
	if s.auth != nil {
		outerMux.Handle("/", s.auth.RequireAuth(apiMux))
	} else {
		outerMux.Handle("/", apiMux)
	}

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"displays": s.hub.ClientCount(),
	})
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Attendance API routes
	mux.HandleFunc("POST /api/checkin", s.attendanceH.CheckIn)
	mux.HandleFunc("POST /api/checkin/dual", s.attendanceH.CheckInDual)
	mux.HandleFunc("POST /api/verify", s.attendanceH.Verify)
	mux.HandleFunc("POST /api/checkout", s.attendanceH.CheckOut)
	mux.HandleFunc("GET /api/status", s.attendanceH.Status)
	mux.HandleFunc("GET /api/summary", s.attendanceH.Summary)

	// WebSocket event feed
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
