package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hollis-dev/rollcall/internal/api"
	"github.com/hollis-dev/rollcall/internal/auth"
	"github.com/hollis-dev/rollcall/internal/checkin"
	"github.com/hollis-dev/rollcall/internal/database"
	"github.com/hollis-dev/rollcall/internal/device"
	"github.com/hollis-dev/rollcall/internal/handler"
	"github.com/hollis-dev/rollcall/internal/logging"
	"github.com/hollis-dev/rollcall/internal/middleware"
	"github.com/hollis-dev/rollcall/internal/model"
	"github.com/hollis-dev/rollcall/internal/policy"
	"github.com/hollis-dev/rollcall/internal/server"
	"github.com/hollis-dev/rollcall/internal/session"
	"github.com/hollis-dev/rollcall/internal/store"
	ws "github.com/hollis-dev/rollcall/internal/websocket"
)

func main() {
	mintToken := flag.String("mint-token", "", "mint a kiosk API token for the named display and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("ROLLCALL_LOG_LEVEL"))

	apiSecret := os.Getenv("ROLLCALL_API_SECRET")

	if *mintToken != "" {
		if apiSecret == "" {
			log.Fatal("ROLLCALL_API_SECRET is required to mint tokens")
		}
		token, err := middleware.NewAuthenticator(apiSecret).MintToken(*mintToken, 365*24*time.Hour)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(token)
		return
	}

	port := envDefault("ROLLCALL_PORT", "8080")
	dbPath := envDefault("ROLLCALL_DB_PATH", "rollcall.db")

	backendURL := os.Getenv("ROLLCALL_BACKEND_URL")
	if backendURL == "" {
		log.Fatal("ROLLCALL_BACKEND_URL is required")
	}
	email := os.Getenv("ROLLCALL_EMAIL")
	password := os.Getenv("ROLLCALL_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ROLLCALL_EMAIL and ROLLCALL_PASSWORD are required")
	}
	cacheSecret := os.Getenv("ROLLCALL_CACHE_SECRET")
	if cacheSecret == "" {
		log.Fatal("ROLLCALL_CACHE_SECRET is required")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	client := api.NewClient(api.Config{BaseURL: backendURL}, logger.With("component", "api"))

	loginCtx, cancelLogin := context.WithTimeout(context.Background(), 30*time.Second)
	login, err := client.Login(loginCtx, email, password)
	cancelLogin()
	if err != nil {
		log.Fatalf("backend login: %v", err)
	}
	identity := auth.Session{
		UserID:  login.UserID,
		Email:   login.Email,
		Token:   login.Token,
		IsStaff: login.IsStaff,
	}
	logger.Info("logged in", "user_id", identity.UserID, "email", identity.Email)

	pol := loadPolicy()
	locator := device.FixedLocator{Coords: model.Coordinates{
		Latitude:  envFloat("ROLLCALL_LATITUDE"),
		Longitude: envFloat("ROLLCALL_LONGITUDE"),
	}}
	camera := device.FileCamera{Path: envDefault("ROLLCALL_CAMERA_FRAME", "/tmp/rollcall-frame.jpg")}

	hub := ws.NewHub(logger.With("component", "websocket"))

	coordinator := checkin.NewCoordinator(
		client,
		session.New(client, identity, logger.With("component", "session")),
		store.NewVerificationStore(db, cacheSecret),
		store.NewFlagStore(db),
		pol,
		locator,
		camera,
		func(action string, record *model.AttendanceRecord) {
			hub.Broadcast(ws.NewEvent(action, record))
		},
		logger.With("component", "checkin"),
	)

	var authenticator *middleware.Authenticator
	if apiSecret != "" {
		authenticator = middleware.NewAuthenticator(apiSecret)
	} else {
		logger.Warn("ROLLCALL_API_SECRET not set, local API is unauthenticated")
	}

	attendanceH := handler.NewAttendanceHandler(coordinator, client, logger.With("component", "attendance"))
	srv := server.New(hub, attendanceH, authenticator, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("rollcall agent running", "addr", "http://localhost:"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}

	logoutCtx, cancelLogout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelLogout()
	if err := client.Logout(logoutCtx); err != nil {
		logger.Warn("backend logout", "error", err)
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}

// loadPolicy builds the workday policy from the environment, falling back to
// the defaults for anything unset or malformed. Times are "HH:MM".
func loadPolicy() policy.Config {
	pol := policy.Default()
	if h, m, ok := parseClock(os.Getenv("ROLLCALL_CHECKIN_DEADLINE")); ok {
		pol.CheckInHour, pol.CheckInMinute = h, m
	}
	if v, err := strconv.Atoi(os.Getenv("ROLLCALL_GRACE_MINUTES")); err == nil && v >= 0 {
		pol.GracePeriodMinutes = v
	}
	if h, m, ok := parseClock(os.Getenv("ROLLCALL_CHECKOUT_AFTER")); ok {
		pol.CheckOutHour, pol.CheckOutMinute = h, m
	}
	return pol
}

func parseClock(s string) (hour, minute int, ok bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
