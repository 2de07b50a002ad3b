package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hollis-dev/rollcall/internal/api"
	"github.com/hollis-dev/rollcall/internal/device"
	"github.com/hollis-dev/rollcall/internal/model"
	"github.com/hollis-dev/rollcall/internal/policy"
	"github.com/hollis-dev/rollcall/internal/session"
	"github.com/hollis-dev/rollcall/internal/store"
)

const (
	// verificationTTL bounds how long a face match can authorize a check-in.
	verificationTTL = 15 * time.Minute

	captureMaxDim  = 800
	captureQuality = 80
)

// Backend is the slice of the REST client the coordinator needs.
type Backend interface {
	CheckIn(ctx context.Context, req api.CheckInRequest) (*model.AttendanceRecord, error)
	CheckOut(ctx context.Context, req api.CheckOutRequest) (*model.AttendanceRecord, error)
	GetAttendance(ctx context.Context, id int64) (*model.AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, id int64, update api.AttendanceUpdate) (*model.AttendanceRecord, error)
	FaceCheckIn(ctx context.Context, image []byte, coords model.Coordinates) (*api.FaceCheckInResult, error)
	HasFaceImage(ctx context.Context) (bool, error)
}

// Notify is called after each successful state change so the kiosk display
// can update in real time. record is nil for events without one.
type Notify func(action string, record *model.AttendanceRecord)

// Status is a read-only snapshot for the kiosk display.
type Status struct {
	Active                *model.AttendanceRecord `json:"active"`
	Recent                []model.AttendanceRecord `json:"recent"`
	FaceVerified          bool                    `json:"face_verified"`
	VerificationExpiresAt *time.Time              `json:"verification_expires_at,omitempty"`
	Requirements          string                  `json:"requirements"`
}

// Coordinator drives the daily attendance state machine for the device
// account: NoSession -> Active -> NoSession. Every transition re-reads the
// backend before acting, and at most one transition runs at a time.
type Coordinator struct {
	backend Backend
	session *session.AttendanceSession
	cache   *store.VerificationStore
	flags   *store.FlagStore
	policy  policy.Config
	locator device.Locator
	camera  device.Camera
	notify  Notify
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	busy bool
}

func NewCoordinator(
	backend Backend,
	sess *session.AttendanceSession,
	cache *store.VerificationStore,
	flags *store.FlagStore,
	pol policy.Config,
	locator device.Locator,
	camera device.Camera,
	notify Notify,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		backend: backend,
		session: sess,
		cache:   cache,
		flags:   flags,
		policy:  pol,
		locator: locator,
		camera:  camera,
		notify:  notify,
		logger:  logger,
		now:     time.Now,
	}
}

// begin claims the single in-flight transition slot.
func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Coordinator) emit(action string, record *model.AttendanceRecord) {
	if c.notify != nil {
		c.notify(action, record)
	}
}

// CheckInGPS performs a GPS-only check-in.
func (c *Coordinator) CheckInGPS(ctx context.Context) (*model.AttendanceRecord, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	snap, err := c.session.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Active != nil {
		return nil, ErrAlreadyActive
	}

	coords, err := c.locator.Current(ctx)
	if err != nil {
		return nil, err
	}

	isLate := c.policy.IsCheckInLate(c.now())
	rec, err := c.backend.CheckIn(ctx, api.CheckInRequest{
		Latitude:  device.Round6(coords.Latitude),
		Longitude: device.Round6(coords.Longitude),
		Method:    model.MethodGPSOnly,
		IsLate:    &isLate,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("checked in", "attendance_id", rec.ID, "method", rec.Method, "is_late", isLate)
	c.emit("checked_in", rec)
	return rec, nil
}

// CheckInDual performs a face+GPS check-in by spending a previously cached
// verification result. The cache is consumed only once a record exists; a
// failed call leaves the verification usable for a retry.
func (c *Coordinator) CheckInDual(ctx context.Context) (*model.AttendanceRecord, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	snap, err := c.session.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Active != nil {
		// A pending verification is moot once a session is open.
		if err := c.cache.Clear(); err != nil {
			c.logger.Warn("clear stale verification", "error", err)
		}
		return nil, ErrAlreadyActive
	}

	verification, err := c.cache.Load()
	if err != nil {
		c.logger.Warn("load verification cache", "error", err)
		verification = nil
	}
	if verification == nil {
		return nil, ErrFaceVerificationRequired
	}

	// The face verification step may already have created a record on the
	// backend. Prefer upgrading it to dual verification over creating a
	// duplicate.
	if verification.ExistingAttendanceID != 0 {
		if rec := c.upgradeExisting(ctx, verification.ExistingAttendanceID); rec != nil {
			c.consumeCache()
			c.logger.Info("checked in", "attendance_id", rec.ID, "method", rec.Method, "upgraded", true)
			c.emit("checked_in", rec)
			return rec, nil
		}
	}

	coords, err := c.locator.Current(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := c.backend.CheckIn(ctx, api.CheckInRequest{
		Latitude:  device.Round6(coords.Latitude),
		Longitude: device.Round6(coords.Longitude),
		Method:    model.MethodFaceGPS,
		FaceVerification: &api.FaceVerificationPayload{
			Verified:   verification.Verified,
			Confidence: verification.Confidence,
			Timestamp:  verification.Timestamp,
		},
	})
	if err != nil {
		return nil, err
	}

	c.consumeCache()
	c.logger.Info("checked in", "attendance_id", rec.ID, "method", rec.Method)
	c.emit("checked_in", rec)
	return rec, nil
}

// upgradeExisting tries to PATCH a record created during face verification
// up to dual verification. Any failure falls back to a fresh check-in.
func (c *Coordinator) upgradeExisting(ctx context.Context, id int64) *model.AttendanceRecord {
	existing, err := c.backend.GetAttendance(ctx, id)
	if err != nil {
		c.logger.Warn("fetch existing attendance for upgrade", "attendance_id", id, "error", err)
		return nil
	}
	if !existing.Active() || !existing.BelongsTo(c.session.Identity().UserID, c.session.Identity().Email) {
		return nil
	}

	rec, err := c.backend.UpdateAttendance(ctx, id, api.AttendanceUpdate{Method: model.MethodFaceGPS})
	if err != nil {
		c.logger.Warn("upgrade verification method", "attendance_id", id, "error", err)
		return nil
	}
	return rec
}

func (c *Coordinator) consumeCache() {
	if _, err := c.cache.Consume(); err != nil {
		c.logger.Warn("consume verification cache", "error", err)
	}
}

// CaptureVerification runs the face verification capture: gate on a
// registered reference image, capture and shrink a frame, submit it with
// coordinates, and cache the successful result for verificationTTL.
func (c *Coordinator) CaptureVerification(ctx context.Context) (*model.VerificationResult, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	has, err := c.hasFaceImage(ctx)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNoFaceImage
	}

	frame, err := c.camera.Capture(ctx)
	if err != nil {
		return nil, err
	}
	frame, err = device.ShrinkJPEG(frame, captureMaxDim, captureQuality)
	if err != nil {
		return nil, fmt.Errorf("prepare capture: %w", err)
	}

	coords, err := c.locator.Current(ctx)
	if err != nil {
		return nil, err
	}
	coords.Latitude = device.Round6(coords.Latitude)
	coords.Longitude = device.Round6(coords.Longitude)

	match, err := c.backend.FaceCheckIn(ctx, frame, coords)
	if err != nil {
		return nil, err
	}
	if !match.Matched {
		return nil, fmt.Errorf("%w (confidence %.1f%%)", ErrFaceMismatch, match.Confidence)
	}

	now := c.now()
	result := model.VerificationResult{
		Verified:   true,
		Confidence: match.Confidence,
		Coords:     coords,
		Timestamp:  now,
		ExpiresAt:  now.Add(verificationTTL),
	}
	if match.Attendance != nil {
		result.ExistingAttendanceID = match.Attendance.ID
	}

	if err := c.cache.Save(result); err != nil {
		return nil, fmt.Errorf("store verification result: %w", err)
	}
	// A successful match proves the reference image exists.
	if err := c.flags.Set(store.HasFaceImageKey, true); err != nil {
		c.logger.Warn("cache face image flag", "error", err)
	}

	c.logger.Info("face verification stored",
		"confidence", result.Confidence, "expires_at", result.ExpiresAt,
		"existing_attendance_id", result.ExistingAttendanceID)
	c.emit("verification_stored", match.Attendance)
	return &result, nil
}

// hasFaceImage answers the reference-image gate from the local flag cache,
// probing the backend only when the flag has never been set.
func (c *Coordinator) hasFaceImage(ctx context.Context) (bool, error) {
	value, ok, err := c.flags.Get(store.HasFaceImageKey)
	if err != nil {
		c.logger.Warn("read face image flag", "error", err)
	} else if ok {
		return value, nil
	}

	has, err := c.backend.HasFaceImage(ctx)
	if err != nil {
		return false, err
	}
	if err := c.flags.Set(store.HasFaceImageKey, has); err != nil {
		c.logger.Warn("cache face image flag", "error", err)
	}
	return has, nil
}

// CheckOut closes the device account's active session. An early check-out
// (before end of day) is refused with ErrEarlyCheckoutConfirm until the
// caller retries with confirmEarly set.
func (c *Coordinator) CheckOut(ctx context.Context, confirmEarly bool) (*model.AttendanceRecord, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if c.policy.IsCheckOutEarly(c.now()) && !confirmEarly {
		return nil, ErrEarlyCheckoutConfirm
	}

	// Re-identify the active record; it must belong to this user, which the
	// session's identity filter guarantees.
	snap, err := c.session.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Active == nil {
		return nil, ErrNoActiveSession
	}

	coords, err := c.locator.Current(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := c.backend.CheckOut(ctx, api.CheckOutRequest{
		AttendanceID: snap.Active.ID,
		Latitude:     device.Round6(coords.Latitude),
		Longitude:    device.Round6(coords.Longitude),
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("checked out", "attendance_id", rec.ID)
	c.emit("checked_out", rec)
	return rec, nil
}

// Status reports the current session state for the kiosk display. It is a
// read, not a transition, so it does not take the in-flight slot.
func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	snap, err := c.session.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Active:       snap.Active,
		Recent:       snap.Recent,
		Requirements: c.policy.Requirements(),
	}

	if verification, err := c.cache.Load(); err != nil {
		c.logger.Warn("load verification cache", "error", err)
	} else if verification != nil {
		st.FaceVerified = true
		expires := verification.ExpiresAt
		st.VerificationExpiresAt = &expires
	}

	return st, nil
}
