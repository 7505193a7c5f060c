package http

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
	"weylus/internal/infrastructure/keepalive"
	"weylus/internal/infrastructure/render"
	"weylus/pkg/errors"
	"weylus/pkg/result"
	"weylus/pkg/validation"

	"github.com/gin-gonic/gin"
)

// maxInputBatch bounds the samples accepted by one input request.
const maxInputBatch = 256

// SessionController is the part of the connection manager the control API
// drives.
type SessionController interface {
	State() domain.ConnectionState
	SessionID() string
	Connect(serverURL, accessCode string) domain.ConnectionState
	Disconnect() domain.ConnectionState
	SendInput(sample domain.InputSample) bool
}

type PerformanceSource interface {
	Latest() domain.PerformanceMetrics
}

type VideoConfigSource interface {
	CurrentConfig() domain.VideoConfig
}

type RenderStatsSource interface {
	Stats() render.Stats
}

// KeepAliveControl exposes the keep-alive status surface and its disconnect
// action.
type KeepAliveControl interface {
	Status() keepalive.Status
	RequestDisconnect() bool
}

type SessionStatus struct {
	State     string             `json:"state"`
	ServerURL string             `json:"server_url,omitempty"`
	SessionID string             `json:"session_id"`
	Video     domain.VideoConfig `json:"video"`
}

type PerformanceReport struct {
	domain.PerformanceMetrics
	DropRate float64       `json:"drop_rate_percent"`
	Quality  string        `json:"quality"`
	Render   *render.Stats `json:"render,omitempty"`
}

type InputReport struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

type SessionHandler struct {
	session     SessionController
	performance PerformanceSource
	video       VideoConfigSource
	settings    ports.SettingsStore
	renderer    RenderStatsSource
	keepAlive   KeepAliveControl
}

// NewSessionHandler wires the control API. renderer and keepAlive may be nil.
func NewSessionHandler(
	session SessionController,
	performance PerformanceSource,
	video VideoConfigSource,
	settings ports.SettingsStore,
	renderer RenderStatsSource,
	keepAlive KeepAliveControl,
) *SessionHandler {
	return &SessionHandler{
		session:     session,
		performance: performance,
		video:       video,
		settings:    settings,
		renderer:    renderer,
		keepAlive:   keepAlive,
	}
}

func (h *SessionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/session", h.GetSession)
	api.POST("/session/connect", h.Connect)
	api.POST("/session/disconnect", h.Disconnect)
	api.POST("/session/input", h.SendInput)
	api.GET("/performance", h.GetPerformance)
	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.UpdateSettings)
	api.DELETE("/settings", h.ClearSettings)
	api.GET("/servers", h.ListServers)
	api.GET("/keepalive", h.GetKeepAlive)
	api.POST("/keepalive/disconnect", h.KeepAliveDisconnect)
}

// stateResult renders a connection state: transitional states are Loading,
// the Error state carries its cause.
func (h *SessionHandler) stateResult(state domain.ConnectionState) (int, result.Result[SessionStatus]) {
	switch state.Kind {
	case domain.StateConnecting, domain.StateDisconnecting:
		return http.StatusAccepted, result.Loading[SessionStatus]()
	case domain.StateError:
		appErr := errors.FromState(state)
		return appErr.HTTPStatus, result.Error[SessionStatus](appErr, appErr.Message)
	default:
		return http.StatusOK, result.Success(SessionStatus{
			State:     state.Kind.String(),
			ServerURL: state.ServerURL,
			SessionID: h.session.SessionID(),
			Video:     h.video.CurrentConfig(),
		})
	}
}

func (h *SessionHandler) respondState(c *gin.Context, state domain.ConnectionState) {
	status, res := h.stateResult(state)
	c.JSON(status, res)
}

func fail[T any](c *gin.Context, err error) {
	appErr := errors.FromSessionError(err)
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus, result.Error[T](appErr, appErr.Message))
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	h.respondState(c, h.session.State())
}

func (h *SessionHandler) Connect(c *gin.Context) {
	var req struct {
		URL        string `json:"url"`
		AccessCode string `json:"access_code"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail[SessionStatus](c, errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	if req.URL == "" {
		saved, err := h.settings.Load(c.Request.Context())
		if err != nil {
			fail[SessionStatus](c, fmt.Errorf("%w: %v", domain.ErrSettingsStore, err))
			return
		}
		req.URL = saved.ServerURL
		if req.AccessCode == "" {
			req.AccessCode = saved.AccessCode
		}
	}

	if err := validation.ValidateServerURL(req.URL); err != nil {
		fail[SessionStatus](c, errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateAccessCode(req.AccessCode); err != nil {
		fail[SessionStatus](c, errors.NewInvalidInputError(err.Error()))
		return
	}

	h.respondState(c, h.session.Connect(req.URL, req.AccessCode))
}

func (h *SessionHandler) Disconnect(c *gin.Context) {
	h.respondState(c, h.session.Disconnect())
}

func (h *SessionHandler) SendInput(c *gin.Context) {
	var req struct {
		Samples []domain.InputSample `json:"samples" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail[InputReport](c, errors.NewInvalidInputError(err.Error()))
		return
	}
	if len(req.Samples) > maxInputBatch {
		fail[InputReport](c, errors.NewInvalidInputError(fmt.Sprintf("too many samples (max %d)", maxInputBatch)))
		return
	}
	if !h.session.State().IsConnected() {
		fail[InputReport](c, domain.ErrNotConnected)
		return
	}

	var report InputReport
	for _, sample := range req.Samples {
		if h.session.SendInput(sample) {
			report.Accepted++
		} else {
			report.Rejected++
		}
	}
	c.JSON(http.StatusOK, result.Success(report))
}

func (h *SessionHandler) GetPerformance(c *gin.Context) {
	latest := h.performance.Latest()
	report := PerformanceReport{
		PerformanceMetrics: latest,
		DropRate:           latest.DropRate(),
		Quality:            h.video.CurrentConfig().Quality.String(),
	}
	if h.renderer != nil {
		stats := h.renderer.Stats()
		report.Render = &stats
	}
	c.JSON(http.StatusOK, result.Success(report))
}

func (h *SessionHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		fail[domain.Settings](c, fmt.Errorf("%w: %v", domain.ErrSettingsStore, err))
		return
	}
	c.JSON(http.StatusOK, result.Success(settings))
}

// UpdateSettings replaces the stored settings. The running session picks the
// change up through the store's change notifications.
func (h *SessionHandler) UpdateSettings(c *gin.Context) {
	var settings domain.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		fail[domain.Settings](c, errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validateSettings(settings); err != nil {
		fail[domain.Settings](c, errors.NewInvalidInputError(err.Error()))
		return
	}

	ctx := c.Request.Context()
	current, err := h.settings.Load(ctx)
	if err != nil {
		fail[domain.Settings](c, fmt.Errorf("%w: %v", domain.ErrSettingsStore, err))
		return
	}
	if settings.Servers == nil {
		settings.Servers = current.Servers
	}

	if err := h.settings.Save(ctx, settings); err != nil {
		fail[domain.Settings](c, fmt.Errorf("%w: %v", domain.ErrSettingsStore, err))
		return
	}
	c.JSON(http.StatusOK, result.Success(settings))
}

func (h *SessionHandler) ClearSettings(c *gin.Context) {
	if err := h.settings.Clear(c.Request.Context()); err != nil {
		fail[struct{}](c, fmt.Errorf("%w: %v", domain.ErrSettingsStore, err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) ListServers(c *gin.Context) {
	settings, err := h.settings.Load(c.Request.Context())
	if err != nil {
		fail[[]domain.ServerConnection](c, fmt.Errorf("%w: %v", domain.ErrSettingsStore, err))
		return
	}
	servers := settings.Servers
	if servers == nil {
		servers = []domain.ServerConnection{}
	}
	c.JSON(http.StatusOK, result.Success(servers))
}

func (h *SessionHandler) GetKeepAlive(c *gin.Context) {
	if h.keepAlive == nil {
		fail[keepalive.Status](c, errors.NewServiceUnavailableError("keep-alive not configured"))
		return
	}
	c.JSON(http.StatusOK, result.Success(h.keepAlive.Status()))
}

// KeepAliveDisconnect triggers the keep-alive's disconnect action, the same
// path a user takes from the status surface.
func (h *SessionHandler) KeepAliveDisconnect(c *gin.Context) {
	if h.keepAlive == nil {
		fail[struct{}](c, errors.NewServiceUnavailableError("keep-alive not configured"))
		return
	}
	if !h.keepAlive.RequestDisconnect() {
		fail[struct{}](c, errors.NewNotConnectedError())
		return
	}
	c.JSON(http.StatusAccepted, result.Loading[struct{}]())
}

func validateSettings(s domain.Settings) error {
	var errs []error
	if s.ServerURL != "" {
		errs = append(errs, validation.ValidateServerURL(s.ServerURL))
	}
	errs = append(errs,
		validation.ValidateAccessCode(s.AccessCode),
		validation.ValidateSensitivity(s.PalmRejection.Sensitivity),
		validation.ValidateVideoConfig(s.Video),
	)
	if s.PressureGamma <= 0 {
		errs = append(errs, fmt.Errorf("pressure gamma must be > 0"))
	}
	return stderrors.Join(errs...)
}
