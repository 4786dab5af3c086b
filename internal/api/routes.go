package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/tractrelay/domain/repositories"
	"github.com/satriahrh/tractrelay/internal/auth"
	"github.com/satriahrh/tractrelay/internal/metrics"
	"github.com/satriahrh/tractrelay/internal/websocket"
	"github.com/satriahrh/tractrelay/usecase"
)

// MaxRecordDuration caps POST /api/v1/relay/record.
const MaxRecordDuration = time.Minute

// Dependencies are the components the HTTP surface reads from. Hub, Peer,
// Archive and Metrics may be nil.
type Dependencies struct {
	Relay   *usecase.RelayService
	Hub     *websocket.Hub
	Peer    *websocket.Peer
	Archive repositories.CaptureArchive
	Metrics *metrics.Collector

	HubPath      string
	JWTSecret    []byte
	StaticDir    string
	SampleFormat string
	Framing      string
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "tractrelay",
		})
	})

	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/relay/status", func(c echo.Context) error {
		return relayStatus(c, deps)
	})
	v1.POST("/relay/record", func(c echo.Context) error {
		return relayRecord(c, deps.Relay, logger)
	})

	if deps.Archive != nil {
		v1.GET("/captures", func(c echo.Context) error {
			return listCaptures(c, deps.Archive, logger)
		})
		v1.GET("/captures/:id", func(c echo.Context) error {
			return getCapture(c, deps.Archive, logger)
		})
	}

	if deps.Hub != nil {
		path := deps.HubPath
		if path == "" {
			path = "/ws"
		}
		e.GET(path, func(c echo.Context) error {
			return websocketWithAuth(deps.Hub, c, deps.JWTSecret, logger)
		})
	}

	if deps.StaticDir != "" {
		e.Static("/", deps.StaticDir)
	}
}

func relayStatus(c echo.Context, deps Dependencies) error {
	resp := StatusResponse{
		State:        deps.Relay.State(),
		Current:      deps.Relay.Current(),
		Last:         deps.Relay.Last(),
		SampleFormat: deps.SampleFormat,
		Framing:      deps.Framing,
	}
	if deps.Peer != nil {
		resp.PeerConnected = deps.Peer.Connected()
	}
	if deps.Hub != nil {
		resp.HubClients = deps.Hub.ClientCount()
	}
	return c.JSON(http.StatusOK, resp)
}

// relayRecord runs a capture-only session and responds when it is done.
func relayRecord(c echo.Context, relay *usecase.RelayService, logger *zap.Logger) error {
	duration := usecase.DefaultRecordDuration
	if v := c.QueryParam("duration_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_duration",
				Message: "duration_ms must be a positive integer",
			})
		}
		duration = time.Duration(ms) * time.Millisecond
	}
	if duration > MaxRecordDuration {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_duration",
			Message: "duration_ms exceeds " + MaxRecordDuration.String(),
		})
	}

	// The session outlives a dropped HTTP client.
	ctx := context.WithoutCancel(c.Request().Context())
	done, err := relay.Record(ctx, duration)
	if errors.Is(err, usecase.ErrSessionActive) {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "session_active",
			Message: "A capture session is already running",
		})
	}
	if err != nil {
		logger.Error("Failed to start record session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "record_failed",
			Message: err.Error(),
		})
	}

	resp := RecordResponse{}
	status := http.StatusOK
	if err := <-done; err != nil {
		resp.Error = err.Error()
		status = http.StatusBadGateway
	}
	resp.Session = relay.Last()
	return c.JSON(status, resp)
}

func listCaptures(c echo.Context, archive repositories.CaptureArchive, logger *zap.Logger) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = n
	}

	records, err := archive.List(c.Request().Context(), limit)
	if err != nil {
		logger.Error("Failed to list captures", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "archive_error",
			Message: "Failed to list captures",
		})
	}
	return c.JSON(http.StatusOK, CaptureListResponse{Captures: records})
}

// getCapture returns the capture metadata, or the raw payload when the
// client asks for application/octet-stream.
func getCapture(c echo.Context, archive repositories.CaptureArchive, logger *zap.Logger) error {
	record, err := archive.GetBySessionID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repositories.ErrCaptureNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No capture for this session",
		})
	}
	if err != nil {
		logger.Error("Failed to get capture", zap.String("sessionID", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "archive_error",
			Message: "Failed to get capture",
		})
	}

	if c.Request().Header.Get(echo.HeaderAccept) == echo.MIMEOctetStream {
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, record.Payload)
	}
	return c.JSON(http.StatusOK, record)
}

// websocketWithAuth attaches a hub client. When a secret is configured the
// client must present a valid peer token.
func websocketWithAuth(hub *websocket.Hub, c echo.Context, secret []byte, logger *zap.Logger) error {
	if len(secret) == 0 {
		return websocket.HandleWebSocket(hub, c, "", "")
	}

	token := auth.TokenFromRequest(c.Request())
	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header or token query",
		})
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("peer_id", claims.PeerID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocket(hub, c, claims.PeerID, claims.Role)
}
