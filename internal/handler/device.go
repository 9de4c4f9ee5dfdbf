package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustmesh/internal/model"
	"github.com/jmerrifield20/trustmesh/internal/trust"
	"go.uber.org/zap"
)

// DeviceHandler exposes registration, alert intake and trust queries.
type DeviceHandler struct {
	engine *trust.Engine
	logger *zap.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(engine *trust.Engine, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{engine: engine, logger: logger}
}

// Register mounts the device routes on the given router group.
func (h *DeviceHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/register", h.RegisterDevice)
	rg.POST("/alert", h.ReceiveAlert)
	rg.POST("/evaluate", h.Evaluate)
	rg.GET("/devices", h.ListDevices)
	rg.GET("/trust/:device_id", h.GetTrust)
	rg.POST("/log_test", h.LogTest)
}

// RegisterDevice handles POST /register.
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing device_id"})
		return
	}

	cred, err := h.engine.Register(c.Request.Context(), req.DeviceID, req.PublicKey)
	if err != nil {
		h.logger.Error("register device", zap.String("device_id", req.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}
	RecordRegistration()

	c.JSON(http.StatusCreated, gin.H{
		"certificate": cred,
		"public_key":  cred.PublicKey,
	})
}

// ReceiveAlert handles POST /alert: the fast-path classifier.
func (h *DeviceHandler) ReceiveAlert(c *gin.Context) {
	var alert model.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert body"})
		return
	}

	out, err := h.engine.ReceiveAlert(c.Request.Context(), alert)
	if err != nil {
		h.logger.Error("receive alert", zap.String("device_id", alert.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record alert"})
		return
	}

	if out.Accepted {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected", "reason": out.Reason})
}

// Evaluate handles POST /evaluate: the heuristic evaluation pipeline.
func (h *DeviceHandler) Evaluate(c *gin.Context) {
	var alert model.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert body"})
		return
	}
	if alert.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing device_id"})
		return
	}

	err := h.engine.EvaluateAndUpdate(c.Request.Context(), alert.DeviceID, alert)
	if errors.Is(err, trust.ErrUnknownDevice) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if err != nil {
		h.logger.Error("evaluate alert", zap.String("device_id", alert.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evaluate alert"})
		return
	}

	st, _ := h.engine.Status(alert.DeviceID)
	c.JSON(http.StatusOK, st)
}

// ListDevices handles GET /devices.
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices := h.engine.ListDevices()
	revoked := 0
	for _, d := range devices {
		if d.Revoked {
			revoked++
		}
	}
	SetDevicesGauge("active", float64(len(devices)-revoked))
	SetDevicesGauge("revoked", float64(revoked))
	c.JSON(http.StatusOK, devices)
}

// GetTrust handles GET /trust/:device_id.
func (h *DeviceHandler) GetTrust(c *gin.Context) {
	id := c.Param("device_id")
	score, ok := h.engine.TrustOf(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device_id": id, "trust": score})
}

// LogTest handles POST /log_test: records an external test outcome in the ledger.
func (h *DeviceHandler) LogTest(c *gin.Context) {
	var req model.TestResult
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	b, err := h.engine.LogTestResult(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("log test result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log test result"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged", "index": b.Index})
}
