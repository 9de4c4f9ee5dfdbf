package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustmesh/internal/discovery"
	"github.com/jmerrifield20/trustmesh/internal/trust"
	"go.uber.org/zap"
)

// AutoDiscoveredKey is the public key recorded for hosts enrolled by a sweep.
const AutoDiscoveredKey = "auto_discovered"

// Discoverer finds live hosts in a target range.
type Discoverer interface {
	Discover(ctx context.Context, target string) ([]discovery.Host, error)
}

// DiscoveryHandler sweeps a network range and enrolls hosts it has not seen.
type DiscoveryHandler struct {
	discoverer    Discoverer
	engine        *trust.Engine
	defaultTarget string
	logger        *zap.Logger
}

// NewDiscoveryHandler creates a new DiscoveryHandler.
func NewDiscoveryHandler(d Discoverer, engine *trust.Engine, defaultTarget string, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{discoverer: d, engine: engine, defaultTarget: defaultTarget, logger: logger}
}

// Register mounts the discovery route on the given router group.
func (h *DiscoveryHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/discover", h.Discover)
}

// Discover handles POST /discover?target=<ip-or-cidr>.
func (h *DiscoveryHandler) Discover(c *gin.Context) {
	ctx := c.Request.Context()
	target := c.DefaultQuery("target", h.defaultTarget)

	hosts, err := h.discoverer.Discover(ctx, target)
	if errors.Is(err, discovery.ErrInvalidTarget) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("discovery sweep", zap.String("target", target), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "discovery sweep failed"})
		return
	}

	registered := []string{}
	for _, host := range hosts {
		id := host.DeviceID()
		if _, known := h.engine.TrustOf(id); known {
			continue
		}
		if _, err := h.engine.Register(ctx, id, AutoDiscoveredKey); err != nil {
			h.logger.Error("enroll discovered host", zap.String("device_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enroll discovered host"})
			return
		}
		RecordRegistration()
		registered = append(registered, id)
	}

	if hosts == nil {
		hosts = []discovery.Host{}
	}
	c.JSON(http.StatusOK, gin.H{
		"discovered": hosts,
		"registered": registered,
	})
}
