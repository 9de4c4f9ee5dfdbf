package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustmesh/internal/ledger"
	"go.uber.org/zap"
)

// LedgerHandler exposes read-only HTTP endpoints for the audit ledger.
type LedgerHandler struct {
	ledger       ledger.Ledger
	checkpointer *ledger.Checkpointer
	logger       *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler. checkpointer may be nil, in
// which case the checkpoint routes are not mounted.
func NewLedgerHandler(l ledger.Ledger, checkpointer *ledger.Checkpointer, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, checkpointer: checkpointer, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/blocks", h.Export)
		l.GET("/blocks/:idx", h.GetBlock)
		l.GET("/verify", h.Verify)
		if h.checkpointer != nil {
			l.GET("/checkpoint", h.IssueCheckpoint)
			l.POST("/checkpoint/verify", h.VerifyCheckpoint)
		}
	}
}

// Overview handles GET /ledger: returns the chain length and current root hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.ledger.Len(ctx)
	if err != nil {
		h.logger.Error("ledger Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	root, err := h.ledger.Root(ctx)
	if err != nil {
		h.logger.Error("ledger Root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger root"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blocks": count,
		"root":   root,
	})
}

// Export handles GET /ledger/blocks: returns every block in order.
func (h *LedgerHandler) Export(c *gin.Context) {
	views, err := h.ledger.Export(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger Export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export ledger"})
		return
	}
	c.JSON(http.StatusOK, views)
}

// Verify handles GET /ledger/verify: walks the full chain and reports integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	err := h.ledger.Verify(c.Request.Context())
	valid, storeErr := ledger.Valid(err)
	if storeErr != nil {
		h.logger.Error("ledger Verify", zap.Error(storeErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}
	if !valid {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// GetBlock handles GET /ledger/blocks/:idx: returns a single block.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	b, err := h.ledger.Get(c.Request.Context(), idx)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	if err != nil {
		h.logger.Error("ledger Get", zap.Int("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	c.JSON(http.StatusOK, b.View())
}

// IssueCheckpoint handles GET /ledger/checkpoint: signs the current tip.
func (h *LedgerHandler) IssueCheckpoint(c *gin.Context) {
	token, claims, err := h.checkpointer.Issue(c.Request.Context())
	if err != nil {
		h.logger.Error("issue checkpoint", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue checkpoint"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"length":     claims.Length,
		"root":       claims.Root,
		"expires_at": claims.ExpiresAt.Time,
	})
}

type verifyCheckpointRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyCheckpoint handles POST /ledger/checkpoint/verify.
func (h *LedgerHandler) VerifyCheckpoint(c *gin.Context) {
	var req verifyCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	claims, err := h.checkpointer.Verify(c.Request.Context(), req.Token)
	switch {
	case errors.Is(err, ledger.ErrCheckpointMismatch):
		h.logger.Warn("checkpoint mismatch", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "length": claims.Length, "error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"valid": true, "length": claims.Length, "root": claims.Root})
	}
}
