package api

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/intake"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/queue"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Handler struct {
	store    *store.Store
	intake   *intake.Service
	producer *queue.Producer
	cfg      *config.Config
	log      zerolog.Logger
}

func NewHandler(
	st *store.Store,
	producer *queue.Producer,
	cfg *config.Config,
) *Handler {
	return &Handler{
		store:    st,
		intake:   intake.NewService(cfg, st),
		producer: producer,
		cfg:      cfg,
		log:      logger.Get(),
	}
}

type submitObservationRequest struct {
	Tenant          string                `json:"tenant" binding:"required"`
	StationID       int64                 `json:"station_id"`
	StationName     string                `json:"station_name"`
	ObservationTime string                `json:"observation_time"`
	Records         []model.MeasuredValue `json:"records"`
	DuplicatePolicy string                `json:"duplicate_policy"`
	Reason          string                `json:"reason"`
}

func (h *Handler) SubmitObservation(c *gin.Context) {
	var req submitObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	obs, err := h.intake.QueueSubmit(c.Request.Context(), intake.SubmitInput{
		Tenant:          req.Tenant,
		StationID:       req.StationID,
		StationName:     req.StationName,
		RequestedLocal:  req.ObservationTime,
		Records:         req.Records,
		DuplicatePolicy: req.DuplicatePolicy,
		Reason:          req.Reason,
	})
	if err != nil {
		var schedErr errors.ScheduleError
		var valErr errors.ValidationError
		switch {
		case stderrors.As(err, &schedErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": schedErr.Reason})
		case stderrors.As(err, &valErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error()})
		case stderrors.Is(err, errors.ErrUnknownStation):
			c.JSON(http.StatusNotFound, gin.H{"error": "Station not found"})
		default:
			h.log.Error().Err(err).Str("tenant", req.Tenant).Msg("Failed to queue observation")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	// Fire a drain attempt right away; the periodic pass covers offline.
	job := model.DrainJob{Tenant: obs.Tenant}
	if err := h.producer.EnqueueDrainJob(c.Request.Context(), job); err != nil {
		h.log.Warn().Err(err).Str("tenant", obs.Tenant).Msg("Failed to enqueue drain job")
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":     "Observation queued",
		"observation": obs,
	})
}

type observationKeyRequest struct {
	Tenant       string    `json:"tenant" binding:"required"`
	StationID    int64     `json:"station_id" binding:"required"`
	ScheduledUTC time.Time `json:"scheduled_utc" binding:"required"`
}

func (h *Handler) RetryObservation(c *gin.Context) {
	var req observationKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	key := model.ObservationKey{Tenant: req.Tenant, StationID: req.StationID, ScheduledUTC: req.ScheduledUTC}
	if err := h.store.Retry(c.Request.Context(), key); err != nil {
		if stderrors.Is(err, errors.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "Record is not in a retryable state"})
			return
		}
		h.log.Error().Err(err).Str("key", key.String()).Msg("Failed to retry observation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Observation requeued"})
}

func (h *Handler) GetQueueStatus(c *gin.Context) {
	tenant := c.Param("tenant")
	if _, ok := h.cfg.Tenant(tenant); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant"})
		return
	}

	status, err := h.store.QueueStatus(c.Request.Context(), tenant)
	if err != nil {
		h.log.Error().Err(err).Str("tenant", tenant).Msg("Failed to get queue status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, status)
}

type triggerSyncRequest struct {
	Tenant   string `json:"tenant" binding:"required"`
	Endpoint string `json:"endpoint"`
}

func (h *Handler) TriggerSync(c *gin.Context) {
	var req triggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, ok := h.cfg.Tenant(req.Tenant); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant"})
		return
	}

	job := model.DrainJob{Tenant: req.Tenant, Endpoint: req.Endpoint}
	if err := h.producer.EnqueueDrainJob(c.Request.Context(), job); err != nil {
		h.log.Error().Err(err).Str("tenant", req.Tenant).Msg("Failed to enqueue drain job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue drain job"})
		return
	}

	h.log.Info().Str("tenant", req.Tenant).Msg("Drain job enqueued")
	c.JSON(http.StatusOK, gin.H{"message": "Drain job queued successfully", "job": job})
}

type registerImportRequest struct {
	Tenant    string `json:"tenant" binding:"required"`
	ObjectKey string `json:"object_key" binding:"required"`
}

func (h *Handler) RegisterImport(c *gin.Context) {
	var req registerImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, ok := h.cfg.Tenant(req.Tenant); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant"})
		return
	}

	now := time.Now().UTC()
	imp := &model.ImportFile{
		ID:        uuid.NewString(),
		Tenant:    req.Tenant,
		ObjectKey: req.ObjectKey,
		Status:    model.ImportStatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateImport(c.Request.Context(), imp); err != nil {
		h.log.Error().Err(err).Str("tenant", req.Tenant).Msg("Failed to create import record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	job := model.IngestionJob{ImportID: imp.ID, Tenant: imp.Tenant, ObjectKey: imp.ObjectKey}
	if err := h.producer.EnqueueIngestionJob(c.Request.Context(), job); err != nil {
		h.log.Error().Err(err).Str("import_id", imp.ID).Msg("Failed to enqueue ingestion job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue ingestion job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Import queued", "import": imp})
}

type seedTokensRequest struct {
	Tenant       string  `json:"tenant" binding:"required"`
	AccessToken  string  `json:"access_token" binding:"required"`
	RefreshToken *string `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in" binding:"required"`
}

// SeedTokens stores the token pair obtained from an interactive login so
// background uploads can run unattended from then on.
func (h *Handler) SeedTokens(c *gin.Context) {
	var req seedTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, ok := h.cfg.Tenant(req.Tenant); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant"})
		return
	}

	expiresAt := time.Now().UTC().Add(time.Duration(req.ExpiresIn) * time.Second)
	if err := h.store.SaveTokens(c.Request.Context(), req.Tenant, req.AccessToken, req.RefreshToken, expiresAt); err != nil {
		h.log.Error().Err(err).Str("tenant", req.Tenant).Msg("Failed to save tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tokens saved"})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
