package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"audiofeedback/internal/metrics"
	"audiofeedback/internal/models"
	"audiofeedback/internal/uploads"
	"audiofeedback/internal/worker"
)

// multipartOverhead is allowed on top of the file limit for boundaries and
// part headers.
const multipartOverhead = 1 << 20

const historyWriteTimeout = 2 * time.Second

type WorkerManager interface {
	Analyze(worker.AnalysisRequest) (*models.Features, error)
	Forget(ctx context.Context, digest string)
}

// HistoryStore persists analysis outcomes. It is optional.
type HistoryStore interface {
	RecordAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id int64) (*models.AnalysisRecord, error)
	DeleteAnalysis(ctx context.Context, id int64) (*models.AnalysisRecord, error)
}

// Handler wires HTTP routes to the upload store and the analysis workers.
type Handler struct {
	workers   WorkerManager
	uploads   *uploads.Store
	history   HistoryStore
	checks    []healthCheck
	maxUpload int64
	logger    *slog.Logger
}

// NewHandler constructs a Handler instance. maxUpload <= 0 disables the
// request size limit.
func NewHandler(workers WorkerManager, store *uploads.Store, maxUpload int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		workers:   workers,
		uploads:   store,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// WithHistory enables the history routes and per-upload records.
func (h *Handler) WithHistory(history HistoryStore) *Handler {
	h.history = history
	return h
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/upload/", h.uploadAudio)
	router.POST("/upload", h.uploadAudio)
	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if h.history != nil {
		router.GET("/analyses", h.listAnalyses)
		router.GET("/analyses/:id", h.getAnalysis)
		router.DELETE("/analyses/:id", h.deleteAnalysis)
	}
}

type uploadResponse struct {
	Filename string          `json:"filename"`
	Feedback models.Feedback `json:"feedback"`
}

func (h *Handler) uploadAudio(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}
	file, err := c.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		case errors.Is(err, http.ErrMissingFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		}
		return
	}

	upload, err := h.uploads.Save(file)
	if err != nil {
		if errors.Is(err, uploads.ErrTooLarge) {
			metrics.UploadsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		h.logger.Error("store upload failed", "filename", file.Filename, "error", err)
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeIOError).Inc()
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	defer h.uploads.Remove(upload)

	start := time.Now()
	features, err := h.workers.Analyze(worker.AnalysisRequest{
		Context:   c.Request.Context(),
		ClientKey: c.ClientIP(),
		Path:      upload.StoredPath,
		Digest:    upload.Digest,
	})
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeBusy).Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		return
	case errors.Is(err, worker.ErrManagerClosed):
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeBusy).Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	case err != nil && c.Request.Context().Err() != nil:
		h.logger.Info("client left before analysis finished", "filename", upload.FileName)
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeIOError).Inc()
		c.JSON(http.StatusOK, gin.H{"error": "request cancelled"})
		return
	}

	var feedback models.Feedback
	if err != nil {
		h.logger.Info("analysis failed", "filename", upload.FileName, "error", err)
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		feedback = models.FeedbackError(err)
	} else {
		metrics.UploadsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		feedback = models.Describe(features)
	}
	h.recordHistory(upload, features, feedback, elapsed)

	c.JSON(http.StatusOK, uploadResponse{Filename: upload.FileName, Feedback: feedback})
}

// recordHistory writes one row, detached from the request context so a
// departing client does not lose the record.
func (h *Handler) recordHistory(upload *models.TempUpload, features *models.Features, feedback models.Feedback, elapsed time.Duration) {
	if h.history == nil {
		return
	}
	rec := &models.AnalysisRecord{
		FileName:  upload.FileName,
		Size:      upload.Size,
		Digest:    upload.Digest,
		Status:    models.AnalysisOK,
		Error:     feedback.Error,
		ElapsedMS: elapsed.Milliseconds(),
	}
	if feedback.Failed() {
		rec.Status = models.AnalysisError
	} else if features != nil {
		rec.Tempo = features.Tempo
		rec.SpectralCentroid = features.SpectralCentroid
		rec.SpectralBandwidth = features.SpectralBandwidth
		rec.RMS = features.RMS
		rec.SampleRate = features.SampleRate
		rec.Channels = features.Channels
		rec.Duration = features.Duration
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := h.history.RecordAnalysis(ctx, rec); err != nil {
		h.logger.Warn("record analysis history failed", "filename", upload.FileName, "error", err)
	}
}
