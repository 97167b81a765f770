package middleware

import (
	"context"
	"log"
	"time"

	"github.com/aman-churiwal/admission-gateway/internal/models"
	"github.com/aman-churiwal/admission-gateway/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger records every gateway request, including the admission
// outcome, in batched async inserts. It is a constructed component with
// an explicit lifecycle; nothing starts at import time.
type RequestLogger struct {
	repo       *repository.RequestLogRepository
	entries    chan models.RequestLog
	batchSize  int
	flushEvery time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewRequestLogger(repo *repository.RequestLogRepository, bufferSize int) *RequestLogger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	return &RequestLogger{
		repo:       repo,
		entries:    make(chan models.RequestLog, bufferSize),
		batchSize:  100,
		flushEvery: 5 * time.Second,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start launches the background batch writer.
func (l *RequestLogger) Start() {
	go l.run()
}

// Stop flushes pending entries and halts the writer.
func (l *RequestLogger) Stop() {
	close(l.stopChan)
	<-l.doneChan
}

func (l *RequestLogger) run() {
	defer close(l.doneChan)

	batch := make([]*models.RequestLog, 0, l.batchSize)
	ticker := time.NewTicker(l.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.repo.CreateBatch(ctx, batch); err != nil {
			log.Printf("Failed to insert request logs: %v", err)
		}
		cancel()

		batch = make([]*models.RequestLog, 0, l.batchSize)
	}

	for {
		select {
		case entry := <-l.entries:
			e := entry
			batch = append(batch, &e)

			if len(batch) >= l.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.stopChan:
			// Drain whatever is queued, then flush once
			for {
				select {
				case entry := <-l.entries:
					e := entry
					batch = append(batch, &e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Middleware returns the gin handler that queues one entry per request.
func (l *RequestLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		var apiKeyID *uuid.UUID
		if apiKeyInterface, exists := c.Get("api_key_id"); exists {
			if id, ok := apiKeyInterface.(uuid.UUID); ok {
				apiKeyID = &id
			}
		}

		entry := models.RequestLog{
			Timestamp:      start,
			APIKeyID:       apiKeyID,
			Identity:       c.GetString("identity"),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			RateLimited:    c.GetBool(ctxRateLimited),
			PolicyID:       c.GetString(ctxPolicyID),
		}

		select {
		case l.entries <- entry:
		default:
			// Channel full, drop rather than block the request path
			log.Printf("Request log channel full, dropping entry for %s", entry.Path)
		}
	}
}
