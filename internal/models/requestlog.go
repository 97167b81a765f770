package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestLog is one gateway request with its admission outcome. The
// limiter itself persists nothing; these rows are the gateway's own
// side-effect sink.
type RequestLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time  `gorm:"index" json:"timestamp"`
	APIKeyID       *uuid.UUID `gorm:"index" json:"api_key_id,omitempty"`
	Identity       string     `json:"identity,omitempty"`
	Method         string     `json:"method"`
	Path           string     `gorm:"index" json:"path"`
	StatusCode     int        `gorm:"index" json:"status_code"`
	ResponseTimeMs int        `json:"response_time_ms"`
	IPAddress      string     `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	RateLimited    bool       `gorm:"index" json:"rate_limited"`
	PolicyID       string     `json:"policy_id,omitempty"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
