package logging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditLogger writes an audit trail of problem and solve-run lifecycle
// events, both to the structured log and to the audit_logs table.
type AuditLogger struct {
	logger *Logger
	db     *gorm.DB
}

func NewAuditLogger(logger *Logger, db *gorm.DB) *AuditLogger {
	return &AuditLogger{logger: logger, db: db}
}

// AuditEvent is one audit-trail entry.
type AuditEvent struct {
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	UserID     string                 `json:"user_id"`
	TenantID   string                 `json:"tenant_id"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// LogProblemEvent records lifecycle events of a submitted problem
// document (submitted, validated, rejected).
func (al *AuditLogger) LogProblemEvent(ctx context.Context, action, problemID, userID, tenantID string, metadata map[string]interface{}) {
	al.logger.Info("problem event",
		"action", action,
		"problem_id", problemID,
		"tenant_id", tenantID,
	)
	al.logEvent(ctx, &AuditEvent{
		Action:     action,
		Resource:   "problem",
		ResourceID: problemID,
		UserID:     userID,
		TenantID:   tenantID,
		Metadata:   metadata,
		Timestamp:  time.Now(),
	})
}

// LogSolveEvent records lifecycle events of a solve run (submitted,
// cancelled, completed, failed).
func (al *AuditLogger) LogSolveEvent(ctx context.Context, action, runID, userID, tenantID string, metadata map[string]interface{}) {
	al.logger.Info("solve run event",
		"action", action,
		"run_id", runID,
		"tenant_id", tenantID,
	)
	al.logEvent(ctx, &AuditEvent{
		Action:     action,
		Resource:   "solve",
		ResourceID: runID,
		UserID:     userID,
		TenantID:   tenantID,
		Metadata:   metadata,
		Timestamp:  time.Now(),
	})
}

// logEvent writes the event to the structured log and, when a database is
// attached, persists it off the request goroutine.
func (al *AuditLogger) logEvent(_ context.Context, event *AuditEvent) {
	fields := map[string]interface{}{
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"user_id":     event.UserID,
		"tenant_id":   event.TenantID,
		"ip_address":  event.IPAddress,
		"timestamp":   event.Timestamp,
	}
	if event.Metadata != nil {
		fields["metadata"] = event.Metadata
	}
	al.logger.WithFields(fields).Info("audit event recorded")

	if al.db == nil {
		return
	}
	go func() {
		metadataJSON, _ := json.Marshal(event.Metadata)
		al.db.Table("audit_logs").Create(map[string]interface{}{
			"user_id":     event.UserID,
			"tenant_id":   event.TenantID,
			"action":      event.Action,
			"resource":    event.Resource,
			"resource_id": event.ResourceID,
			"ip_address":  event.IPAddress,
			"user_agent":  event.UserAgent,
			"details":     string(metadataJSON),
		})
	}()
}

// AuditMiddleware audits every successful state-changing request. Auth
// middleware downstream sets user_id/tenant_id before handlers return.
func AuditMiddleware(auditLogger *AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		resource := extractResource(c.Request.URL.Path)
		resourceID := c.Param("runID")
		if resourceID == "" {
			resourceID = c.Param("id")
		}

		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		userID, _ := c.Get("user_id")
		tenantID, _ := c.Get("tenant_id")
		auditLogger.logger.LogAudit(
			actionForMethod(c.Request.Method),
			resource,
			resourceID,
			asString(userID),
			map[string]interface{}{
				"tenant_id":  tenantID,
				"ip_address": c.ClientIP(),
				"user_agent": c.Request.UserAgent(),
			},
		)
	}
}

// extractResource pulls the collection segment out of paths like
// /api/v1/solves/123.
func extractResource(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for i, part := range parts {
		if part == "v1" || part == "admin" {
			if i+1 < len(parts) {
				return parts[i+1]
			}
		}
	}
	return "unknown"
}

func actionForMethod(method string) string {
	switch method {
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return "unknown"
	}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
