// audit.go provides Gin middleware that captures administrative operations on
// the admin API into the persistent audit trail.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/logrelay/logrelay/internal/auditlog"
	"github.com/logrelay/logrelay/internal/config"
)

// Actor identity headers. The admin API carries no authentication of its own;
// the gateway in front of it asserts who the caller is.
const (
	ActorIDHeader    = "X-Actor-ID"
	ActorEmailHeader = "X-Actor-Email"
)

// AuditCaptureMiddleware records requests handled by the admin API into the
// audit trail. By default only successful write operations are captured; GET
// requests and failed requests are opted in through the audit configuration.
//
// Capture happens after the handler runs so the response status is known, and
// it goes through Store.Append, which never surfaces failure — a broken trail
// file cannot fail an admin request.
func AuditCaptureMiddleware(store *auditlog.Store, cfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodOptions {
			return
		}

		isRead := c.Request.Method == http.MethodGet
		isFailed := c.Writer.Status() >= 400

		if isRead && !cfg.CaptureReadOperations {
			return
		}
		if isFailed && !cfg.CaptureFailedRequests {
			return
		}

		rec := auditlog.NewRecord(
			c.GetHeader(ActorIDHeader),
			c.GetHeader(ActorEmailHeader),
			deriveAction(c),
			c.ClientIP(),
		)

		if agent := c.Request.UserAgent(); agent != "" {
			rec.ClientAgent = &agent
		}
		if resType, resID, ok := deriveResource(c); ok {
			rec.ResourceType = &resType
			if resID != "" {
				rec.ResourceID = &resID
			}
		}

		details := map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}
		if id, ok := c.Get(RequestIDKey); ok {
			details["request_id"] = id
		}
		rec.Details = details

		store.Append(rec)
	}
}

// deriveAction maps known admin routes to dotted action tags; anything else is
// captured as "METHOD /path".
func deriveAction(c *gin.Context) string {
	path := c.Request.URL.Path
	if strings.HasSuffix(path, "/prune") && c.Request.Method == http.MethodPost {
		return "audit.prune"
	}
	if strings.Contains(path, "/audit") && c.Request.Method == http.MethodGet {
		return "audit.read"
	}
	return fmt.Sprintf("%s %s", c.Request.Method, path)
}

// deriveResource extracts the resource reference from the matched route
// parameters when the route addresses one.
func deriveResource(c *gin.Context) (resType, resID string, ok bool) {
	if id := c.Param("id"); id != "" {
		if t := c.Param("type"); t != "" {
			return t, id, true
		}
		return "actor", id, true
	}
	if strings.Contains(c.Request.URL.Path, "/audit") {
		return "audit_log", "", true
	}
	return "", "", false
}
