package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-Api-Key"

// devAPIKey is accepted when no keys are configured, so a local instance
// works out of the box. Never rely on it in a deployment.
const devAPIKey = "dev-api-key"

// openPaths are reachable without a key: health checks and scrapers must
// not need credentials.
var openPaths = map[string]struct{}{
	"/status":  {},
	"/metrics": {},
}

func apiKeyAuth(keys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		slog.With("component", "server.auth").
			Warn("no API keys configured, falling back to the development key")
		allowed[devAPIKey] = struct{}{}
	}
	return func(ctx *gin.Context) {
		if _, open := openPaths[ctx.FullPath()]; open {
			ctx.Next()
			return
		}
		if _, ok := allowed[ctx.GetHeader(apiKeyHeader)]; !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid API key",
			})
			return
		}
		ctx.Next()
	}
}
