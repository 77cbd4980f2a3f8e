package middleware

import (
	"strconv"
	"time"

	"inventario/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// unmatchedRoute agrupa as requisições sem rota para não explodir a cardinalidade dos labels.
const unmatchedRoute = "unmatched"

// Metrics é um middleware Gin para coletar métricas Prometheus para requisições HTTP.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// c.FullPath() devolve o template da rota (ex: /api/v1/users).
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		method := c.Request.Method

		metrics.HTTPRequestCounter.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
