package agentd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/agentctl/internal/auth"
	"github.com/danmuck/agentctl/internal/keyfile"
	"github.com/danmuck/agentctl/internal/observability"
	"github.com/danmuck/agentctl/internal/wire"
)

type keySummary struct {
	Fingerprint string `json:"fingerprint"`
	Type        string `json:"type"`
	Comment     string `json:"comment,omitempty"`
}

func (s *Service) adminRouter() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminRequests("agentd", s.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/healthz", s.handleHealthz)
	if s.cfg.AdminToken != "" {
		r.GET("/keys", s.requireAdminToken(), s.handleKeys)
	} else {
		r.GET("/keys", s.handleKeys)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Service) requireAdminToken() gin.HandlerFunc {
	guard := auth.BearerToken{Secret: s.cfg.AdminToken}
	return func(c *gin.Context) {
		if err := guard.Authorize(c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Service) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "agentd",
		"uptime":  time.Since(s.started).String(),
		"locked":  s.ring.Locked(),
		"keys":    s.ring.Len(),
	})
}

// handleKeys lists held keys by fingerprint. Private material never
// leaves the keyring.
func (s *Service) handleKeys(c *gin.Context) {
	keys := s.ring.List()
	out := make([]keySummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, keySummary{
			Fingerprint: keyfile.Fingerprint(k.Blob),
			Type:        blobType(k.Blob),
			Comment:     k.Comment,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"keys":   out,
		"locked": s.ring.Locked(),
	})
}

func (s *Service) serveAdmin(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.AdminAddr, Handler: s.adminRouter()}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.cfg.AdminAddr).Msg("admin listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func blobType(blob []byte) string {
	t, _, err := wire.ReadString(blob)
	if err != nil {
		return ""
	}
	return string(t)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
