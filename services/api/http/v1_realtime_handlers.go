package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/f5703swl/swl-web-sdr/internal/i18n"
	"github.com/f5703swl/swl-web-sdr/internal/live"
	"github.com/f5703swl/swl-web-sdr/services/api/snapshot"
)

// handleV1RealtimeNow returns the state of the latest refresh
// GET /api/v1/realtime/now
func (s *Server) handleV1RealtimeNow(c *gin.Context) {
	snap, tag, ok := s.snapshotFor(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"summary": snapshot.Summarize(snap.Records),
			"sources": snap.Sources,
		},
		"meta": gin.H{
			"updated_at":   snap.UpdatedAt.Format(time.RFC3339),
			"lang":         i18n.Code(tag),
			"subscribers":  s.subscribers(),
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleV1RealtimeWS streams every refreshed snapshot in the request's
// language, starting with the current one
// GET /api/v1/realtime/ws?lang=fr
func (s *Server) handleV1RealtimeWS(c *gin.Context) {
	tag := lang(c)
	hub := s.deps.Hubs[i18n.Code(tag)]
	if hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are disabled"})
		return
	}

	var initial *live.Message
	if snap, ok := s.deps.Snapshots.Get(tag); ok {
		initial = &live.Message{Type: snapshot.MessageType, Payload: snapshot.NewView(snap)}
	}

	if err := hub.Serve(c.Writer, c.Request, initial); err != nil {
		s.deps.Log.Debug().Err(err).Msg("websocket session ended")
	}
}

func (s *Server) subscribers() int {
	n := 0
	for _, hub := range s.deps.Hubs {
		n += hub.Clients()
	}
	return n
}

// handleV1Info describes the application and its configured sources
// GET /api/v1/info
func (s *Server) handleV1Info(c *gin.Context) {
	langs := make([]string, 0, len(i18n.Supported))
	for _, tag := range i18n.Supported {
		langs = append(langs, i18n.Code(tag))
	}

	srcs := make([]gin.H, 0)
	if s.deps.Registry != nil {
		for _, src := range s.deps.Registry.All() {
			srcs = append(srcs, gin.H{
				"id":      src.ID,
				"name":    src.DisplayName(),
				"format":  src.Format,
				"enabled": src.Enabled,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"name":      AppName,
			"author":    AppAuthor,
			"version":   AppVersion,
			"languages": langs,
			"sources":   srcs,
		},
	})
}
