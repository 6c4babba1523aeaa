package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"growgent/internal/mapsession"
	"growgent/internal/types"
)

// newUpgrader accepts browsers from allowedOrigins ("*" allows any). Requests
// without an Origin header come from non-browser clients and are accepted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil || u.Host == "" {
				return false
			}
			_, ok := allowed[u.Scheme+"://"+u.Host]
			return ok
		},
	}
}

// ServeWS handles GET /v1/map/ws. The session outlives the request timeout
// and ends when the browser disconnects or the handler's session context is
// cancelled.
func (h *MapHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stop := context.AfterFunc(h.sessions, cancel)
	defer stop()

	logger := h.logger.With("request_id", types.GetRequestID(r.Context()))
	if ip, ok := types.GetClientIP(r.Context()); ok {
		logger = logger.With("client_ip", ip)
	}

	session := mapsession.New(h.fields, h.zones, mapsession.Options{
		FarmID:  h.settings.FarmID,
		Palette: h.settings.Palette,
		Tiles:   h.settings.Tiles,
		Layers:  h.settings.Layers,
	}, logger)

	logger.InfoContext(ctx, "map session started")
	if err := session.Run(ctx, mapsession.NewWSTransport(conn)); err != nil {
		logger.WarnContext(ctx, "map session ended with error", "error", err)
		return
	}
	logger.InfoContext(ctx, "map session closed")
}
