package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/auth"
	"github.com/Kamar-Folarin/brand-sync/internal/notify"
)

const closeWait = time.Second

// WebSocketHandler upgrades authenticated clients onto the notification hub
type WebSocketHandler struct {
	hub       *notify.Hub
	validator *auth.Validator
	upgrader  websocket.Upgrader
	logger    *logrus.Logger
}

func NewWebSocketHandler(hub *notify.Hub, validator *auth.Validator, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /ws. The credential comes from the token query parameter
// or the Authorization header. A bad credential is reported with close code
// 1008 after the upgrade so browser clients can read the reason.
// @Summary Notification stream
// @Description Websocket for sync_status and resource_updated events
// @Tags notifications
// @Param token query string false "JWT bearer credential"
// @Success 101
// @Router /ws [get]
func (h *WebSocketHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	claims, err := h.validator.Validate(token)
	if err != nil {
		h.logger.WithField("client", c.ClientIP()).Info("Rejected websocket connection with invalid credential")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid credential"),
			time.Now().Add(closeWait))
		_ = conn.Close()
		return
	}

	notify.NewClient(h.hub, conn, claims.Subject, h.logger).Start()
}
