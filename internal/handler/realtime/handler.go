package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/jobboard-api/internal/handler"
	"github.com/jwalitptl/jobboard-api/internal/middleware"
	"github.com/jwalitptl/jobboard-api/internal/realtime"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
)

const tokenQueryParam = "token"

type Handler struct {
	tokens   middleware.TokenParser
	registry *realtime.Registry
	opts     realtime.ClientOptions
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler builds the live channel endpoint. allowedOrigins follows the
// CORS setting: empty allows every origin.
func NewHandler(tokens middleware.TokenParser, registry *realtime.Registry, opts realtime.ClientOptions, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		tokens:   tokens,
		registry: registry,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Connect)
}

// Connect authenticates the handshake and hands the upgraded connection to
// a realtime client. Browsers cannot set headers on a websocket handshake,
// so the token may also come in the query string.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query(tokenQueryParam)
	if token == "" {
		var err error
		if token, err = middleware.BearerToken(c.GetHeader("Authorization")); err != nil {
			handler.Fail(c, apperrors.Unauthorized(err))
			return
		}
	}

	identity, err := h.tokens.Parse(token)
	if err != nil {
		handler.Fail(c, apperrors.Unauthorized(err))
		return
	}
	middleware.SetIdentity(c, identity)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(conn, identity.UserID, h.registry, h.opts, h.logger)
	client.Start()
}
