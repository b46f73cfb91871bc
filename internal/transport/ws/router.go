package ws

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pixlverse/office/internal/config"
	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/room"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ClientTokenMiddleware gives each browser a stable token cookie. The
// per-connection session id is minted separately on every join, so two
// tabs of the same browser are two sessions.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, mgr *room.Manager) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("OfficeSessions", store))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")
	api.GET("/rooms", listRooms(mgr))
	api.POST("/rooms", createRoom(mgr))
	api.GET("/ws/join", joinRoom(ctx, cfg, mgr))

	return r
}

type createRoomRequest struct {
	Name        string `json:"name" binding:"required,max=36"`
	Description string `json:"description" binding:"max=200"`
	Password    string `json:"password"`
	AutoDispose *bool  `json:"autoDispose"`
}

func createRoom(mgr *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		autoDispose := true
		if req.AutoDispose != nil {
			autoDispose = *req.AutoDispose
		}
		rm, err := mgr.Create(domain.RoomOptions{
			Name:        req.Name,
			Description: req.Description,
			Password:    req.Password,
			AutoDispose: autoDispose,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": string(rm.ID()), "name": rm.Name()})
	}
}

func listRooms(mgr *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": mgr.List()})
	}
}

// joinRoom authenticates against the room password before the upgrade,
// so a rejected join is a plain 403 and no session state exists yet.
func joinRoom(ctx context.Context, cfg *config.Config, mgr *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Query("room")
		if roomID == "" {
			roomID = room.PublicRoomID
		}
		rm, ok := mgr.Get(domain.RoomID(roomID))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if err := rm.Authenticate(c.Query("password")); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "password required or incorrect"})
			return
		}

		wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
			return
		}
		wsConn.SetReadLimit(cfg.ReadLimit)

		sid := domain.SessionID(uuid.NewString())
		conn := newConn(wsConn, cfg.WriteTimeout)

		connCtx, cancel := context.WithCancel(ctx)
		go func() {
			conn.writePump(connCtx, cfg.PingPeriod)
			cancel()
		}()

		if err := rm.Join(sid, conn); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("sid", string(sid)).Msg("join failed")
			conn.Close()
			cancel()
			return
		}
		log.Info().Str("module", "ws").Str("sid", string(sid)).Str("room", roomID).Msg("session connected")

		go func() {
			conn.readPump(connCtx, rm, sid)
			cancel()
		}()
	}
}
