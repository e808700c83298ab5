package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/setup"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/usecase"
)

const (
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
)

type uGame interface {
	StartGame(ctx context.Context, player1, player2 setup.PlayerRequest) (*entity.Game, error)
	PlaceMarker(ctx context.Context, gameID string, cell int) (*entity.Game, error)
	ResetGame(ctx context.Context, gameID string) (*entity.Game, error)
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
	CloseGame(ctx context.Context, gameID string) error
	OnGameEnd(listener usecase.GameEndListener)
}

type handlerFunc func(ctx context.Context, client *client, msg *Message) error

// client is one websocket connection. gorilla allows a single concurrent writer.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (that *client) writeJSON(v any) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return that.conn.WriteJSON(v)
}

type Server struct {
	logger   *slog.Logger
	uGame    uGame
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc

	connectionsMutex sync.RWMutex
	connections      map[*client]struct{}
	// watchers holds the connections that receive updates of a game
	watchers map[string]map[*client]struct{}
}

func New(logger *slog.Logger, uGame uGame) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		uGame:  uGame,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the presentation client is served from another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},

		handlers:    make(map[string]handlerFunc),
		connections: make(map[*client]struct{}),
		watchers:    make(map[string]map[*client]struct{}),
	}

	server.handlers[actionGameNew] = server.handleNewGame
	server.handlers[actionGameTurn] = server.handleGameTurn
	server.handlers[actionGameReset] = server.handleGameReset
	server.handlers[actionGameState] = server.handleGameState
	server.handlers[actionGameLeave] = server.handleGameLeave

	uGame.OnGameEnd(server.handleGameEnd)

	return server
}

// Handler serves the websocket endpoint on /ws.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(ctx),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	srv.RegisterOnShutdown(that.closeConnections)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		// Upgrade already replied to the client
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn}

	that.connectionsMutex.Lock()
	that.connections[c] = struct{}{}
	that.connectionsMutex.Unlock()

	defer that.handleDisconnect(c)

	log.Info("WebSocket connection established", "remote", conn.RemoteAddr().String())

	if err = that.handleMessages(ctx, c); err != nil {
		log.Error("error handling messages", "error", err)
	}
}

// handleMessages - processes messages from the client until it goes away.
func (that *Server) handleMessages(ctx context.Context, c *client) error {
	log := that.logger.With("method", "handleMessages")

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			if err = that.sendError(c, "", badRequest(err), nil); err != nil {
				return err
			}
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Debug("unknown action", "action", message.Action)
			if err = that.sendError(c, message.Action, unknownAction(message.Action), nil); err != nil {
				return err
			}
			continue
		}

		if err = handler(ctx, c, &message); err != nil {
			return fmt.Errorf("failed to process %s: %w", message.Action, err)
		}
	}
}

func (that *Server) handleDisconnect(c *client) {
	that.connectionsMutex.Lock()
	delete(that.connections, c)
	for gameID, watching := range that.watchers {
		delete(watching, c)
		if len(watching) == 0 {
			delete(that.watchers, gameID)
		}
	}
	that.connectionsMutex.Unlock()

	_ = c.conn.Close()

	that.logger.Info("WebSocket connection closed", "remote", c.conn.RemoteAddr().String())
}

func (that *Server) closeConnections() {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	for c := range that.connections {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		_ = c.conn.Close()
	}
}

func (that *Server) watch(c *client, gameID string) {
	that.connectionsMutex.Lock()
	defer that.connectionsMutex.Unlock()

	watching, ok := that.watchers[gameID]
	if !ok {
		watching = make(map[*client]struct{})
		that.watchers[gameID] = watching
	}
	watching[c] = struct{}{}
}

func (that *Server) unwatch(c *client, gameID string) {
	that.connectionsMutex.Lock()
	defer that.connectionsMutex.Unlock()

	watching := that.watchers[gameID]
	delete(watching, c)
	if len(watching) == 0 {
		delete(that.watchers, gameID)
	}
}

// unwatchAll drops every watcher of gameID and returns them.
func (that *Server) unwatchAll(gameID string) []*client {
	that.connectionsMutex.Lock()
	defer that.connectionsMutex.Unlock()

	clients := make([]*client, 0, len(that.watchers[gameID]))
	for c := range that.watchers[gameID] {
		clients = append(clients, c)
	}
	delete(that.watchers, gameID)

	return clients
}

func (that *Server) watchersOf(gameID string) []*client {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	clients := make([]*client, 0, len(that.watchers[gameID]))
	for c := range that.watchers[gameID] {
		clients = append(clients, c)
	}

	return clients
}
