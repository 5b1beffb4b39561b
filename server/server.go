package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oogiri/gameserver/broadcast"
	"github.com/oogiri/gameserver/config"
	"github.com/oogiri/gameserver/logger"
	"github.com/oogiri/gameserver/monitor"
	"github.com/oogiri/gameserver/network"
	"github.com/oogiri/gameserver/persistence"
	"github.com/oogiri/gameserver/room"
	gameserver_rpc "github.com/oogiri/gameserver/rpc"
	"github.com/oogiri/gameserver/services"
	"github.com/oogiri/gameserver/session"
	"github.com/oogiri/gameserver/timer"
)

// GameServer is the session gateway: it owns the connections, resolves
// caller identity out-of-band, and forwards typed commands to the room a
// connection is joined to. It never mutates room state itself.
type GameServer struct {
	cfg            *config.Config
	db             persistence.Database
	upgrader       websocket.Upgrader
	registry       *room.Registry
	sessionManager *session.Manager
	playerService  *services.PlayerService
	broadcaster    *broadcast.RoomBroadcaster
	timers         *timer.Manager
	monitor        *monitor.Monitor
	rpcServer      *gameserver_rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		db:             db,
		sessionManager: session.NewManager(),
		playerService:  services.NewPlayerService(db),
		timers:         timer.NewManager(),
		monitor:        monitor.NewMonitor("oogiri"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器和房间注册表 (two-phase: rooms hold the broadcaster,
	// the broadcaster resolves rooms through the registry)
	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)
	s.registry = room.NewRegistry(
		room.Config{
			MinPlayers:    cfg.Game.MinPlayers,
			AnswerTimeout: cfg.Game.AnswerTimeout(),
		},
		room.Deps{
			Broadcaster: s.broadcaster,
			Topics:      db,
			Records:     &instrumentedRecorder{db: db, monitor: s.monitor},
			Timers:      s.timers,
		},
	)
	s.broadcaster.AttachRegistry(s.registry)

	// 初始化RPC服务器
	rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	gameService := gameserver_rpc.NewGameService(s.playerService)
	rpc.Register(gameService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, r.URL.Query().Get("token"))
}

func (s *GameServer) handleConnection(conn *websocket.Conn, token string) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)

	// Identity comes from the external, already-authenticated session
	// store. A connection without one stays open but every command from
	// it is silently dropped.
	if token != "" {
		identity, err := s.db.ResolveToken(token)
		if err != nil {
			logger.Log.Warnf("Could not resolve token for %s: %v", wsConn.RemoteAddr(), err)
		} else {
			sess.SetIdentity(identity)
		}
	}

	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.sessionManager.Remove(sess.GetID())
		// A disconnect is an implicit leave.
		if sess.RoomID != "" {
			if r, ok := s.registry.Get(sess.RoomID); ok {
				r.Leave(sess.UserID(), sess.GetID())
			}
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				// Malformed frames are dropped; the connection lives on.
				if errors.Is(err, network.ErrMalformedPacket) {
					logger.Log.Warnf("Dropping malformed frame from session %s: %v", sess.GetID(), err)
					continue
				}
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.monitor.IncCommandsReceived()
	defer func() {
		s.monitor.ObserveCommandLatency(time.Since(start))
	}()

	if packet.Event == network.EventHeartbeat {
		sess.LastActive = time.Now()
		return
	}

	if !sess.Authenticated() {
		logger.Log.Debugf("Dropping %s from unauthenticated session %s", packet.Event, sess.GetID())
		return
	}

	switch packet.Event {
	case network.EventJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.EventLeaveRoom:
		s.handleLeaveRoom(sess, packet)
	case network.EventReady:
		s.handleReady(sess, packet)
	case network.EventSubmitAnswer:
		s.handleSubmitAnswer(sess, packet)
	case network.EventSubmitVote:
		s.handleSubmitVote(sess, packet)
	case network.EventGameAction:
		s.handleGameAction(sess, packet)
	default:
		logger.Log.Infof("Unknown event type: %s", packet.Event)
	}
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req network.JoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.RoomID == "" {
		logger.Log.Warnf("Malformed join_room from session %s", sess.GetID())
		return
	}

	// An unknown room id is never an error: the room is created on first
	// join and lives for the rest of the process.
	r := s.registry.GetOrCreate(req.RoomID)
	r.Join(*sess.Identity, sess)
	s.monitor.SetActiveRooms(s.registry.Count())

	logger.Log.Infof("Session %s joined room %s", sess.GetID(), req.RoomID)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, packet *network.Packet) {
	var req network.LeaveRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.RoomID == "" {
		return
	}

	if r, ok := s.registry.Get(req.RoomID); ok {
		r.Leave(sess.UserID(), sess.GetID())
	}
}

func (s *GameServer) handleReady(sess *session.Session, packet *network.Packet) {
	var req network.ReadyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.RoomID == "" {
		return
	}

	if r, ok := s.registry.Get(req.RoomID); ok {
		r.Ready(sess.UserID())
	}
}

func (s *GameServer) handleSubmitAnswer(sess *session.Session, packet *network.Packet) {
	var req network.SubmitAnswerRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.RoomID == "" {
		return
	}

	if r, ok := s.registry.Get(req.RoomID); ok {
		r.SubmitAnswer(sess.UserID(), req.Answer)
	}
}

func (s *GameServer) handleSubmitVote(sess *session.Session, packet *network.Packet) {
	var req network.SubmitVoteRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.RoomID == "" {
		return
	}

	r, ok := s.registry.Get(req.RoomID)
	if !ok {
		return
	}
	if err := r.SubmitVote(sess.UserID(), req.FirstPlace, req.SecondPlace); err != nil {
		logger.Log.Warnf("Rejected vote from user %d in room %s: %v", sess.UserID(), req.RoomID, err)
	}
}

func (s *GameServer) handleGameAction(sess *session.Session, packet *network.Packet) {
	var req network.GameActionRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.RoomID == "" {
		return
	}

	if r, ok := s.registry.Get(req.RoomID); ok {
		r.GameAction(sess.UserID(), req.Action)
	}
}

// instrumentedRecorder counts persisted outcomes on top of the database
// write.
type instrumentedRecorder struct {
	db      persistence.Database
	monitor *monitor.Monitor
}

func (r *instrumentedRecorder) RecordRoundOutcome(userID int64, won bool, points int) error {
	r.monitor.IncRoundOutcomes()
	return r.db.RecordRoundOutcome(userID, won, points)
}
