package rpc

import (
	"net"
	"net/rpc"

	"github.com/oogiri/gameserver/logger"
	"github.com/oogiri/gameserver/models"
	"github.com/oogiri/gameserver/services"
)

// Server manages the RPC listener. The web frontend (a separate process
// that renders the lobby, rankings and topic pages) talks to the game
// server over this surface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the struct that exposes RPC methods.
type GameService struct {
	playerService *services.PlayerService
}

// NewGameService creates a new GameService.
func NewGameService(ps *services.PlayerService) *GameService {
	return &GameService{playerService: ps}
}

type GetPlayerArgs struct {
	UserID int64
}

type GetPlayerReply struct {
	Stats *models.PlayerStats
}

// GetPlayerWithStats returns the cumulative battles/wins/points record.
func (gs *GameService) GetPlayerWithStats(args *GetPlayerArgs, reply *GetPlayerReply) error {
	stats, err := gs.playerService.GetPlayerWithStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type CreateRoomArgs struct {
	Name      string
	CreatorID int64
}

type CreateRoomReply struct {
	RoomID string
}

// CreateRoom allocates a room record in the store and returns its id.
func (gs *GameService) CreateRoom(args *CreateRoomArgs, reply *CreateRoomReply) error {
	id, err := gs.playerService.CreateRoom(args.Name, args.CreatorID)
	if err != nil {
		return err
	}
	reply.RoomID = id
	return nil
}

type CreateTopicArgs struct {
	Content   string
	CreatorID int64
	Anonymous bool
}

type CreateTopicReply struct{}

// CreateTopic adds a prompt to the draw pool.
func (gs *GameService) CreateTopic(args *CreateTopicArgs, reply *CreateTopicReply) error {
	return gs.playerService.CreateTopic(args.Content, args.CreatorID, args.Anonymous)
}
