// Package server implements the concurrency core of the chat
// service: per-connection sessions, the client registry, the pending
// queue and the broadcast worker that fans accepted messages out.
package server

import (
	"time"

	"chatd/internal/config"
	"chatd/internal/directory"
	"chatd/internal/metrics"
	"chatd/internal/msglog"
	"chatd/internal/protocol"
)

// Server bundles the shared dependencies every session and the
// broadcast worker operate on. Each dependency synchronizes
// internally; Server itself is shared by reference and immutable
// after construction.
type Server struct {
	Config  *config.Config
	Users   *directory.Directory
	Log     *msglog.Log
	Clients *Registry
	Pending *Queue
	Codec   protocol.Codec
	Metrics *metrics.Metrics

	now func() time.Time
}

// New wires a server around the given configuration, directory, log
// and metrics.
func New(cfg *config.Config, users *directory.Directory, log *msglog.Log, m *metrics.Metrics, codec protocol.Codec) *Server {
	return &Server{
		Config:  cfg,
		Users:   users,
		Log:     log,
		Clients: NewRegistry(),
		Pending: NewQueue(),
		Codec:   codec,
		Metrics: m,
		now:     time.Now,
	}
}

func (srv *Server) updateClientGauge() {
	if srv.Metrics != nil {
		srv.Metrics.ConnectedClients.Set(float64(srv.Clients.Len()))
	}
}

func (srv *Server) updateUserGauge() {
	if srv.Metrics != nil {
		srv.Metrics.RegisteredUsers.Set(float64(srv.Users.Count()))
	}
}
