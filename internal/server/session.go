package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"chatd/internal/directory"
	"chatd/internal/protocol"
)

type sessionState int

const (
	stateConnected sessionState = iota
	stateAuthenticated
	stateClosed
)

// fetchLimit caps how many messages one Fetch command may replay.
const fetchLimit = 50

var errSessionClosed = errors.New("session closed")

// Session is the server side of one live connection. It owns its
// transport stream exclusively; the broadcast worker never touches
// the stream directly and goes through Deliver, which serializes on
// the session's write lock. The session lock is a leaf with respect
// to the registry lock.
type Session struct {
	srv  *Server
	conn Conn
	addr string

	// mu serializes the write path and guards the fields below.
	mu       sync.Mutex
	nickname string
	state    sessionState
	lastSent uint64
}

// NewSession wraps an accepted stream. The caller registers the
// session and then spawns Run.
func NewSession(srv *Server, conn Conn) *Session {
	return &Session{srv: srv, conn: conn, addr: conn.RemoteAddr().String()}
}

// Addr returns the peer address the session is keyed by.
func (s *Session) Addr() string { return s.addr }

// Nickname returns the bound nickname, or the empty string until
// login or registration succeeds.
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// Run is the receive loop: read one command frame, dispatch, repeat
// until the first terminal transition.
func (s *Session) Run() {
	for {
		cmd, err := s.srv.Codec.ReadClient(s.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.closeGraceful()
			} else {
				s.Fail(fmt.Sprintf("receive command: %v", err))
			}
			return
		}
		if !s.dispatch(cmd) {
			return
		}
	}
}

// dispatch handles one command; it reports whether the receive loop
// should continue.
func (s *Session) dispatch(cmd protocol.ClientCommand) bool {
	switch cmd.Kind {
	case protocol.ClientLogin:
		return s.handleLogin(cmd.Login)
	case protocol.ClientSendMessage:
		return s.handleSendMessage(cmd.Text)
	case protocol.ClientFetch:
		return s.handleFetch(cmd.Since)
	default:
		s.Fail("unknown command")
		return false
	}
}

func (s *Session) handleLogin(req protocol.LoginRequest) bool {
	if s.Nickname() != "" {
		// A second Login on an authenticated session is a protocol
		// error; the nickname is never re-bound.
		s.Fail("already logged in")
		return false
	}
	nick := req.Nickname
	if !directory.ValidNickname(nick) || !s.srv.Config.NicknameAllowed(nick) {
		slog.Warn("nickname refused", "peer", s.addr, "nickname", nick)
		s.Fail("nickname not allowed")
		return false
	}

	exists := s.srv.Users.Exists(nick)
	switch {
	case req.IsRegistering && exists:
		slog.Info("registration refused, account exists", "peer", s.addr, "nickname", nick)
		s.Fail("account already exists")
		return false
	case req.IsRegistering:
		if err := s.srv.Users.Add(nick, req.Password); err != nil {
			s.Fail(fmt.Sprintf("register: %v", err))
			return false
		}
		s.srv.updateUserGauge()
		return s.completeLogin(nick, false)
	case !exists:
		slog.Warn("login refused, user does not exist", "peer", s.addr, "nickname", nick)
		s.Fail("user does not exist")
		return false
	default:
		if !s.srv.Users.Verify(nick, req.Password) {
			slog.Warn("login refused, wrong password", "peer", s.addr, "nickname", nick)
			s.Fail("invalid password")
			return false
		}
		return s.completeLogin(nick, true)
	}
}

// completeLogin sends LoginSuccess, replays the backlog for an
// existing user and binds the nickname, all under the session write
// lock. Fan-out serializes behind the same lock and the lastSent
// watermark, so a message can neither be skipped nor delivered twice
// when a broadcast races the replay.
func (s *Session) completeLogin(nick string, replay bool) bool {
	s.mu.Lock()
	if err := s.sendLocked(protocol.NewLoginSuccess()); err != nil {
		s.mu.Unlock()
		s.Fail(fmt.Sprintf("send login response: %v", err))
		return false
	}
	if replay {
		if err := s.replayBacklogLocked(nick); err != nil {
			s.mu.Unlock()
			s.Fail(fmt.Sprintf("replay backlog: %v", err))
			return false
		}
	}
	s.nickname = nick
	s.state = stateAuthenticated
	s.mu.Unlock()
	slog.Info("session authenticated", "peer", s.addr, "nickname", nick)
	return true
}

func (s *Session) replayBacklogLocked(nick string) error {
	cursor, _, err := s.srv.Users.LastDelivered(nick)
	if err != nil {
		return err
	}
	var sendErr error
	s.srv.Log.ForEachAfter(cursor, func(id uint64, msg protocol.Message) {
		if sendErr != nil {
			return
		}
		if err := s.sendLocked(protocol.NewMessageRecv(msg)); err != nil {
			sendErr = err
			return
		}
		s.lastSent = id
		_ = s.srv.Users.SetLastDelivered(nick, id)
	})
	return sendErr
}

func (s *Session) handleSendMessage(text string) bool {
	nick := s.Nickname()
	if nick == "" {
		s.Fail("not logged in")
		return false
	}
	if !s.srv.Config.MessageAllowed(text) {
		slog.Warn("message refused", "peer", s.addr, "nickname", nick)
		if err := s.Send(protocol.NewWarning("message not allowed")); err != nil {
			s.Fail(fmt.Sprintf("send warning: %v", err))
			return false
		}
		return true
	}
	s.srv.Pending.Push(protocol.NewMessage(nick, s.srv.now(), text))
	return true
}

// handleFetch replays the newest messages stamped at or after since.
// The lastSent watermark keeps the per-recipient id sequence strictly
// increasing even when the requested window overlaps what the client
// already has.
func (s *Session) handleFetch(since time.Time) bool {
	if s.Nickname() == "" {
		s.Fail("not logged in")
		return false
	}
	s.mu.Lock()
	nick := s.nickname
	var sendErr error
	s.srv.Log.ForEachSince(since, fetchLimit, func(id uint64, msg protocol.Message) {
		if sendErr != nil || id <= s.lastSent {
			return
		}
		if err := s.sendLocked(protocol.NewMessageRecv(msg)); err != nil {
			sendErr = err
			return
		}
		s.lastSent = id
		_ = s.srv.Users.SetLastDelivered(nick, id)
	})
	s.mu.Unlock()
	if sendErr != nil {
		s.Fail(fmt.Sprintf("fetch replay: %v", sendErr))
		return false
	}
	return true
}

// Send serializes, encrypts, frames, writes and flushes one command
// under the session's exclusive write lock.
func (s *Session) Send(cmd protocol.ServerCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(cmd)
}

func (s *Session) sendLocked(cmd protocol.ServerCommand) error {
	if s.state == stateClosed {
		return errSessionClosed
	}
	return s.srv.Codec.WriteServer(s.conn, cmd)
}

// Deliver sends one broadcast message if the session is authenticated
// and has not yet seen id. It returns the bound nickname so the
// caller can advance the user's delivery cursor.
func (s *Session) Deliver(id uint64, msg protocol.Message) (nickname string, sent bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateAuthenticated || s.nickname == "" {
		return "", false, nil
	}
	if id <= s.lastSent {
		return s.nickname, false, nil
	}
	if err := s.sendLocked(protocol.NewMessageRecv(msg)); err != nil {
		return s.nickname, false, err
	}
	s.lastSent = id
	return s.nickname, true, nil
}

// Fail tears the session down after a protocol or I/O error: remove
// it from the registry, best-effort send a final Error frame, then
// reset the stream so the peer sees the connection is unrecoverable.
// Only the first teardown path wins; later calls are no-ops.
func (s *Session) Fail(description string) {
	if _, err := s.srv.Clients.Remove(s.addr); err != nil {
		return
	}
	s.srv.updateClientGauge()
	slog.Error("session failed", "peer", s.addr, "reason", description)

	s.mu.Lock()
	if s.state != stateClosed {
		_ = s.srv.Codec.WriteServer(s.conn, protocol.NewError(description))
		s.state = stateClosed
	}
	_ = s.conn.Reset()
	s.mu.Unlock()
}

// closeGraceful handles the peer's orderly half-close: deregister
// first, then finish our own write direction. A fan-out that already
// snapshotted this session fails its send and is tolerated there.
func (s *Session) closeGraceful() {
	if _, err := s.srv.Clients.Remove(s.addr); err != nil {
		return
	}
	s.srv.updateClientGauge()
	slog.Info("peer closed connection", "peer", s.addr, "nickname", s.Nickname())

	s.mu.Lock()
	s.state = stateClosed
	_ = s.conn.CloseWrite()
	_ = s.conn.Close()
	s.mu.Unlock()
}
