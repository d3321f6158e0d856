package server

import (
	"context"
	"log/slog"

	"chatd/internal/protocol"
)

// Worker is the single consumer of the pending queue. It appends each
// accepted message to the log and fans it out to every authenticated
// session.
type Worker struct {
	srv *Server
}

// NewWorker returns a broadcast worker for srv.
func NewWorker(srv *Server) *Worker {
	return &Worker{srv: srv}
}

// Run consumes the pending queue until ctx is canceled and the queue
// is drained. Messages already accepted are still delivered during
// shutdown.
func (w *Worker) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.srv.Pending.Close()
	}()
	for {
		msg, ok := w.srv.Pending.Pop()
		if !ok {
			return ctx.Err()
		}
		w.dispatch(msg)
	}
}

// dispatch assigns the message its log id and delivers it to every
// session. Sessions whose send fails are collected during the registry
// iteration and torn down after it, since teardown takes the registry
// write lock.
func (w *Worker) dispatch(msg protocol.Message) {
	id := w.srv.Log.Push(msg)
	if w.srv.Metrics != nil {
		w.srv.Metrics.MessagesAccepted.Inc()
	}
	slog.Info("message accepted", "id", id, "sender", msg.Sender, "queued", w.srv.Pending.Len())

	var failed []*Session
	w.srv.Clients.ForEach(func(addr string, s *Session) {
		nick, sent, err := s.Deliver(id, msg)
		if err != nil {
			if w.srv.Metrics != nil {
				w.srv.Metrics.DeliveryFailures.Inc()
			}
			slog.Warn("delivery failed", "peer", addr, "nickname", nick, "id", id, "error", err)
			failed = append(failed, s)
			return
		}
		if sent {
			if w.srv.Metrics != nil {
				w.srv.Metrics.MessagesDelivered.Inc()
			}
			_ = w.srv.Users.SetLastDelivered(nick, id)
		}
	})
	for _, s := range failed {
		s.Fail("message delivery failed")
	}
}
