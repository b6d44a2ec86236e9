package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rubiojr/craftsearch/pkg/realtime"
	"github.com/rubiojr/craftsearch/pkg/search"
)

const writeTimeout = 10 * time.Second

// wsRequest is a decoded client message or the reason it could not be decoded.
type wsRequest struct {
	msg ClientMessage
	err error
}

// HandleSearchWS serves search as you type. Every client message starts a new
// search for the connection; a search still running when the next message
// arrives is abandoned and only the newest results are sent. When an index
// changes, the last search is run again and its results pushed with reason
// "index_changed".
func (s *Server) HandleSearchWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := uuid.NewString()
	session := search.NewSession(s.svc)
	defer session.Close()

	var events <-chan realtime.Event
	if s.hub != nil {
		lid, ch := s.hub.Register()
		defer s.hub.Unregister(lid)
		events = ch
	}

	logger.Debugf("websocket session %s opened", id)
	defer logger.Debugf("websocket session %s closed", id)

	if err := writeMessage(conn, ServerMessage{Type: MessageInit, Session: id, Spaces: s.svc.SpaceIDs()}); err != nil {
		return
	}

	requests := make(chan wsRequest)
	go readRequests(ctx, conn, requests)

	results := make(chan ServerMessage)
	run := func(msg ClientMessage, reason string) {
		go func() {
			out, ok := resolveMessage(ctx, session, msg, reason)
			if !ok {
				return
			}
			select {
			case results <- out:
			case <-ctx.Done():
			}
		}()
	}

	var (
		pending *ClientMessage
		last    *ClientMessage
		fire    <-chan time.Time
		sent    uint64
	)
	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return
			}
			if req.err != nil {
				if err := writeMessage(conn, ServerMessage{Type: MessageError, Error: req.err.Error()}); err != nil {
					return
				}
				continue
			}
			msg := req.msg
			if s.debounce <= 0 {
				last = &msg
				run(msg, "")
				continue
			}
			pending = &msg
			fire = time.After(s.debounce)
		case <-fire:
			fire = nil
			if pending != nil {
				last = pending
				pending = nil
				run(*last, "")
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Type == realtime.EventIndexChanged && last != nil && pending == nil {
				run(*last, realtime.EventIndexChanged)
			}
		case out := <-results:
			// A search can pass the session's check just before a newer one
			// starts and still lose the race to the channel.
			if out.Results != nil {
				if out.Results.Generation < sent {
					continue
				}
				sent = out.Results.Generation
			}
			if err := writeMessage(conn, out); err != nil {
				logger.Debugf("websocket session %s write: %v", id, err)
				return
			}
		}
	}
}

// readRequests decodes client messages until the connection fails, then
// closes requests.
func readRequests(ctx context.Context, conn *websocket.Conn, requests chan<- wsRequest) {
	defer close(requests)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("websocket read: %v", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req.msg); err != nil {
			req.err = errors.New("invalid message: expected {\"mode\":...,\"query\":...}")
		} else if _, err := search.ParseMode(req.msg.Mode); err != nil {
			req.err = err
		}

		select {
		case requests <- req:
		case <-ctx.Done():
			return
		}
	}
}

// resolveMessage runs msg through the session. It reports false when the
// search was superseded or abandoned and nothing should be sent.
func resolveMessage(ctx context.Context, session *search.Session, msg ClientMessage, reason string) (ServerMessage, bool) {
	mode, _ := search.ParseMode(msg.Mode)
	res, err := session.Resolve(ctx, mode, msg.Query)
	switch {
	case errors.Is(err, search.ErrSuperseded), errors.Is(err, context.Canceled):
		return ServerMessage{}, false
	case err != nil:
		return ServerMessage{Type: MessageError, Error: err.Error()}, true
	}
	return ServerMessage{Type: MessageResults, Reason: reason, Results: NewResultsResponse(res)}, true
}

func writeMessage(conn *websocket.Conn, msg ServerMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
