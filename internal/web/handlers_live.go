package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/logging"
)

// Live frame types.
const (
	frameSnapshot       = "snapshot"
	frameChange         = "change"
	frameView           = "view"
	frameCheckIn        = "check_in"
	frameError          = "error"
	frameResyncRequired = "resync_required"

	frameFilter = "filter"
	frameReload = "reload"
)

const (
	maxDecodeErrors    = 3
	maxFramesPerSecond = 20
	liveWriteTimeout   = 10 * time.Second

	defaultLiveAuthInterval = 30 * time.Second
)

var errInvalidFrame = errors.New("invalid live frame")

// inboundFrame is any device → server frame.
type inboundFrame struct {
	Type   string `json:"type"`
	Query  string `json:"query,omitempty"`
	Status string `json:"status,omitempty"`
	ID     string `json:"id,omitempty"`
}

type snapshotFrame struct {
	Type         string             `json:"type"`
	SessionID    string             `json:"session_id"`
	Participants []core.Participant `json:"participants"`
	Counts       core.Counts        `json:"counts"`
	Query        core.Query         `json:"query"`
}

type changeFrame struct {
	Type   string      `json:"type"`
	Change core.Change `json:"change"`
	Counts core.Counts `json:"counts"`
}

type viewFrame struct {
	Type         string             `json:"type"`
	Participants []core.Participant `json:"participants"`
	Counts       core.Counts        `json:"counts"`
	Query        core.Query         `json:"query"`
}

type checkInFrame struct {
	Type        string           `json:"type"`
	ID          string           `json:"id"`
	Participant core.Participant `json:"participant"`
	Changed     bool             `json:"changed"`
}

type problemFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// handleLive upgrades to a WebSocket and serves one live session.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	ws := websocket.Server{
		Handshake: checkSameOrigin,
		Handler:   s.serveLive,
	}
	ws.ServeHTTP(w, r)
}

// checkSameOrigin rejects browser connections from other origins. Clients
// that send no Origin header still need a session token to get here.
func checkSameOrigin(cfg *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(cfg, r)
	if err != nil {
		return err
	}
	if origin == nil {
		return nil
	}
	if !strings.EqualFold(origin.Host, r.Host) {
		return fmt.Errorf("websocket: origin %q not allowed", origin.Host)
	}
	cfg.Origin = origin
	return nil
}

// liveConn is the server side of one device connection.
type liveConn struct {
	srv  *Server
	conn *websocket.Conn
	req  *http.Request
	sess *core.Session

	// token is re-checked while the socket is open so that sign-out and
	// expiry end the connection.
	token string

	writeMu sync.Mutex

	mu    sync.Mutex
	query core.Query
}

func (s *Server) serveLive(conn *websocket.Conn) {
	defer conn.Close()

	r := conn.Request()
	lc := &liveConn{
		srv:   s,
		conn:  conn,
		req:   r,
		query: core.Query{Status: core.FilterAll},
	}
	if authSess, ok := auth.SessionFromContext(r.Context()); ok {
		lc.token = authSess.Token
	}

	ctx, cancel := context.WithCancel(withActor(r))
	defer cancel()

	sess, err := s.service.OpenSession(ctx)
	if err != nil {
		lc.sendProblem(ctx, frameError, "", err)
		return
	}
	defer sess.Close()
	lc.sess = sess

	ctx = logging.WithSessionID(ctx, sess.ID)
	logger := logging.FromContext(ctx)
	logger.Info("live session started", "participants", len(sess.Snapshot()))

	if err := lc.sendSnapshot(); err != nil {
		return
	}

	runErr := make(chan error, 1)
	go func() {
		err := sess.Run(ctx, lc.emit)
		if errors.Is(err, core.ErrFeedLost) {
			lc.sendProblem(ctx, frameResyncRequired, "", err)
		}
		// Unblocks the read loop.
		conn.Close()
		runErr <- err
	}()

	go lc.watchSession(ctx, s.liveAuthInterval())

	lc.readLoop(ctx)
	sess.Close()
	cancel()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("live session ended", "error", err)
		return
	}
	logger.Info("live session ended")
}

// emit forwards one applied change, or a fresh snapshot after a reload.
func (lc *liveConn) emit(a core.Applied) error {
	if a.Reloaded {
		return lc.sendSnapshot()
	}
	return lc.send(changeFrame{Type: frameChange, Change: a.Change, Counts: a.Counts})
}

func (lc *liveConn) currentQuery() core.Query {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.query
}

func (lc *liveConn) sendSnapshot() error {
	return lc.send(snapshotFrame{
		Type:         frameSnapshot,
		SessionID:    lc.sess.ID,
		Participants: orEmpty(lc.sess.Snapshot()),
		Counts:       lc.sess.Counts(),
		Query:        lc.currentQuery(),
	})
}

func (lc *liveConn) sendView() error {
	q := lc.currentQuery()
	return lc.send(viewFrame{
		Type:         frameView,
		Participants: orEmpty(lc.sess.View(q)),
		Counts:       lc.sess.Counts(),
		Query:        q,
	})
}

// sendProblem logs err and sends it as a localized error frame.
func (lc *liveConn) sendProblem(ctx context.Context, frameType, id string, err error) {
	msg := mapError(err)
	logging.FromContext(ctx).Warn("live request failed",
		"frame", frameType,
		"error", err.Error(),
		"code", msg.Code,
	)
	msg = lc.srv.localize(lc.req, msg)
	_ = lc.send(problemFrame{
		Type:    frameType,
		ID:      id,
		Code:    msg.Code,
		Message: msg.Message,
		Action:  msg.Action,
	})
}

func (lc *liveConn) send(v any) error {
	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()
	_ = lc.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return websocket.JSON.Send(lc.conn, v)
}

// readLoop serves device frames until the connection closes.
func (lc *liveConn) readLoop(ctx context.Context) {
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame inboundFrame
		if err := websocket.JSON.Receive(lc.conn, &frame); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil || !isDecodeError(err) {
				return
			}
			decodeErrors++
			lc.sendProblem(ctx, frameError, "", fmt.Errorf("%w: %w", errInvalidFrame, err))
			if decodeErrors >= maxDecodeErrors {
				return
			}
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			lc.sendProblem(ctx, frameError, "", errTooManyRequests)
			return
		}

		lc.dispatch(ctx, frame)
	}
}

func (lc *liveConn) dispatch(ctx context.Context, frame inboundFrame) {
	if err := lc.authorize(ctx); err != nil {
		lc.endSession(ctx, frame.ID, err)
		return
	}

	switch frame.Type {
	case frameFilter:
		status, err := core.ParseStatusFilter(frame.Status)
		if err != nil {
			lc.sendProblem(ctx, frameError, "", err)
			return
		}
		lc.mu.Lock()
		lc.query = core.Query{Text: frame.Query, Status: status}
		lc.mu.Unlock()
		_ = lc.sendView()

	case frameCheckIn:
		result, err := lc.sess.CheckIn(ctx, frame.ID)
		if err != nil {
			lc.sendProblem(ctx, frameError, frame.ID, err)
			return
		}
		_ = lc.send(checkInFrame{
			Type:        frameCheckIn,
			ID:          frame.ID,
			Participant: result.Participant,
			Changed:     result.Changed,
		})

	case frameReload:
		// The refreshed snapshot arrives through emit.
		if err := lc.sess.Reload(ctx); err != nil {
			lc.sendProblem(ctx, frameError, "", err)
		}

	default:
		lc.sendProblem(ctx, frameError, "", fmt.Errorf("%w: unsupported type %q", errInvalidFrame, frame.Type))
	}
}

// authorize checks that the auth session behind the socket is still valid.
func (lc *liveConn) authorize(ctx context.Context) error {
	_, err := lc.srv.auth.Restore(ctx, lc.token)
	return err
}

// watchSession closes the connection once the auth session is revoked or
// expires, even when the device sends nothing.
func (lc *liveConn) watchSession(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lc.authorize(ctx); err != nil {
				lc.endSession(ctx, "", err)
				return
			}
		}
	}
}

// endSession reports an auth failure and closes the connection, which ends
// the read loop.
func (lc *liveConn) endSession(ctx context.Context, id string, err error) {
	if ctx.Err() != nil {
		return
	}
	lc.sendProblem(ctx, frameError, id, err)
	_ = lc.conn.Close()
}

func (s *Server) liveAuthInterval() time.Duration {
	if d := s.cfg.Server.LiveAuthInterval; d > 0 {
		return d
	}
	return defaultLiveAuthInterval
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func orEmpty(list []core.Participant) []core.Participant {
	if list == nil {
		return []core.Participant{}
	}
	return list
}
