package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"filedeck/internal/domain"
	"filedeck/internal/infra/middleware"
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second
)

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	id        uint64
	actor     string
	ws        *websocket.Conn
	sendCh    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// acceptOptions derives WebSocket origin checks from the CORS settings.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, origin := range s.cfg.CORS.AllowedOrigins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
		} else {
			opts.OriginPatterns = append(opts.OriginPatterns, origin)
		}
	}
	return opts
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Server read/write timeouts must not cut long-lived connections.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	ws, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	cc := &clientConn{
		id:     s.nextConn.Add(1),
		actor:  domain.ActorFromContext(r.Context()),
		ws:     ws,
		sendCh: make(chan Frame, sendQueueSize),
		done:   make(chan struct{}),
	}
	s.clients.Store(cc.id, cc)
	s.metrics.wsClients.Add(1)
	s.logger.Info("websocket client connected", "conn_id", cc.id, "remote", cc.actor)

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.close()
	s.clients.Delete(cc.id)
	s.metrics.wsClients.Add(-1)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("websocket client disconnected", "conn_id", cc.id)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		go s.dispatchRPC(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				cc.close()
				return
			}
		}
	}
}

// dispatchRPC runs one request frame with its own request ID and the
// connection's actor, then queues the response.
func (s *Server) dispatchRPC(ctx context.Context, cc *clientConn, req Frame) {
	ctx = domain.ContextWithRequestID(ctx, middleware.NewRequestID())
	ctx = domain.ContextWithActor(ctx, cc.actor)

	s.metrics.rpcCalls.Add(1)
	handler, ok := s.rpc[req.Method]
	if !ok {
		s.respond(cc, req.ID, nil, domain.NewDomainError("Gateway.RPC", domain.ErrRPCMethodNotFound, req.Method))
		return
	}
	result, err := handler(ctx, req.Payload)
	if err != nil && statusFor(err) >= http.StatusInternalServerError {
		s.logger.Error("rpc failed", "method", req.Method, "request_id", domain.RequestIDFromContext(ctx), "error", err)
	}
	s.respond(cc, req.ID, result, err)
}

func (s *Server) respond(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{Type: FrameTypeResponse, ID: id, Payload: result}
	if err != nil {
		resp.Payload = nil
		resp.Error = errorDetail(err)
		resp.Code = string(domain.ErrorCodeOf(err))
	}
	s.enqueue(cc, resp)
}

func (s *Server) enqueue(cc *clientConn, frame Frame) {
	select {
	case <-cc.done:
	case cc.sendCh <- frame:
	default:
		s.metrics.framesDropped.Add(1)
		s.logger.Warn("websocket send queue full, frame dropped", "conn_id", cc.id, "type", string(frame.Type))
	}
}

// broadcast forwards a bus event to every connected client.
func (s *Server) broadcast(_ context.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	frame := Frame{Type: FrameTypeEvent, Payload: payload}
	s.clients.Range(func(_, v any) bool {
		s.enqueue(v.(*clientConn), frame)
		return true
	})
}

func (s *Server) closeClients() {
	s.clients.Range(func(key, v any) bool {
		cc := v.(*clientConn)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})
}

// clientCount returns the number of connected WebSocket clients.
func (s *Server) clientCount() int {
	return int(s.metrics.wsClients.Load())
}
