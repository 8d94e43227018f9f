package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"math-dash-service/internal/app"
	"math-dash-service/internal/domain"
	"math-dash-service/internal/metrics"
	"math-dash-service/internal/progress"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimit bounds inbound messages per connection.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type WSHandler struct {
	service  *app.GameService
	log      *zap.Logger
	limit    RateLimit
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, limit RateLimit, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if limit.PerSecond <= 0 {
		limit.PerSecond = 20
	}
	if limit.Burst <= 0 {
		limit.Burst = 40
	}
	return &WSHandler{
		service: service,
		log:     log,
		limit:   limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	// Value is a JSON number or a string of free-text input.
	Value json.RawMessage `json:"value"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type welcomePayload struct {
	PlayerID string                `json:"playerId"`
	Ledger   domain.Ledger         `json:"ledger"`
	Settings domain.Settings       `json:"settings"`
	Round    *domain.RoundSnapshot `json:"round,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	ctx := r.Context()
	log := h.log.With(zap.String("player", playerID))

	events, cancel := h.service.Subscribe(ctx, playerID)
	defer func() {
		cancel()
		h.service.Disconnect(ctx, playerID)
	}()

	welcome := h.welcome(r, playerID, log)

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Single writer: every outbound message goes through send.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				// Keep draining so producers never block on a dead connection.
				for range send {
				}
				return
			}
		}
	}()

	send <- outboundMessage{Type: "welcome", Payload: welcome}

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: ev.Type, Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(h.limit.PerSecond), h.limit.Burst)
	reply := func(err error) {
		if err == nil {
			return
		}
		_, payload := classify(err)
		select {
		case send <- outboundMessage{Type: "error", Payload: payload}:
		case <-closeSignals:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !limiter.Allow() {
			reply(errRateLimited)
			continue
		}
		reply(h.dispatch(r, playerID, inbound))
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// welcome never fails: unreadable progress or settings fall back to defaults
// so the player can still play.
func (h *WSHandler) welcome(r *http.Request, playerID string, log *zap.Logger) welcomePayload {
	ctx := r.Context()
	out := welcomePayload{PlayerID: playerID}

	ledger, err := h.service.Visit(ctx, playerID)
	if err != nil {
		log.Warn("ledger unavailable, welcoming with defaults", zap.Error(err))
		ledger = progress.NewProgress().Ledger
	}
	out.Ledger = ledger

	settings, err := h.service.Preferences().Settings(ctx, playerID)
	if err != nil {
		log.Warn("settings unavailable, welcoming with defaults", zap.Error(err))
		settings = h.service.Preferences().Defaults()
	}
	out.Settings = settings

	if snap, err := h.service.Snapshot(ctx, playerID); err == nil {
		out.Round = &snap
	}
	return out
}

// dispatch runs one inbound command. Results reach the client as hub events;
// only failures are returned.
func (h *WSHandler) dispatch(r *http.Request, playerID string, inbound inboundMessage) error {
	ctx := r.Context()
	switch inbound.Type {
	case "start":
		var opts app.StartOptions
		if len(inbound.Payload) > 0 && !bytes.Equal(inbound.Payload, []byte("null")) {
			if err := json.Unmarshal(inbound.Payload, &opts); err != nil {
				return errBadPayload
			}
		}
		_, err := h.service.StartRound(ctx, playerID, opts)
		return err
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errBadPayload
		}
		_, err := h.service.SubmitAnswer(ctx, playerID, answerText(payload.Value))
		return err
	case "pause":
		_, err := h.service.Pause(ctx, playerID)
		return err
	case "resume":
		_, err := h.service.Resume(ctx, playerID)
		return err
	case "abandon":
		return h.service.Abandon(ctx, playerID)
	default:
		return errUnsupported
	}
}

// answerText unwraps a JSON string, or passes a number's literal through.
func answerText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
