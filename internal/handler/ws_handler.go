package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
	ws "github.com/stemsi/exstem-mock/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live session state and accepts candidate intents.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:id/stream
// Pushes a state event every tick and a graded event on submission.
func (h *WSHandler) SessionStream(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	updates, unsubscribe, err := h.sessionService.Subscribe(id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", id).Logger()
	wsLog.Info().Msg("Candidate connected")

	// All writes go through the writer goroutine; gorilla allows one writer.
	out := make(chan interface{}, 16)
	done := make(chan struct{})
	go h.writeLoop(conn, wsLog, updates, out, done)

	if view, err := h.sessionService.Get(id); err == nil {
		out <- ws.ResponseEnvelope{Event: ws.EventState, Data: view}
	}

	for {
		var env ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.dispatch(wsLog, id, env)
		select {
		case out <- reply:
		case <-done:
			return
		}
	}
	close(out)
	<-done
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, log zerolog.Logger, updates <-chan service.Update, out <-chan interface{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				// Session left the registry.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			var msg interface{}
			if u.Kind == service.UpdateGraded {
				msg = ws.ResponseEnvelope{Event: ws.EventGraded, Data: u.Outcome}
			} else {
				msg = ws.ResponseEnvelope{Event: ws.EventState, Data: u.State}
			}
			if err := ws.WriteTyped(conn, msg); err != nil {
				log.Debug().Err(err).Msg("Push failed")
				return
			}
		case msg, ok := <-out:
			if !ok {
				return
			}
			if err := ws.WriteTyped(conn, msg); err != nil {
				log.Debug().Err(err).Msg("Reply failed")
				return
			}
		}
	}
}

// dispatch applies one client action and returns the reply to send.
func (h *WSHandler) dispatch(log zerolog.Logger, id string, env ws.RequestEnvelope) interface{} {
	var (
		view *service.SessionView
		err  error
	)
	switch env.Action {
	case ws.ActionPing:
		return ws.ResponseEnvelope{Event: ws.EventPong}

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := ws.DecodeData(env, &req); err != nil || req.QuestionIndex == nil {
			return wsError(response.ErrInvalidPayload)
		}
		view, err = h.sessionService.SelectAnswer(id, *req.QuestionIndex, req.OptionIndex)

	case ws.ActionFlag:
		var req ws.FlagRequest
		if err := ws.DecodeData(env, &req); err != nil || req.QuestionIndex == nil {
			return wsError(response.ErrInvalidPayload)
		}
		view, err = h.sessionService.ToggleFlag(id, *req.QuestionIndex)

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if err := ws.DecodeData(env, &req); err != nil {
			return wsError(response.ErrInvalidPayload)
		}
		view, err = h.sessionService.Navigate(id, req.Direction, req.QuestionIndex)

	case ws.ActionSubmit:
		outcome, err := h.sessionService.Submit(id)
		if err != nil {
			return h.wsFail(log, err)
		}
		return ws.ResponseEnvelope{Event: ws.EventGraded, Data: outcome}

	default:
		log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
		return ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrInvalidPayload), Error: "unknown action: " + string(env.Action)}
	}

	if err != nil {
		return h.wsFail(log, err)
	}
	return ws.ResponseEnvelope{Event: ws.EventSuccess, Data: view.State}
}

func (h *WSHandler) wsFail(log zerolog.Logger, err error) ws.ErrorResponse {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Action failed")
	}
	return wsError(code)
}

func wsError(code response.ErrCode) ws.ErrorResponse {
	return ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)}
}
