package http

import (
	"context"
	"encoding/json"
	"net/http"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSHandler streams challenge snapshots and accepts lobby and answer actions.
type WSHandler struct {
	service  *app.ChallengeService
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ChallengeService, log *logrus.Entry) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
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
	QuestionID       string  `json:"questionId"`
	SelectedAnswer   *string `json:"selectedAnswer"`
	TimeTakenSeconds float64 `json:"timeTakenSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: publicMessage(err), Kind: domain.Kind(err)}}
}

// ServeWS upgrades GET /ws?code= and wires the socket into the challenge use cases.
func (h *WSHandler) ServeWS(c *gin.Context) {
	code := c.Query("code")
	who := identityFrom(c)
	if code == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing code", "kind": "validation"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	log := h.log.WithFields(logrus.Fields{"code": code, "user_id": who.UserID})

	updates, cancel, err := h.service.Subscribe(ctx, code)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write failed")
				// unblocks the read loop below
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				if !enqueue(send, outboundMessage[any]{Type: "challenge", Payload: view}, closeSignals, writerDone) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !enqueue(send, h.handle(ctx, code, who, inbound), nil, writerDone) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer. It returns false once closed or
// writerDone fires; a nil closed never fires.
func enqueue(send chan<- outboundMessage[any], msg outboundMessage[any], closed, writerDone <-chan struct{}) bool {
	select {
	case send <- msg:
		return true
	case <-closed:
		return false
	case <-writerDone:
		return false
	}
}

func (h *WSHandler) handle(ctx context.Context, code string, who domain.Identity, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "ready":
		p, err := h.service.MarkReady(ctx, code, who.UserID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "participant", Payload: p}
	case "start":
		ch, err := h.service.StartChallenge(ctx, code, who.UserID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "started", Payload: ch}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(domain.Invalid("invalid answer payload"))
		}
		participantID, err := h.participantFor(ctx, code, who.UserID)
		if err != nil {
			return errorMessage(err)
		}
		res, err := h.service.SubmitAnswer(ctx, code, domain.AnswerSubmission{
			ParticipantID:    participantID,
			UserID:           who.UserID,
			QuestionID:       payload.QuestionID,
			SelectedAnswer:   payload.SelectedAnswer,
			TimeTakenSeconds: payload.TimeTakenSeconds,
		})
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "answerResult", Payload: res}
	}
	return errorMessage(domain.Invalid("unsupported message type %q", inbound.Type))
}

func (h *WSHandler) participantFor(ctx context.Context, code, userID string) (string, error) {
	view, err := h.service.Challenge(ctx, code)
	if err != nil {
		return "", err
	}
	for _, p := range view.Participants {
		if p.UserID == userID {
			return p.ID, nil
		}
	}
	return "", domain.ErrParticipantNotFound
}
