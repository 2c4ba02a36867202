package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"edvora-attempt-service/internal/app"
	"edvora-attempt-service/internal/domain"
	"github.com/gorilla/websocket"
)

// AttemptArchive records submitted attempts server-side (optional).
type AttemptArchive interface {
	Archive(ctx context.Context, userID string, record domain.AttemptRecord) error
}

// WSHandler runs one attempt engine per connection and translates socket
// messages into engine operations. It is the adapter a browser shell talks
// to; all quiz logic stays in the engine.
type WSHandler struct {
	catalog  app.QuizCatalog
	sessions app.SessionHub
	grader   app.Grader
	archive  AttemptArchive
	upgrader websocket.Upgrader
}

func NewWSHandler(catalog app.QuizCatalog, sessions app.SessionHub, grader app.Grader, archive AttemptArchive) *WSHandler {
	return &WSHandler{
		catalog:  catalog,
		sessions: sessions,
		grader:   grader,
		archive:  archive,
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

type selectPayload struct {
	QuestionIndex int `json:"questionIndex"`
	OptionIndex   int `json:"optionIndex"`
}

type gradedPayload struct {
	Record     domain.AttemptRecord `json:"record"`
	Percentage float64              `json:"percentage"`
	Passed     bool                 `json:"passed"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives a full attempt over the socket.
// Inbound message types: select, advance, back. Outbound: question, graded,
// review, error.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	token := r.URL.Query().Get("token")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.sessions.Session(r.Context(), userID, displayName, token)
	if err != nil {
		writeError(conn, err)
		return
	}

	quiz, err := h.catalog.GetQuiz(r.Context(), quizID)
	if err != nil {
		writeError(conn, err)
		return
	}

	engine, err := app.NewAttemptEngine(quiz, h.grader, session)
	if err != nil {
		writeError(conn, err)
		return
	}

	_ = conn.WriteJSON(outboundMessage[domain.QuestionView]{Type: "question", Payload: engine.CurrentQuestion()})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				writeError(conn, errors.New("invalid select payload"))
				continue
			}
			if err := engine.SelectOption(payload.QuestionIndex, payload.OptionIndex); err != nil {
				writeError(conn, err)
				continue
			}
			_ = conn.WriteJSON(outboundMessage[domain.QuestionView]{Type: "question", Payload: engine.CurrentQuestion()})
		case "advance":
			record, err := engine.Advance(r.Context())
			if err != nil {
				writeError(conn, err)
				continue
			}
			if record == nil {
				_ = conn.WriteJSON(outboundMessage[domain.QuestionView]{Type: "question", Payload: engine.CurrentQuestion()})
				continue
			}
			h.archiveAttempt(r.Context(), userID, *record)
			_ = conn.WriteJSON(outboundMessage[gradedPayload]{Type: "graded", Payload: gradedPayload{
				Record:     *record,
				Percentage: record.Percentage(),
				Passed:     record.Passed(),
			}})
			_ = conn.WriteJSON(outboundMessage[[]domain.ReviewEntry]{Type: "review", Payload: app.ReconstructReview(*record, quiz)})
		case "back":
			if err := engine.GoBack(); err != nil {
				writeError(conn, err)
				continue
			}
			_ = conn.WriteJSON(outboundMessage[domain.QuestionView]{Type: "question", Payload: engine.CurrentQuestion()})
		default:
			writeError(conn, errors.New("unsupported message type"))
		}
	}
}

func (h *WSHandler) archiveAttempt(ctx context.Context, userID string, record domain.AttemptRecord) {
	if h.archive == nil {
		return
	}
	if err := h.archive.Archive(ctx, userID, record); err != nil {
		// the session store already holds the record; the archive is auxiliary
		log.Printf("archive attempt for %s: %v", userID, err)
	}
}

func writeError(conn *websocket.Conn, err error) {
	_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
}
