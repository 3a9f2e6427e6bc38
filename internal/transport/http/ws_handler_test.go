package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketChallengeFlow(t *testing.T) {
	env := newTestEnv(t)
	host := tokenFor(t, "host", "student")
	guest := tokenFor(t, "guest", "student")

	rec := env.do(t, http.MethodPost, "/api/challenges", host, map[string]any{
		"categories":    []string{"Cardiology"},
		"difficulties":  []string{"hard"},
		"questionCount": 2,
	})
	expectStatus(t, rec, http.StatusCreated)
	code := decode[map[string]any](t, rec)["code"].(string)
	expectStatus(t, env.do(t, http.MethodPost, "/api/challenges/"+code+"/join", guest, nil), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/challenges/"+code+"/ready", guest, nil), http.StatusOK)

	server := httptest.NewServer(env.router)
	defer server.Close()

	q := url.Values{"code": {code}, "token": {host}}
	u := "ws" + server.URL[len("http"):] + "/ws?" + q.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot first.
	_, payload := readNext(conn, t, "challenge")
	if payload["challenge"] == nil {
		t.Fatalf("expected challenge snapshot, got %v", payload)
	}

	send(t, conn, map[string]any{"type": "ready"})
	participant := readUntil(conn, t, "participant")
	if participant["status"] != "ready" {
		t.Fatalf("expected ready participant, got %v", participant)
	}

	send(t, conn, map[string]any{"type": "start"})
	started := readUntil(conn, t, "started")
	ids, _ := started["questionIds"].([]any)
	if len(ids) != 2 {
		t.Fatalf("expected 2 questions, got %v", started["questionIds"])
	}

	qid := ids[0].(string)
	question, err := env.bank.GetQuestion(context.Background(), qid)
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	send(t, conn, map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId":       qid,
			"selectedAnswer":   question.CorrectAnswer,
			"timeTakenSeconds": 3,
		},
	})
	result := readUntil(conn, t, "answerResult")
	if result["isCorrect"] != true || result["pointsEarned"] != float64(160) {
		t.Fatalf("unexpected answer result %v", result)
	}

	send(t, conn, map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": qid, "timeTakenSeconds": 3},
	})
	errPayload := readUntil(conn, t, "error")
	if errPayload["kind"] != "conflict" {
		t.Fatalf("expected conflict on duplicate answer, got %v", errPayload)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?code=123456"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestWebSocketUnknownChallenge(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	q := url.Values{"code": {"999999"}, "token": {tokenFor(t, "u1", "")}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws?"+q.Encode(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "error")
	if payload["kind"] != "not_found" {
		t.Fatalf("expected not_found, got %v", payload)
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

// readUntil skips snapshot broadcasts interleaved with direct replies.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == expect {
			return payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return nil
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func TestEnqueueStopsAfterWriterExit(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})

	if !enqueue(send, outboundMessage[any]{Type: "challenge"}, nil, writerDone) {
		t.Fatalf("expected first message to be buffered")
	}

	close(writerDone)
	returned := make(chan bool, 1)
	go func() {
		returned <- enqueue(send, outboundMessage[any]{Type: "challenge"}, nil, writerDone)
	}()
	select {
	case ok := <-returned:
		if ok {
			t.Fatalf("expected enqueue to give up on a full buffer with no writer")
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked after the writer exited")
	}
}
