// Command ws_smoke plays one scripted game between two sessions through a
// running relay and exits non-zero if they disagree on the result.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"connect4_events/internal/domain"
	"connect4_events/internal/game"
	"connect4_events/internal/session"
	"connect4_events/internal/transport/wsrelay"
)

func main() {
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := fmt.Sprintf("http://127.0.0.1:%s", port)
	relayURL := fmt.Sprintf("ws://127.0.0.1:%s/ws", port)

	var created struct {
		Code        string `json:"code"`
		CreatorLink string `json:"creatorLink"`
		JoinerLink  string `json:"joinerLink"`
	}
	mustPost(base+"/api/v1/games", map[string]string{"player": "smokeA"}, &created)
	log.Printf("game %s created", created.Code)

	creatorParams, err := domain.ParseJoinURL(created.CreatorLink)
	if err != nil {
		log.Fatalf("creator link: %v", err)
	}
	joinerParams, err := domain.ParseJoinURL(created.JoinerLink + "&player=smokeB")
	if err != nil {
		log.Fatalf("joiner link: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := open(ctx, base, relayURL, creatorParams)
	defer a.Leave()
	b := open(ctx, base, relayURL, joinerParams)
	defer b.Leave()

	// A stacks column 3, B column 4; A wins on the fourth drop
	script := []struct {
		who *session.Coordinator
		col int
	}{
		{a, 3}, {b, 4}, {a, 3}, {b, 4}, {a, 3}, {b, 4}, {a, 3},
	}
	for i, step := range script {
		waitFor(ctx, step.who, func(v session.View) bool { return v.IsPlayerTurn })
		if !step.who.Play(step.col) {
			log.Fatalf("move %d (col %d) rejected", i+1, step.col)
		}
		log.Printf("move %d: %s -> col %d", i+1, step.who.Snapshot().PlayerName, step.col)
	}

	waitFor(ctx, b, func(v session.View) bool { return v.State.GameOver })
	if !b.SendChat("gg") {
		log.Fatal("chat rejected")
	}
	waitFor(ctx, a, func(v session.View) bool { return len(v.Chat) > 0 })

	va, vb := a.Snapshot(), b.Snapshot()
	if va.State.Board != vb.State.Board || va.State.Winner != game.PlayerOne || vb.State.Winner != game.PlayerOne {
		log.Fatalf("sessions disagree: a=%s b=%s", va.Headline(), vb.Headline())
	}
	log.Printf("ok: %s / chat from %s", va.Headline(), va.Chat[0].Player)
}

func open(ctx context.Context, base, relayURL string, p domain.JoinParams) *session.Coordinator {
	var auth struct {
		Token string `json:"token"`
	}
	mustPost(base+"/api/v1/auth", map[string]string{"player": p.Player}, &auth)

	tr, err := wsrelay.Dial(ctx, relayURL, auth.Token)
	if err != nil {
		log.Fatalf("dial relay as %s: %v", p.Player, err)
	}
	c, err := session.New(session.Config{
		Code:       p.Code,
		PlayerName: p.Player,
		Role:       p.Role(),
		Transport:  tr,
	})
	if err != nil {
		log.Fatalf("session %s: %v", p.Player, err)
	}
	if err := c.Join(ctx); err != nil {
		log.Fatalf("join %s: %v", p.Player, err)
	}
	return c
}

func waitFor(ctx context.Context, c *session.Coordinator, cond func(session.View) bool) {
	for !cond(c.Snapshot()) {
		select {
		case <-c.Changes():
		case <-ctx.Done():
			log.Fatalf("timeout waiting on %s: %s", c.Snapshot().PlayerName, c.Snapshot().Headline())
		}
	}
}

func mustPost(url string, body, out any) {
	raw, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		log.Fatalf("POST %s: status %d", url, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		log.Fatalf("decode %s: %v", url, err)
	}
}
