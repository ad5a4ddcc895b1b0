package bot

import (
	"strings"
	"testing"
	"time"
)

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("not a cron expr"); d != 0 {
		t.Errorf("bad expression should yield 0, got %v", d)
	}
	d := nextCronDuration("* * * * *")
	if d <= 0 || d > time.Minute {
		t.Errorf("every-minute expression should be within a minute, got %v", d)
	}
}

func TestDigestBuildEmpty(t *testing.T) {
	e := newTestEnv(t)
	digest, err := NewDigest(e.gw, e.svc, testJoinChannel, "0 18 * * *")
	if err != nil {
		t.Fatalf("new digest: %v", err)
	}
	embed, err := digest.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if embed != nil {
		t.Fatalf("no waiting games should suppress the digest, got %+v", embed)
	}
}

func TestDigestBuild(t *testing.T) {
	e := newTestEnv(t)
	e.makeGame(t, "creator", "fixed2v2")
	e.makeGame(t, "other", "duel")

	digest, err := NewDigest(e.gw, e.svc, testJoinChannel, "0 18 * * *")
	if err != nil {
		t.Fatalf("new digest: %v", err)
	}
	embed, err := digest.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if embed == nil {
		t.Fatal("expected a digest embed")
	}
	if !strings.Contains(embed.Title, "2 game(s)") {
		t.Errorf("title = %q", embed.Title)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("expected one field per game, got %d", len(embed.Fields))
	}
	if !strings.Contains(embed.Fields[0].Value, "Players: 1/4") {
		t.Errorf("first game should show 1/4 players, got %q", embed.Fields[0].Value)
	}
	if !strings.Contains(embed.Fields[1].Value, "Mode: 1v1") {
		t.Errorf("second game should show the duel mode, got %q", embed.Fields[1].Value)
	}
}

func TestNewDigestValidation(t *testing.T) {
	e := newTestEnv(t)
	if _, err := NewDigest(nil, e.svc, testJoinChannel, "0 18 * * *"); err == nil {
		t.Error("expected error without gateway")
	}
	if _, err := NewDigest(e.gw, nil, testJoinChannel, "0 18 * * *"); err == nil {
		t.Error("expected error without lobby")
	}
	if _, err := NewDigest(e.gw, e.svc, "", "0 18 * * *"); err == nil {
		t.Error("expected error without channel")
	}
	if _, err := NewDigest(e.gw, e.svc, testJoinChannel, "not a cron"); err == nil {
		t.Error("expected error for unparseable cron expression")
	}
	if _, err := NewDigest(e.gw, e.svc, testJoinChannel, "0 18 * * *"); err != nil {
		t.Errorf("valid digest rejected: %v", err)
	}
}
