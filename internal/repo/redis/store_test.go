package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/repo/repotest"
)

func TestRedisStore_Conformance(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), ConnectOptions{Addr: mr.Addr()}, zap.NewNop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	repotest.Run(t, NewStore(client), "")

	if !mr.Exists(RecordKey("checks", "a")) {
		t.Fatalf("expected record under %s", RecordKey("checks", "a"))
	}
	if ok, _ := mr.SIsMember(IndexKey("checks"), "a"); !ok {
		t.Fatalf("expected id in %s", IndexKey("checks"))
	}
}

func TestConnect_GivesUpAfterTimeout(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	_, err = Connect(context.Background(), ConnectOptions{
		Addr:           addr,
		ConnectTimeout: 300 * time.Millisecond,
		RetryInterval:  50 * time.Millisecond,
		MaxWait:        100 * time.Millisecond,
		PingTimeout:    50 * time.Millisecond,
	}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("Connect ignored its timeout: %s", time.Since(start))
	}
}
