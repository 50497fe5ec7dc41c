package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKeyPrefix(t *testing.T) {
	c := New(nil, "vetehr:patient")
	if got := c.key("p1"); got != "vetehr:patient:p1" {
		t.Errorf("expected prefixed key, got %s", got)
	}
	if got := New(nil, "").key("p1"); got != "p1" {
		t.Errorf("expected bare key, got %s", got)
	}
}

func TestOpen_InvalidURL(t *testing.T) {
	if _, err := Open(context.Background(), "http://not-redis"); err == nil {
		t.Error("expected error for non-redis url")
	}
}

func TestGetJSON_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := New(client, "test")

	var v map[string]string
	found, err := c.GetJSON(context.Background(), "k", &v)
	if err == nil {
		t.Fatal("expected error from unreachable server")
	}
	if found {
		t.Error("expected miss on error")
	}
	if _, _, err := c.IncrWindow(context.Background(), "ratelimit:user:vet-a", time.Second); err == nil {
		t.Error("expected incr error from unreachable server")
	}
	if err := c.Delete(context.Background()); err != nil {
		t.Errorf("empty delete should be a no-op, got %v", err)
	}
}
