package tickship

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	facade "github.com/bft-labs/tickship/pkg/tickship"
)

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (s *countingSink) Persist(ctx context.Context, rec facade.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return nil
}

func TestRun_Once(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	if err := os.WriteFile(path, []byte("[1,2]\n[3,4]\n[5,6]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := &countingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Run(ctx, Config{Peer: "file:" + path, Once: true}, WithSink(sink)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sink.n != 3 {
		t.Errorf("persisted %d records, want 3", sink.n)
	}
}

func TestRun_CancelIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	// Nothing listens on port 1; the ingestor keeps backing off until cancel.
	err := Run(ctx, Config{Peer: "127.0.0.1:1", ReconnectMin: 10 * time.Millisecond, ReconnectMax: 20 * time.Millisecond},
		WithSink(&countingSink{}))
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	if err := Run(context.Background(), Config{Peer: "127.0.0.1:9000"}); err == nil {
		t.Fatal("Run() without a sink succeeded")
	}
}
