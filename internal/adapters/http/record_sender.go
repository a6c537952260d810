package http

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/internal/ports"
)

const recordsEndpoint = "/v1/ingest/ticks"

// tickJSON is the wire shape of one persisted record.
type tickJSON struct {
	Timestamp int64 `json:"timestamp"`
	Value     int32 `json:"value"`
}

type ingestRequest struct {
	Peer  string     `json:"peer,omitempty"`
	Ticks []tickJSON `json:"ticks"`
}

// SenderConfig configures a RecordSender.
type SenderConfig struct {
	// ServiceURL is the base URL of the ingestion service.
	ServiceURL string

	// AuthKey is sent as a bearer token when set.
	AuthKey string

	// Peer is forwarded so the service can tell feeds apart.
	Peer string
}

// RecordSender implements ports.BatchSink by POSTing JSON to an ingestion
// service.
type RecordSender struct {
	client   ports.HTTPClient
	config   SenderConfig
	hostname string
}

var _ ports.BatchSink = (*RecordSender)(nil)

// NewRecordSender creates a new HTTP record sender.
func NewRecordSender(client ports.HTTPClient, config SenderConfig) *RecordSender {
	hostname, _ := os.Hostname()
	return &RecordSender{
		client:   client,
		config:   config,
		hostname: hostname,
	}
}

// Persist sends a single record.
func (s *RecordSender) Persist(ctx context.Context, rec domain.Record) error {
	tick, err := domain.ParseTick(rec)
	if err != nil {
		return err
	}
	return s.send(ctx, []tickJSON{{Timestamp: tick.Timestamp, Value: tick.Value}})
}

// PersistBatch sends every record that converts in a single request.
// Records that do not convert are skipped and reported in the returned error.
func (s *RecordSender) PersistBatch(ctx context.Context, batch *domain.Batch) (int, error) {
	if batch.Empty() {
		return 0, nil
	}

	ticks, convErr := batch.Ticks()
	if len(ticks) == 0 {
		return 0, convErr
	}

	body := make([]tickJSON, len(ticks))
	for i, tick := range ticks {
		body[i] = tickJSON{Timestamp: tick.Timestamp, Value: tick.Value}
	}
	if err := s.send(ctx, body); err != nil {
		return 0, errors.Join(err, convErr)
	}
	return len(ticks), convErr
}

func (s *RecordSender) send(ctx context.Context, ticks []tickJSON) error {
	body, err := json.Marshal(ingestRequest{Peer: s.config.Peer, Ticks: ticks})
	if err != nil {
		return fmt.Errorf("marshal ticks: %w", err)
	}

	url := s.config.ServiceURL + recordsEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if s.config.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.AuthKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-Hostname", s.hostname)
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
