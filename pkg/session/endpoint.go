/*
【ファイル概要: endpoint.go】
Endpoint はプロセス内で有効なストリームのレジストリです。

sync.RWMutexで保護したマップに id をキーとしてストリームを登録し、
DestroyStream/Close で後始末します。パッケージレベルの Logger 変数で
ライフサイクルイベントをログ出力します。
*/
package session

import (
	"sync"

	"github.com/go-logr/logr"
)

// Logger is the package-level logging sink. Discarded by default;
// callers that want stream lifecycle/error logging call SetLogger.
var Logger logr.Logger = logr.Discard()

// SetLogger installs the logger used by this package's components.
func SetLogger(l logr.Logger) {
	Logger = l
}

// Endpoint owns the set of live Streams for one process, keyed by a
// caller-chosen id.
type Endpoint struct {
	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewEndpoint returns an empty Endpoint.
func NewEndpoint() *Endpoint {
	return &Endpoint{streams: make(map[string]*Stream)}
}

// CreateStream validates cfg, opens the stream's socket, wires its
// components, registers it under id, and starts its goroutines.
func (e *Endpoint) CreateStream(id string, cfg StreamConfig) (*Stream, error) {
	if cfg.StreamID == "" {
		cfg.StreamID = id
	}

	stream, err := NewStream(cfg)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.streams[id] = stream
	e.mu.Unlock()

	stream.Start()
	return stream, nil
}

// GetStream looks a stream up by id.
func (e *Endpoint) GetStream(id string) (*Stream, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.streams[id]
	if !ok {
		return nil, ErrUnknownStream
	}
	return s, nil
}

// DestroyStream closes and unregisters the stream. Always succeeds,
// even if id is unknown, so callers never need to handle teardown
// errors for a stream they're discarding anyway.
func (e *Endpoint) DestroyStream(id string) error {
	e.mu.Lock()
	s, ok := e.streams[id]
	delete(e.streams, id)
	e.mu.Unlock()

	if !ok {
		return nil
	}
	if err := s.Close(); err != nil {
		Logger.Error(err, "failed to close stream", "id", id)
	}
	return nil
}

// Streams returns a snapshot of every currently-registered stream.
func (e *Endpoint) Streams() []*Stream {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Stream, 0, len(e.streams))
	for _, s := range e.streams {
		out = append(out, s)
	}
	return out
}

// Close destroys every registered stream.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	streams := e.streams
	e.streams = make(map[string]*Stream)
	e.mu.Unlock()

	for _, s := range streams {
		if err := s.Close(); err != nil {
			Logger.Error(err, "failed to close stream during endpoint shutdown")
		}
	}
	return nil
}
