package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Loader loads one model asset at most once and hands out the cached handle.
// Failed loads are not cached; the next Load retries.
type Loader struct {
	path  string
	group singleflight.Group
	open  func(path string) (io.ReadCloser, error)

	mu    sync.RWMutex
	model *Model
	state State
}

func NewLoader(path string) *Loader {
	return &Loader{
		path: path,
		open: func(path string) (io.ReadCloser, error) { return os.Open(path) },
	}
}

func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Load returns the Ready model, reading the asset on first use. Concurrent
// callers share a single in-flight read that no caller owns; a cancelled ctx
// only abandons that caller's wait.
func (l *Loader) Load(ctx context.Context) (*Model, error) {
	if m := l.cached(); m != nil {
		return m, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &ModelLoadError{Path: l.path, Err: err}
	}

	results := l.group.DoChan(l.path, func() (any, error) {
		if m := l.cached(); m != nil {
			return m, nil
		}
		l.setState(Loading)

		start := time.Now()
		m, err := l.read()
		if err != nil {
			l.setState(Failed)
			slog.Error("failed to load model", "path", l.path, "error", err)
			return nil, &ModelLoadError{Path: l.path, Err: err}
		}

		l.mu.Lock()
		l.model = m
		l.state = Ready
		l.mu.Unlock()
		slog.Info("model loaded",
			"path", l.path,
			"name", m.Name(),
			"layers", len(m.layers),
			"input_shape", m.InputShape(),
			"duration_ms", time.Since(start).Milliseconds())
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, &ModelLoadError{Path: l.path, Err: ctx.Err()}
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}

// Predict loads the model if needed and classifies the tensor.
func (l *Loader) Predict(ctx context.Context, t Tensor) (Prediction, error) {
	m, err := l.Load(ctx)
	if err != nil {
		return Prediction{}, err
	}
	return m.Predict(t)
}

func (l *Loader) cached() *Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model
}

func (l *Loader) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Loader) read() (*Model, error) {
	f, err := l.open(l.path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close model file", "path", l.path, "error", cerr)
		}
	}()

	var r io.Reader = f
	if strings.HasSuffix(l.path, ".zst") {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return decodeModel(r)
}
