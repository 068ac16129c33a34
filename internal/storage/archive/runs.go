package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/mnqlab/fractal/internal/core"
	"github.com/mnqlab/fractal/internal/engine"
	"github.com/mnqlab/fractal/internal/tradelog"
)

// Archiver writes a run's artifacts to a storage backend under
// runs/<run-id>/: the trade log as CSV and the full result as JSON.
type Archiver struct {
	store  Storage
	logger *zap.Logger
}

// NewArchiver creates an archiver over the given backend.
func NewArchiver(store Storage, logger ...*zap.Logger) *Archiver {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Archiver{store: store, logger: l}
}

// SaveRun persists the result and returns the artifact paths written.
func (a *Archiver) SaveRun(ctx context.Context, res *engine.Result) ([]string, error) {
	if res == nil || res.RunID == "" {
		return nil, core.WrapError(core.ErrArchiveFailed,
			core.ErrNoData)
	}
	base := path.Join("runs", res.RunID)

	var buf bytes.Buffer
	if err := tradelog.Write(&buf, res.Trades); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	tradesPath := path.Join(base, "trades.csv")
	if err := a.store.Write(ctx, tradesPath, buf.Bytes()); err != nil {
		return nil, err
	}

	summary, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	resultPath := path.Join(base, "result.json")
	if err := a.store.Write(ctx, resultPath, summary); err != nil {
		return nil, err
	}

	a.logger.Info("run archived",
		zap.String("run_id", res.RunID),
		zap.Int("trades", len(res.Trades)))
	return []string{tradesPath, resultPath}, nil
}

// LoadResult reads back an archived result summary.
func (a *Archiver) LoadResult(ctx context.Context, runID string) (*engine.Result, error) {
	data, err := a.store.Read(ctx, path.Join("runs", runID, "result.json"))
	if err != nil {
		return nil, err
	}
	var res engine.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	return &res, nil
}

// ListRuns returns the archived run IDs.
func (a *Archiver) ListRuns(ctx context.Context) ([]string, error) {
	paths, err := a.store.List(ctx, "runs")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, "runs/")
		if !ok {
			continue
		}
		id, _, ok := strings.Cut(rest, "/")
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
