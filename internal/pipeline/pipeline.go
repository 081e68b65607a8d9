// Package pipeline drives one catalog load from download to database.
//
// A run moves through a fixed sequence of states:
//
//	idle -> acquiring -> decompressing -> streaming -> done
//
// Any failure moves it to failed and stops it. Nothing is retried and no
// chunk is skipped; chunks loaded before a failure stay in the database.
//
// Once streaming starts the run no longer observes cancellation of the
// caller's context. A load that has begun writing runs to done or failed.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalog-etl/internal/acquire"
	"github.com/JonMunkholm/catalog-etl/internal/core"
	"github.com/JonMunkholm/catalog-etl/internal/feed"
)

// DefaultFeedURL is the catalog feed loaded when none is configured.
const DefaultFeedURL = "https://tyroo-engineering-assesments.s3.us-west-2.amazonaws.com/Tyroo-dummy-data.csv.gz"

// ErrAlreadyRun is returned when Run is called twice on one Pipeline.
var ErrAlreadyRun = errors.New("pipeline: already run")

// State is a run's position in the state machine.
type State string

const (
	StateIdle          State = "idle"
	StateAcquiring     State = "acquiring"
	StateDecompressing State = "decompressing"
	StateStreaming     State = "streaming"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether s is done or failed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Config describes one load.
type Config struct {
	RunID            string // generated when empty
	FeedURL          string
	WorkDir          string // downloads and decompressed files
	ChunkSize        int
	DecompressToDisk bool // write the .csv next to the archive before reading
	KeepFiles        bool // keep downloaded and decompressed files after the run
}

// Fetcher downloads a URL to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) (int64, error)
}

// Decompressor turns a downloaded archive into a CSV stream.
type Decompressor interface {
	Open(path string) (io.ReadCloser, error)
	ToFile(src, dst string) (int64, error)
}

// SinkOpener opens the destination for a run. It is called once, when
// streaming starts.
type SinkOpener func(ctx context.Context) (core.Sink, error)

// ChunkStats describes one loaded chunk.
type ChunkStats struct {
	RunID       string
	Index       int
	SourceRows  int
	CleanedRows int
	Rows        map[string]int64
	BytesRead   int64
	Duration    time.Duration
}

// Deps are the collaborators of a run.
type Deps struct {
	Fetcher      Fetcher
	Decompressor Decompressor
	OpenSink     SinkOpener
	Logger       *slog.Logger

	// Optional observers, called synchronously from Run.
	OnState func(runID string, s State)
	OnChunk func(ChunkStats)
}

// Report summarizes a finished run.
type Report struct {
	RunID           string
	State           State
	Chunks          int
	SourceRows      int64
	CleanedRows     int64
	Rows            map[string]int64
	BytesDownloaded int64
	BytesRead       int64
	StartedAt       time.Time
	Duration        time.Duration
	Err             error
}

// Pipeline runs one load. It is single use.
type Pipeline struct {
	cfg    Config
	deps   Deps
	id     string
	logger *slog.Logger

	mu      sync.RWMutex
	state   State
	started atomic.Bool
}

// New creates a pipeline in the idle state.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = feed.DefaultChunkSize
	}
	if deps.Decompressor == nil {
		deps.Decompressor = acquire.GzipDecompressor{}
	}

	id := cfg.RunID
	if id == "" {
		id = uuid.NewString()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		id:     id,
		logger: logger.With("run_id", id),
		state:  StateIdle,
	}
}

// ID returns the run id.
func (p *Pipeline) ID() string { return p.id }

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()

	p.logger.Debug("state changed", "state", s)
	if p.deps.OnState != nil {
		p.deps.OnState(p.id, s)
	}
}

// Run executes the load. The returned Report is never nil, even on failure;
// the error is an *Error.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	rep := &Report{
		RunID:     p.id,
		Rows:      make(map[string]int64, core.TableCount()),
		StartedAt: time.Now(),
	}

	p.logger.Info("ETL process started", "feed_url", p.cfg.FeedURL, "chunk_size", p.cfg.ChunkSize)

	err := p.run(ctx, rep)
	rep.Duration = time.Since(rep.StartedAt)

	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			p.logger.Error("ETL process failed",
				"stage", perr.State,
				"chunk", perr.Chunk,
				"kind", perr.Kind,
				"error", perr.Err,
				"chunks_loaded", rep.Chunks,
			)
		}
		rep.Err = err
		rep.State = StateFailed
		p.setState(StateFailed)
		return rep, err
	}

	rep.State = StateDone
	p.setState(StateDone)
	p.logger.Info("ETL process completed.",
		"chunks", rep.Chunks,
		"source_rows", rep.SourceRows,
		"cleaned_rows", rep.CleanedRows,
		"duration", rep.Duration.Round(time.Millisecond),
	)
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, rep *Report) error {
	archive := filepath.Join(p.cfg.WorkDir, p.id+"-"+archiveName(p.cfg.FeedURL))

	p.setState(StateAcquiring)
	n, err := p.deps.Fetcher.Fetch(ctx, p.cfg.FeedURL, archive)
	if err != nil {
		return newError(ErrAcquisition, StateAcquiring, -1, err)
	}
	rep.BytesDownloaded = n
	defer p.removeFile(archive)

	p.setState(StateDecompressing)
	stream, err := p.openStream(archive)
	if err != nil {
		return newError(ErrDecompression, StateDecompressing, -1, err)
	}
	defer stream.Close()

	// From here on the run completes or fails on its own terms.
	streamCtx := context.WithoutCancel(ctx)

	p.setState(StateStreaming)
	sink, err := p.deps.OpenSink(streamCtx)
	if err != nil {
		return newError(ErrSinkOpen, StateStreaming, -1, err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			p.logger.Warn("failed to close sink", "error", err)
		}
	}()

	return p.stream(streamCtx, stream, sink, rep)
}

func (p *Pipeline) stream(ctx context.Context, r io.Reader, sink core.Sink, rep *Report) error {
	src := feed.NewSource(r, p.cfg.ChunkSize)
	loader := core.NewLoader(sink, p.logger)

	for {
		chunk, err := src.Next()
		rep.BytesRead = src.BytesRead()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return readError(rep.Chunks, err)
		}

		start := time.Now()
		p.logger.Info("Processing chunk", "chunk", chunk.Index, "first_line", chunk.FirstLine, "rows", len(chunk.Rows))

		cleaned := core.Clean(chunk)
		proj, err := core.Project(cleaned)
		if err != nil {
			return newError(ErrProjection, StateStreaming, chunk.Index, err)
		}

		res, err := loader.LoadChunk(ctx, proj)
		for table, n := range res.Rows {
			rep.Rows[table] += n
		}
		if err != nil {
			return newError(ErrLoad, StateStreaming, chunk.Index, err)
		}

		rep.Chunks++
		rep.SourceRows += int64(cleaned.SourceRows)
		rep.CleanedRows += int64(len(cleaned.Records))

		stats := ChunkStats{
			RunID:       p.id,
			Index:       chunk.Index,
			SourceRows:  cleaned.SourceRows,
			CleanedRows: len(cleaned.Records),
			Rows:        res.Rows,
			BytesRead:   rep.BytesRead,
			Duration:    time.Since(start),
		}
		p.logger.Info("Chunk processed successfully.",
			"chunk", chunk.Index,
			"source_rows", stats.SourceRows,
			"cleaned_rows", stats.CleanedRows,
			"rows_written", res.Total(),
			"duration", stats.Duration.Round(time.Millisecond),
		)
		if p.deps.OnChunk != nil {
			p.deps.OnChunk(stats)
		}
	}
}

// openStream returns the decompressed feed, going through a .csv file on
// disk when configured to.
func (p *Pipeline) openStream(archive string) (io.ReadCloser, error) {
	if !p.cfg.DecompressToDisk {
		return p.deps.Decompressor.Open(archive)
	}

	csvPath := strings.TrimSuffix(archive, ".gz")
	if csvPath == archive {
		csvPath = archive + ".csv"
	}

	n, err := p.deps.Decompressor.ToFile(archive, csvPath)
	if err != nil {
		return nil, err
	}
	p.logger.Info("feed decompressed", "path", csvPath, "bytes", n)

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	return &removingFile{File: f, remove: func() { p.removeFile(csvPath) }}, nil
}

func (p *Pipeline) removeFile(name string) {
	if p.cfg.KeepFiles {
		return
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove work file", "path", name, "error", err)
	}
}

// readError classifies a failure from the feed reader. Corrupt gzip data
// surfaces here, mid-stream, rather than at open time.
func readError(nextChunk int, err error) *Error {
	if errors.Is(err, acquire.ErrInvalidArchive) {
		return newError(ErrDecompression, StateStreaming, nextChunk, err)
	}
	var pe *feed.ParseError
	if errors.As(err, &pe) {
		return newError(ErrParse, StateStreaming, pe.Chunk, err)
	}
	return newError(ErrParse, StateStreaming, nextChunk, err)
}

// archiveName picks a local file name for the download from the URL path.
func archiveName(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return "feed.csv.gz"
}

type removingFile struct {
	*os.File
	remove func()
}

func (f *removingFile) Close() error {
	err := f.File.Close()
	f.remove()
	return err
}
