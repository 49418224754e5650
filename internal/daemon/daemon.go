package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/gmickel/gno/internal/search"
)

// Daemon keeps one active search.Retrieval warm behind a Unix socket so
// repeated CLI search/vsearch/query calls skip model reinitialization.
// It implements RequestHandler directly; there is exactly one store and
// one model preset per daemon, matching gno's single-index model.
type Daemon struct {
	cfg       Config
	retrieval *search.Retrieval
	server    *Server
	pidFile   *PIDFile
	started   time.Time
}

// NewDaemon creates a daemon serving searches against retrieval.
func NewDaemon(cfg Config, retrieval *search.Retrieval) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	server, err := NewServer(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		retrieval: retrieval,
		server:    server,
		pidFile:   NewPIDFile(cfg.PIDPath),
	}
	server.SetHandler(d)
	return d, nil
}

// Start writes the PID file, binds the socket, and serves until ctx is
// cancelled. The PID file is removed on return.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pidFile.Write(); err != nil {
		return err
	}
	defer func() { _ = d.pidFile.Remove() }()

	d.started = time.Now()
	return d.server.ListenAndServe(ctx)
}

// HandleSearch runs one retrieval call chosen by params.Mode.
func (d *Daemon) HandleSearch(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	opts := search.RetrievalOptions{
		QueryText:        params.Query,
		Limit:            params.Limit,
		MinScore:         params.MinScore,
		HasMinScore:      params.HasMinScore,
		CollectionFilter: params.Collections,
		LanguageHint:     params.Language,
		Full:             params.Full,
		LineNumbers:      params.LineNumbers,
		NoExpand:         params.NoExpand,
		NoRerank:         params.NoRerank,
	}

	var (
		qr  *search.QueryResult
		err error
	)
	switch params.Mode {
	case search.ModeVector:
		qr, err = d.retrieval.VSearch(ctx, opts)
	case search.ModeHybrid:
		qr, err = d.retrieval.Query(ctx, opts)
	default:
		qr, err = d.retrieval.Search(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(qr.Results))
	for i, r := range qr.Results {
		results[i] = SearchResult{
			Docid:        r.Docid,
			URI:          r.URI,
			Title:        r.Title,
			Collection:   r.Collection,
			Score:        r.Score,
			SnippetStart: r.SnippetStart,
			SnippetEnd:   r.SnippetEnd,
			Snippet:      r.Snippet,
			CodeLang:     r.CodeLang,
			Mode:         r.Mode,
		}
	}
	return results, nil
}

// GetStatus reports the active model preset's name and availability.
// Running/PID/Uptime are filled in by the Server from its own start time.
func (d *Daemon) GetStatus() StatusResult {
	if d.retrieval == nil || d.retrieval.Embedding == nil {
		return StatusResult{EmbedderType: "unavailable", EmbedderStatus: "unavailable"}
	}

	status := StatusResult{EmbedderType: d.retrieval.Embedding.ModelName()}
	if d.retrieval.Embedding.Available(context.Background()) {
		status.EmbedderStatus = "ready"
	} else {
		status.EmbedderStatus = "offline"
	}
	return status
}

// PIDRunning reports whether a daemon process is alive per the PID file.
func (d *Daemon) PIDRunning() bool {
	return d.pidFile.IsRunning()
}
