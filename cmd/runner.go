package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/cratedig/cratedig/internal/repositories"
	"github.com/cratedig/cratedig/internal/services"
	"github.com/cratedig/cratedig/internal/shared"
	"github.com/cratedig/cratedig/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	db      *sql.DB
	store   *repositories.Store
	catalog services.Catalog
	history services.History
	links   services.LinkResolver
	scraper services.Scraper
	logger  *log.Logger
	output  io.Writer
	engine  *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	DB      *sql.DB
	Catalog services.Catalog
	History services.History
	Links   services.LinkResolver
	Scraper services.Scraper
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:  opts.Config,
		db:      opts.DB,
		catalog: opts.Catalog,
		history: opts.History,
		links:   opts.Links,
		scraper: opts.Scraper,
		logger:  opts.Logger,
		output:  opts.Output,
	}

	if opts.DB != nil {
		r.store = repositories.NewStore(opts.DB)
		r.engine = tasks.NewEngine(
			opts.Catalog, opts.History, opts.Links, opts.Scraper,
			r.store, opts.Logger, opts.Config.Pipeline,
		)
	}

	return r
}

// SetLogger swaps the Runner's logger and rebuilds the engine around it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if r.store != nil {
		r.engine = tasks.NewEngine(
			r.catalog, r.history, r.links, r.scraper,
			r.store, l, r.config.Pipeline,
		)
	}
}

// requireStore guards actions that read or write the database.
func (r *Runner) requireStore() error {
	if r.store == nil {
		return fmt.Errorf("%w: database not initialized, run 'cratedig setup database' first", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, profileCommand, ingestCommand, resolveCommand, enrichCommand, playlistCommand, runCommand, errorsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
