package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
	"github.com/dmitrijs2005/diarysync/internal/client/config"
	"github.com/dmitrijs2005/diarysync/internal/client/httpapi"
	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/services"
	"github.com/dmitrijs2005/diarysync/internal/client/syncer"
	"github.com/dmitrijs2005/diarysync/internal/common"
	"github.com/dmitrijs2005/diarysync/internal/filex"
	"github.com/dmitrijs2005/diarysync/internal/logging"
)

type App struct {
	cfg     *config.Config
	log     logging.Logger
	repos   *client.Repositories
	remote  client.Remote
	syncer  *syncer.Syncer
	journal services.JournalService

	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
	prompt bool
}

type Option func(*App)

// WithIO replaces stdin and stdout. The prompt is turned off.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
		a.prompt = false
	}
}

// NewApp opens the journal, builds the remote and the sync worker, and
// queues every entry left pending by a previous run.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		log:    logger.With("module", "app"),
		in:     os.Stdin,
		out:    os.Stdout,
		prompt: stdinIsTerminal(),
	}
	for _, o := range opts {
		o(a)
	}
	a.reader = bufio.NewReader(a.in)
	a.out = &lockedWriter{w: a.out}

	repos, err := a.openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	a.repos = repos

	remote, err := client.NewRemote(ctx, cfg.Remote)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("error creating %s remote: %w", cfg.Remote.Kind, err)
	}
	a.remote = remote

	a.syncer = syncer.New(repos.Entries, remote, logger, syncer.WithMaxAttempts(cfg.MaxAttempts))
	a.journal = services.NewJournalService(a.syncer, repos.Entries, repos.Metadata, remote, logger)

	if _, err := a.syncer.Recover(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openDatabase(ctx context.Context) (*client.Repositories, error) {
	if _, err := filex.EnsureParentDir(a.cfg.DBPath); err != nil {
		return nil, err
	}

	passphrase := []byte(a.cfg.Passphrase)
	repos, err := client.InitDatabase(ctx, a.cfg.DBPath, passphrase)
	if errors.Is(err, client.ErrPassphraseRequired) && a.prompt {
		passphrase, err = GetPassphrase(a.out)
		if err != nil {
			return nil, err
		}
		defer common.WipeByteArray(passphrase)
		repos, err = client.InitDatabase(ctx, a.cfg.DBPath, passphrase)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening journal %s: %w", a.cfg.DBPath, err)
	}
	return repos, nil
}

// Close releases the remote and the database.
func (a *App) Close() error {
	var errs []error
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	if a.repos != nil {
		errs = append(errs, a.repos.Close())
	}
	return errors.Join(errs...)
}

// Run blocks until ctx ends or the user leaves the REPL.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, stop := a.journal.Events()
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.syncer.Run(ctx) })
	g.Go(func() error {
		printEvents(ctx, events, a.out)
		return nil
	})

	if a.cfg.PullSchedule != "" {
		sched := cron.New(
			cron.WithLogger(cronLogger{log: a.log}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: a.log})),
		)
		if _, err := sched.AddFunc(a.cfg.PullSchedule, func() { a.refresh(ctx) }); err != nil {
			return fmt.Errorf("invalid pull schedule: %w", err)
		}
		g.Go(func() error {
			sched.Start()
			<-ctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}

	if a.cfg.HTTPAddr != "" {
		api := httpapi.NewServer(a.cfg.HTTPAddr, a.journal, a.log)
		g.Go(func() error { return api.Run(ctx) })
	}

	if a.cfg.REPL {
		// Not part of the group: a read from stdin cannot be interrupted, so
		// shutdown does not wait for it.
		go func() {
			fmt.Fprintln(a.out, "diarysync (type 'help' for commands)")
			runREPL(ctx, a, a.statusLine, a.reader, a.out, a.prompt)
			cancel()
		}()
	}

	return g.Wait()
}

// refresh is the scheduled job: pull remote changes, then push what is
// queued.
func (a *App) refresh(ctx context.Context) {
	res, err := a.journal.PullChanges(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Warn(ctx, "scheduled pull failed", "error", err)
		}
		return
	}
	if res.Created+res.Updated > 0 {
		a.log.Info(ctx, "pulled remote changes", "created", res.Created, "updated", res.Updated)
	}
	if err := a.journal.SyncNow(ctx); err != nil && ctx.Err() == nil {
		a.log.Warn(ctx, "scheduled sync failed", "error", err)
	}
}

func (a *App) statusLine() string {
	st := a.journal.Status()
	n := len(st.Queued) + len(st.InFlight)
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(" (%d queued)", n)
}

func printEvents(ctx context.Context, events <-chan models.Outcome, w io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintln(w, formatOutcome(o))
		}
	}
}

func formatOutcome(o models.Outcome) string {
	if o.Status == models.OutcomeFailed {
		return fmt.Sprintf("[failed] %s: %s", o.ID, o.Message)
	}
	return fmt.Sprintf("[%s] %s", o.Status, o.ID)
}

// cronLogger routes scheduler messages into the app log.
type cronLogger struct {
	log logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(context.Background(), msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(context.Background(), msg, append(keysAndValues, "error", err)...)
}
