package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/event-timetable/internal/layout"
	"github.com/noah-isme/event-timetable/internal/repository"
	"github.com/noah-isme/event-timetable/internal/service"
	"github.com/noah-isme/event-timetable/internal/timetable"
	"github.com/noah-isme/event-timetable/pkg/cache"
	"github.com/noah-isme/event-timetable/pkg/config"
	"github.com/noah-isme/event-timetable/pkg/database"
	"github.com/noah-isme/event-timetable/pkg/export"
	"github.com/noah-isme/event-timetable/pkg/jobs"
	"github.com/noah-isme/event-timetable/pkg/logger"
	"github.com/noah-isme/event-timetable/pkg/storage"
)

var (
	layoutPath string
	eventFlag  string
	persist    bool
	tzFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Inspect and edit event timetables",
	Long: `Load an event timetable from a YAML layout (or from the database with
--persist), run one operation on it and print the result as JSON.

Examples:
  # Show the conference timetable grouped by day
  timetable show --layout event.yaml

  # Add a coffee break to a session block and save the new version
  timetable add-break --layout event.yaml --persist --container morning --title Coffee --duration 15m
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&layoutPath, "layout", "l", "", "YAML event layout to import")
	rootCmd.PersistentFlags().StringVar(&eventFlag, "event", "", "Event id (defaults to the layout's event)")
	rootCmd.PersistentFlags().BoolVar(&persist, "persist", false, "Load and save timetables through the database")
	rootCmd.PersistentFlags().StringVar(&tzFlag, "tz", "", "Timezone for dates given and shown (defaults to the event's)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles what one command run needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService
	svc     *service.TimetableService
	queue   *jobs.Queue
	db      *sqlx.DB
	cache   *repository.CacheRepository

	eventID   string
	container string
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logr, metrics: service.NewMetricsService()}

	var store service.TimetableStore
	if persist {
		a.db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		store = repository.NewTimetableRepository(a.db)
	}

	var client *redis.Client
	cacheEnabled := cfg.Timetable.CacheEnabled
	if cacheEnabled {
		client, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			cacheEnabled = false
		}
	}
	a.cache = repository.NewCacheRepository(client, logr)
	cacheSvc := service.NewCacheService(a.cache, a.metrics, cfg.Timetable.CacheTTL, logr, cacheEnabled)

	files, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		return nil, err
	}
	exporter := service.NewExportService(files, service.ExportConfig{ResultTTL: cfg.Export.ResultTTL}, logr, export.NewCSVExporter(), export.NewICalExporter(""))

	a.svc = service.NewTimetableService(store, cacheSvc, nil, exporter, a.metrics, validator.New(), logr, service.TimetableConfig{
		DefaultPolicy:   timetable.CheckPolicy(cfg.Timetable.DefaultPolicy),
		MaxCascadeDepth: cfg.Timetable.MaxCascadeDepth,
		Parallel: map[timetable.ContainerKind]bool{
			timetable.ContainerConference: cfg.Timetable.ConferenceParallel,
			timetable.ContainerSession:    cfg.Timetable.SessionParallel,
			timetable.ContainerSlot:       cfg.Timetable.SlotParallel,
		},
		CacheTTL: cfg.Timetable.CacheTTL,
	})

	a.queue = jobs.NewQueue("timetable-invalidation", a.svc.HandleInvalidation, jobs.QueueConfig{
		Workers:    cfg.Timetable.NotifyWorkers,
		MaxRetries: cfg.Timetable.NotifyRetries,
		Logger:     logr,
		OnDone: func(_ jobs.Job, err error) {
			a.metrics.RecordInvalidation(err)
		},
	})
	a.queue.Start(ctx)
	a.svc.SetQueue(a.queue)

	if err := a.load(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// load imports the layout when one is given. Without a layout the event is
// read from the database on first use.
func (a *app) load(ctx context.Context) error {
	a.eventID = eventFlag
	if layoutPath == "" {
		if !persist {
			return fmt.Errorf("either --layout or --persist is required")
		}
		if a.eventID == "" {
			return fmt.Errorf("--event is required without --layout")
		}
		return nil
	}
	doc, err := layout.Load(layoutPath)
	if err != nil {
		return err
	}
	if a.eventID == "" {
		a.eventID = doc.Event
	}
	a.container = doc.Conference.Handle
	res, err := a.svc.Import(ctx, a.eventID, doc.Build)
	if err != nil {
		return err
	}
	a.logger.Debug("layout imported", zap.String("path", layoutPath), zap.Int("version", res.Version))
	return nil
}

func (a *app) containerOr(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.container == "" {
		return "", fmt.Errorf("--container is required")
	}
	return a.container, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.queue.Flush(ctx); err != nil {
		a.logger.Warn("pending invalidations dropped", zap.Error(err))
	}
	a.queue.Stop()
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	_ = a.logger.Sync()
}

// run wraps a command body with bootstrap and teardown.
func run(fn func(ctx context.Context, a *app, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a, cmd.OutOrStdout())
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

// parseTime reads a date flag in --tz, or UTC when no zone is given.
func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	loc := time.UTC
	if tzFlag != "" {
		var err error
		if loc, err = time.LoadLocation(tzFlag); err != nil {
			return nil, fmt.Errorf("invalid --tz: %w", err)
		}
	}
	for _, format := range timeLayouts {
		if t, err := time.ParseInLocation(format, raw, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("cannot read date %q", raw)
}

// policyFlag maps a negative --policy to the configured default.
func policyFlag(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}
