package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/clashroyale"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/processing"
	"riverrace_stats/internal/scheduler"
	"riverrace_stats/internal/sheets"
	"riverrace_stats/internal/storage"
	"riverrace_stats/internal/telegram"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func main() {
	app.SetupEnvironment()

	rootCmd := &cobra.Command{
		Use:           "riverrace_stats",
		Short:         "Clash Royale river race statistics and clan reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
	setupFlags(rootCmd)

	rootCmd.AddCommand(newRunCmd(), newImportCmd(), newReportCmd(), newResolveCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	app.ApplyDefaults(viper.GetViper())
	defaults := app.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("database-url", defaults.GetString("database.url"), "Database URL (sqlite://path or postgres://...)")
	cmd.PersistentFlags().String("clan-tag", "", "Clan tag, e.g. #ABC123")

	bindFlag(cmd, "database.url", "database-url")
	bindFlag(cmd, "clan.tag", "clan-tag")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}
	return nil
}

// services is the wired object graph shared by every command.
type services struct {
	config    *app.Config
	store     *storage.Store
	upstream  *clashroyale.Client
	client    *processing.CachedClashRoyaleClient
	importer  *processing.Importer
	fetch     *processing.FetchService
	reminder  *processing.ReminderService
	reports   *processing.ReportService
	publisher *processing.Publisher
	close     func()
}

func newServices(ctx context.Context) (*services, error) {
	cfg, err := app.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	store := storage.NewStore(db)

	tracker := processing.NewAPICallTracker()
	upstream := clashroyale.NewClient(cfg.APIToken, cfg.APIBaseURL)
	client := processing.NewCachedClashRoyaleClient(upstream, tracker)

	var sender processing.ChatSenderInterface
	if cfg.TelegramBotToken != "" {
		sender = telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIBaseURL)
	} else {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, chat posting disabled")
	}

	var mirror processing.SheetsMirrorInterface
	if cfg.SpreadsheetID != "" {
		sheetsClient, err := sheets.NewClient(ctx, cfg.CredentialsFile)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		mirror = sheets.NewMirror(sheetsClient, cfg.SpreadsheetID)
	}

	importer := processing.NewImporter(client, store, cfg.ClanTag)
	reports := processing.NewReportService(store, importer, cfg)

	return &services{
		config:    cfg,
		store:     store,
		upstream:  upstream,
		client:    client,
		importer:  importer,
		fetch:     processing.NewFetchService(client, store, importer, tracker, cfg.ClanTag),
		reminder:  processing.NewReminderService(client, store, sender, cfg),
		reports:   reports,
		publisher: processing.NewPublisher(store, importer, reports, sender, mirror, cfg),
		close:     func() { sqlDB.Close() },
	}, nil
}

// cycle is one scheduled collection pass followed by any due report posts.
func (s *services) cycle(ctx context.Context) error {
	s.upstream.ResetAPICallCount()
	result, err := s.fetch.Run(ctx)
	if err != nil {
		return err
	}
	if _, err := s.publisher.MaybePostWeekly(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to post weekly reports")
	}
	if _, err := s.publisher.MaybePostPromotion(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to post promotion recommendations")
	}

	log.Info().
		Str("cycle_id", result.CycleID).
		Int64("http_requests", s.upstream.GetAPICallCount()).
		Msg("Cycle finished")
	return nil
}

func (s *services) remind(ctx context.Context) (bool, error) {
	result, err := s.reminder.Run(ctx)
	if err != nil {
		return true, err
	}
	log.Info().
		Str("status", string(result.Status)).
		Int("day", result.Day).
		Str("week", result.Week.String()).
		Msg("Reminder attempt finished")
	return result.Status.Retryable(), nil
}

func newRunCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect data periodically and post reminders and reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := newServices(ctx)
			if err != nil {
				return err
			}
			defer svc.close()

			sched := scheduler.New()
			interval := viper.GetDuration("fetch.interval")

			log.Info().
				Dur("interval", interval).
				Bool("run_once", once).
				Str("clan_tag", svc.config.ClanTag).
				Msg("Starting river race stats")

			if once {
				_, err := sched.Run(ctx, scheduler.KindFetch, svc.cycle)
				return err
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				sched.Every(ctx, scheduler.KindFetch, interval, svc.cycle)
			}()
			if svc.config.ReminderEnabled {
				wg.Add(1)
				go func() {
					defer wg.Done()
					sched.Daily(ctx, scheduler.KindReminder,
						scheduler.DefaultDailyConfig(svc.config.ReminderHour, svc.config.ReminderMinute), svc.remind)
				}()
			}
			wg.Wait()

			stats := svc.client.GetCacheStats()
			log.Info().
				Int("cache_entries", stats.TotalEntries).
				Int("cache_valid", stats.ValidEntries).
				Msg("Shutdown complete")
			return nil
		},
	}

	cmd.PersistentFlags().Duration("interval", app.NewViper().GetDuration("fetch.interval"), "Interval between fetch cycles (e.g. 30m, 1h)")
	cmd.Flags().BoolVar(&once, "once", false, "Run one fetch cycle and exit")
	bindFlag(cmd, "fetch.interval", "interval")
	return cmd
}

func newImportCmd() *cobra.Command {
	var weeks, season, section int
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import completed weeks from the river race log",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := processing.ImportRequest{Weeks: weeks}
			if cmd.Flags().Changed("season") || cmd.Flags().Changed("section") {
				k := week.Key{SeasonID: season, SectionIndex: section}
				if !cmd.Flags().Changed("season") || !cmd.Flags().Changed("section") || !k.Valid() {
					return fmt.Errorf("--season and --section must be given together with season > 0 and section >= 0")
				}
				req.Week = &k
			}

			svc, err := newServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			result, err := svc.importer.Import(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d weeks, %d player rows\n", result.Weeks, result.Players)
			return nil
		},
	}
	cmd.Flags().IntVar(&weeks, "weeks", 10, "Number of most recent weeks to import (0 imports the whole log)")
	cmd.Flags().IntVar(&season, "season", 0, "Import only this season (requires --section)")
	cmd.Flags().IntVar(&section, "section", 0, "Import only this section index (requires --season)")
	return cmd
}

func newReportCmd() *cobra.Command {
	kinds := make([]string, 0, len(processing.ReportKinds))
	for _, k := range processing.ReportKinds {
		kinds = append(kinds, string(k))
	}

	return &cobra.Command{
		Use:       fmt.Sprintf("report <%s>", strings.Join(kinds, "|")),
		Short:     "Print a report to stdout",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			text, err := svc.reports.Render(cmd.Context(), processing.ReportKind(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved week and war day without posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			result, err := svc.reminder.Resolve(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Status == processing.ReminderSkipWeek {
				fmt.Fprintln(out, "Week: unresolved")
				return nil
			}
			fmt.Fprintf(out, "Week: %s (season %d, section %d)\n", result.Week, result.Week.SeasonID, result.Week.SectionIndex)
			fmt.Fprintf(out, "Period: %s\n", result.Period)
			if result.Status == processing.ReminderUnknownDay {
				fmt.Fprintln(out, "Day: unknown")
				return nil
			}
			fmt.Fprintf(out, "Day: %d (source: %s)\n", result.Day, result.DaySource)
			return nil
		},
	}
}
