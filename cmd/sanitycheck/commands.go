package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/SanityCheck/internal/anomaly"
	"github.com/Alias1177/SanityCheck/internal/config"
	"github.com/Alias1177/SanityCheck/internal/database"
	"github.com/Alias1177/SanityCheck/internal/loader"
	"github.com/Alias1177/SanityCheck/internal/metrics"
	"github.com/Alias1177/SanityCheck/internal/model"
	"github.com/Alias1177/SanityCheck/internal/notify"
	platformhttp "github.com/Alias1177/SanityCheck/internal/platform/http"
	"github.com/Alias1177/SanityCheck/internal/sanity"
)

var errAnomalyDetected = errors.New("anomaly detected")

// app carries what every subcommand needs
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg, logger: log.Logger}
	var debug, verbose bool

	root := &cobra.Command{
		Use:           "sanitycheck",
		Short:         "Sanity checks of validator bonds settlements and merkle trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if debug || verbose {
				log.Logger = log.Logger.Level(zerolog.DebugLevel)
			}
			a.logger = log.Logger.With().Str("command", cmd.Name()).Logger()
		},
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "print more detailed information of the execution")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "alias for --debug")

	root.AddCommand(
		a.newCheckCommand(),
		a.newCheckMerkleTreeCommand(),
		a.newCheckSettlementCommand(),
		a.newReportsCommand(),
	)
	return root
}

// thresholdFlags binds the anomaly thresholds to command flags
type thresholdFlags struct {
	model.Thresholds
}

func (t *thresholdFlags) register(cmd *cobra.Command, defaults model.Thresholds) {
	cmd.Flags().Float64Var(&t.CorrelationThreshold, "correlation-threshold", defaults.CorrelationThreshold,
		"maximum deviation ratio (0-1) from each of the 2 most recent epochs to still count as similar")
	cmd.Flags().Float64Var(&t.ScoreThreshold, "score-threshold", defaults.ScoreThreshold,
		"z-score threshold for flagging anomalies, in standard deviations from the mean")
	cmd.Flags().Float64Var(&t.MinAbsoluteDeviationRatio, "min-absolute-deviation", defaults.MinAbsoluteDeviationRatio,
		"minimum deviation ratio (0-1) from the historical mean required to flag an anomaly")
}

func (a *app) newCheckCommand() *cobra.Command {
	var (
		current    string
		past       []string
		processing string
		thresholds thresholdFlags
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the settlements of the current epoch against past epochs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pt, err := sanity.ParseProcessingType(processing)
			if err != nil {
				return err
			}
			if err := anomaly.ValidateThresholds(thresholds.Thresholds); err != nil {
				return err
			}

			ctx := cmd.Context()
			ld := a.newLoader()
			cur, err := ld.LoadSettlements(ctx, current)
			if err != nil {
				return err
			}
			hist, err := ld.LoadHistoricalSettlements(ctx, past)
			if err != nil {
				return err
			}

			report, err := sanity.CheckSettlements(sanity.SettlementCheckRequest{
				Current:    cur,
				Historical: hist,
				Type:       pt,
				Thresholds: thresholds.Thresholds,
				Options:    metrics.SettlementOptions{ExcludedReasons: a.cfg.ExcludedReasons},
				Logger:     &a.logger,
			})
			if err != nil {
				return err
			}
			return a.publish(ctx, "settlements-"+string(pt), report)
		},
	}

	cmd.Flags().StringVarP(&current, "current", "c", "", "settlements file of the current epoch (JSON)")
	cmd.Flags().StringSliceVarP(&past, "past", "p", nil, "past settlements files or directories, repeatable or comma separated")
	cmd.Flags().StringVarP(&processing, "type", "t", string(sanity.ProcessingBid),
		`processing type: "bid" checks settlement totals and claim count variation, "psr" checks counts and average claim amount`)
	thresholds.register(cmd, a.cfg.Thresholds)
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("past")
	return cmd
}

func (a *app) newCheckMerkleTreeCommand() *cobra.Command {
	var (
		merkleTrees string
		sources     []string
		past        []string
		thresholds  thresholdFlags
	)

	cmd := &cobra.Command{
		Use:   "check-merkle-tree",
		Short: "Check merkle trees consistency, cross-validate against settlement sources and compare to history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := anomaly.ValidateThresholds(thresholds.Thresholds); err != nil {
				return err
			}

			ctx := cmd.Context()
			ld := a.newLoader()
			trees, err := ld.LoadMerkleTrees(ctx, merkleTrees)
			if err != nil {
				return err
			}

			totals, err := sanity.VerifyMerkleTrees(trees, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info().
				Int("validators", totals.Trees).
				Int64("claims", totals.Claims).
				Str("amount", totals.ClaimAmount.String()).
				Msg("Internal consistency check passed")

			if len(sources) > 0 {
				settlements, err := ld.LoadHistoricalSettlements(ctx, sources)
				if err != nil {
					return err
				}
				if err := sanity.CrossValidateSources(trees, totals, settlements, a.logger); err != nil {
					return err
				}
				a.logger.Info().Int("sources", len(settlements)).Msg("Cross-validation check passed")
			}

			if len(past) == 0 {
				a.logger.Info().Msg("No past merkle trees given, skipping historical comparison")
				return nil
			}
			hist, err := ld.LoadHistoricalMerkleTrees(ctx, past)
			if err != nil {
				return err
			}
			report, err := sanity.CheckMerkleTrees(sanity.MerkleTreeCheckRequest{
				Current:    trees,
				Historical: hist,
				Thresholds: thresholds.Thresholds,
				Logger:     &a.logger,
			})
			if err != nil {
				return err
			}
			return a.publish(ctx, "merkle-trees", report)
		},
	}

	cmd.Flags().StringVarP(&merkleTrees, "merkle-trees", "m", "", "merkle trees file, standard or unified format (JSON)")
	cmd.Flags().StringSliceVarP(&sources, "settlement-sources", "s", nil, "settlement source files for cross-validation")
	cmd.Flags().StringSliceVarP(&past, "past-merkle-trees", "p", nil, "past merkle trees files or directories for historical comparison")
	thresholds.register(cmd, a.cfg.Thresholds)
	_ = cmd.MarkFlagRequired("merkle-trees")
	return cmd
}

func (a *app) newCheckSettlementCommand() *cobra.Command {
	var settlementsPath, merkleTreesPath string

	cmd := &cobra.Command{
		Use:   "check-settlement",
		Short: "Check a settlements file is consistent with its merkle trees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ld := a.newLoader()
			settlements, err := ld.LoadSettlements(ctx, settlementsPath)
			if err != nil {
				return err
			}
			trees, err := ld.LoadMerkleTrees(ctx, merkleTreesPath)
			if err != nil {
				return err
			}
			return sanity.VerifySettlementMerkleTrees(settlements, trees, a.logger)
		},
	}

	cmd.Flags().StringVarP(&settlementsPath, "settlements", "s", "", "settlements file (JSON)")
	cmd.Flags().StringVarP(&merkleTreesPath, "merkle-trees", "m", "", "merkle trees file (JSON)")
	_ = cmd.MarkFlagRequired("settlements")
	_ = cmd.MarkFlagRequired("merkle-trees")
	return cmd
}

func (a *app) newReportsCommand() *cobra.Command {
	var (
		checkType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List recently stored anomaly reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.DatabaseEnabled() {
				return errors.New("database is not configured, set DB_HOST and DB_NAME")
			}
			ctx := cmd.Context()
			db, err := database.New(ctx, a.cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			records, err := db.RecentReports(ctx, checkType, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				status := "NORMAL"
				if rec.AnomalyDetected {
					status = "ANOMALY"
				}
				fmt.Fprintf(out, "%d\t%s\t%s\tepoch %d\t%s\t%s\n",
					rec.ID, rec.CreatedAt.Format(time.RFC3339), rec.CheckType, rec.Epoch, status,
					strings.Join(rec.AnomalousFields, ","))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&checkType, "type", "", "only list reports of this check type")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")
	return cmd
}

func (a *app) newLoader() *loader.Loader {
	httpClient := platformhttp.NewClient(platformhttp.ClientOptions{
		Timeout:        time.Duration(a.cfg.RequestTimeout) * time.Second,
		RequestsPerSec: a.cfg.RequestsPerSec,
		Logger:         &a.logger,
	})
	return loader.New(loader.Options{
		HTTP:        httpClient,
		Concurrency: a.cfg.LoadConcurrency,
		Logger:      &a.logger,
	})
}

// publish logs the report, stores and sends it when configured and turns
// a detected anomaly into a command failure. Storage and alert failures are
// logged only.
func (a *app) publish(ctx context.Context, checkType string, report model.AnomalyReport) error {
	if report.AnomalyDetected {
		a.logger.Warn().Msg(report.Report)
	} else {
		a.logger.Info().Msg(report.Report)
	}

	if a.cfg.DatabaseEnabled() {
		if err := a.store(ctx, checkType, report); err != nil {
			a.logger.Error().Err(err).Msg("Failed to store anomaly report")
		}
	}

	if a.cfg.TelegramEnabled() && (report.AnomalyDetected || a.cfg.NotifyOnSuccess) {
		tg, err := notify.NewTelegram(a.cfg.TelegramBotToken, a.cfg.TelegramChatID, a.logger)
		if err == nil {
			err = tg.SendReport(ctx, checkType, report)
		}
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to send anomaly report")
		}
	}

	if report.AnomalyDetected {
		return fmt.Errorf("%w in epoch %d", errAnomalyDetected, report.Epoch)
	}
	return nil
}

func (a *app) store(ctx context.Context, checkType string, report model.AnomalyReport) error {
	db, err := database.New(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveReport(ctx, checkType, report)
	if err != nil {
		return err
	}
	a.logger.Debug().Int64("id", id).Msg("Anomaly report stored")
	return nil
}
