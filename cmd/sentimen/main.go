package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pbaille/sentimen/internal/analyzer"
	"github.com/pbaille/sentimen/internal/api"
	"github.com/pbaille/sentimen/internal/config"
	"github.com/pbaille/sentimen/internal/domain"
	"github.com/pbaille/sentimen/internal/fetcher"
	"github.com/pbaille/sentimen/internal/labels"
	"github.com/pbaille/sentimen/internal/logging"
	"github.com/pbaille/sentimen/internal/model"
	"github.com/pbaille/sentimen/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
	logger  *zap.Logger
	models  *model.Cache
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sentimen",
		Short: "Customer review sentiment dashboard",
		Long: `sentimen classifies customer reviews with a pre-trained TF-IDF
vectorizer and classifier, and serves a dashboard showing the predicted
sentiment, the probability of each class and a recommendation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			logger, err = logging.New(cfg.Verbose)
			if err != nil {
				return err
			}
			models = model.NewCache(cfg.Model.Vectorizer, cfg.Model.Classifier)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.Bool("verbose", false, "debug logging")
	flags.String("vectorizer", "", "vectorizer artifact path")
	flags.String("classifier", "", "classifier artifact path")
	flags.String("labels", "", "label table yaml file")
	flags.String("db", "", "history database path")
	flags.Bool("no-history", false, "do not record predictions")

	bindFlag("verbose", flags.Lookup("verbose"))
	bindFlag("model.vectorizer", flags.Lookup("vectorizer"))
	bindFlag("model.classifier", flags.Lookup("classifier"))
	bindFlag("labels.file", flags.Lookup("labels"))
	bindFlag("history.db", flags.Lookup("db"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(labelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// historyEnabled applies --no-history on top of the config
func historyEnabled(cmd *cobra.Command) bool {
	if off, _ := cmd.Flags().GetBool("no-history"); off {
		return false
	}
	return cfg.History.Enabled
}

func loadAnalyzer() (*analyzer.Analyzer, error) {
	table, err := cfg.LabelTable()
	if err != nil {
		return nil, err
	}
	return newAnalyzer(models, table, cfg.Labels.Strict, logger)
}

// newAnalyzer fails when the model cannot be loaded, or when strict and the
// label table leaves classifier classes uncovered
func newAnalyzer(models *model.Cache, table *labels.Table, strict bool, logger *zap.Logger) (*analyzer.Analyzer, error) {
	pipeline, err := models.Get()
	if err != nil {
		return nil, fmt.Errorf("gagal memuat model: %w", err)
	}

	missing, err := table.Check(pipeline.Classes(), strict)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		logger.Warn("label table does not cover every classifier class",
			zap.Ints("missing", missing),
			zap.Ints("classes", pipeline.Classes()))
	}

	logger.Info("model loaded",
		zap.String("type", pipeline.Classifier.Type()),
		zap.Ints("classes", pipeline.Classes()),
		zap.Int("dimensions", pipeline.Dim()))

	return analyzer.New(pipeline, table, logger), nil
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.History.DB)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.History.DB)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalyzer()
			if err != nil {
				return err
			}

			var s *store.Store
			if historyEnabled(cmd) {
				s, err = getStore()
				if err != nil {
					return err
				}
				defer s.Close()
			}

			server := api.New(api.Options{
				Analyzer: a,
				Store:    s,
				Fetcher:  fetcher.New(cfg.Fetch.Timeout, fetcher.AllowPrivate(cfg.Fetch.AllowPrivate)),
				Logger:   logger,
				Addr:     cfg.Addr,
				Page: api.PageInfo{
					ModelName: cfg.Model.Name,
					Accuracy:  cfg.Model.Accuracy,
					Banner:    cfg.Banner,
				},
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringP("addr", "a", "", "server address")
	bindFlag("addr", cmd.Flags().Lookup("addr"))
	cmd.Flags().String("banner", "", "banner image path")
	bindFlag("banner", cmd.Flags().Lookup("banner"))
	return cmd
}

func predictCmd() *cobra.Command {
	var (
		fromURL bool
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "predict [text]",
		Short: "Classify a review (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			review := domain.Review{Text: text, Source: domain.SourceCLI}
			if fromURL || fetcher.IsURL(text) {
				page, err := fetcher.New(cfg.Fetch.Timeout, fetcher.AllowPrivate(cfg.Fetch.AllowPrivate)).Fetch(cmd.Context(), strings.TrimSpace(text))
				if err != nil {
					return err
				}
				review = domain.Review{Text: page.Text, Source: domain.SourceURL, URL: page.URL}
			}

			a, err := loadAnalyzer()
			if err != nil {
				return err
			}

			res, err := a.Analyze(cmd.Context(), review.Text)
			if errors.Is(err, analyzer.ErrEmptyInput) {
				return errors.New("mohon masukkan teks ulasan terlebih dahulu")
			}
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), res)

			if save && historyEnabled(cmd) {
				s, err := getStore()
				if err != nil {
					return err
				}
				defer s.Close()

				p, err := s.SavePrediction(res.Prediction(review))
				if err != nil {
					return err
				}
				if err := s.SaveVector(p.ID, res.Row(), res.Dimensions); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nSaved: %s\n", p.ID[:8])
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&fromURL, "url", false, "treat the argument as a URL to fetch")
	cmd.Flags().BoolVar(&save, "save", false, "record the prediction in history")
	return cmd
}

func printResult(w io.Writer, res *analyzer.Result) {
	fmt.Fprintf(w, "%s %s (%s)\n", res.Info.Emoji, res.Info.Label, res.ConfidencePercent())
	fmt.Fprintf(w, "Label Numerik: %d\n", res.Class)
	fmt.Fprintf(w, "Fitur TF-IDF: %d dimensi\n", res.Dimensions)
	fmt.Fprintln(w, "Probabilitas Tiap Kelas:")
	for _, b := range res.Breakdown {
		fmt.Fprintf(w, "  - %s: %s\n", b.Label, b.Percent)
	}
	fmt.Fprintf(w, "\n💡 %s\n", res.Recommendation)
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			predictions, err := s.ListPredictions(limit, 0)
			if err != nil {
				return err
			}

			if len(predictions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No predictions yet. Use 'sentimen predict --save' or the dashboard.")
				return nil
			}

			for _, p := range predictions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %6.2f%%  %s\n",
					p.ID[:8], p.Label, p.Confidence*100, truncate(p.Text, 60))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of predictions to show")
	cmd.AddCommand(historyShowCmd())
	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show prediction details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.GetPrediction(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:         %s\n", p.ID)
			fmt.Fprintf(out, "Created:    %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Source:     %s\n", p.Source)
			fmt.Fprintf(out, "Label:      %s (%d)\n", p.Label, p.LabelIndex)
			fmt.Fprintf(out, "Confidence: %.2f%%\n", p.Confidence*100)
			fmt.Fprintf(out, "Text:\n%s\n", p.Text)

			return nil
		},
	}
}

func labelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Show the label table and its coverage of the classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := cfg.LabelTable()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, idx := range table.Indices() {
				info := table.Lookup(idx)
				fmt.Fprintf(out, "%d  %s %-8s %s\n", idx, info.Emoji, info.Label, info.Color)
			}

			pipeline, err := models.Get()
			if err != nil {
				fmt.Fprintf(out, "\n(model not loaded: %v)\n", err)
				return nil
			}

			fmt.Fprintf(out, "\nClassifier classes: %v\n", pipeline.Classes())
			if missing := table.Missing(pipeline.Classes()); len(missing) > 0 {
				fmt.Fprintf(out, "Not covered: %v (shown as %s %s)\n", missing, labels.Fallback.Emoji, labels.Fallback.Label)
			} else {
				fmt.Fprintln(out, "All classes covered.")
			}
			return nil
		},
	}
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
