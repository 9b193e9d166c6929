package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	awsclients "tourism-retrieval/internal/common/aws"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/learning"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/pkg/registry"

	"github.com/spf13/cobra"
)

var (
	searchRegion   string
	searchCategory string
	searchLimit    int

	sourcesRegion   string
	sourcesCategory string
	registryPath    string

	digestDryRun bool
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Run one search and print the ranked results as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List or validate the source catalog",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE:  runSourcesList,
}

var sourcesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a source registry file",
	RunE:  runSourcesValidate,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete learning interactions older than the retention window",
	RunE:  runCleanup,
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List knowledge gaps",
	RunE:  runGapsList,
}

var gapsDigestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Mail the high priority knowledge gaps to the curators",
	RunE:  runGapsDigest,
}

func init() {
	searchCmd.Flags().StringVarP(&searchRegion, "region", "r", "", "Region code (default: search.default_region)")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "Category filter (hotel, restaurant, attraction, event, transport)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of results")

	sourcesListCmd.Flags().StringVarP(&sourcesRegion, "region", "r", "", "Only sources serving this region")
	sourcesListCmd.Flags().StringVar(&sourcesCategory, "category", "", "Only sources serving this category")
	sourcesValidateCmd.Flags().StringVar(&registryPath, "path", "configs/sources.yaml", "Path to registry file")
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesValidateCmd)

	gapsDigestCmd.Flags().BoolVar(&digestDryRun, "dry-run", false, "Print the digest instead of sending it")
	gapsCmd.AddCommand(gapsDigestCmd)
}

// withApp loads configuration, builds the app with short connection retries
// and runs fn. Logs go to stderr so command output stays parseable.
func withApp(timeout time.Duration, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	defer zapLog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx, cfg, zapLog, 3)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withApp(time.Minute, func(ctx context.Context, a *app) error {
		results, err := a.engine.Search(ctx, models.SearchQuery{
			Text:     strings.Join(args, " "),
			Category: searchCategory,
			Region:   searchRegion,
			Limit:    searchLimit,
		})
		if err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), map[string]interface{}{
			"results":  results,
			"guidance": a.engine.Guidance(strings.Join(args, " "), searchCategory),
		})
	})
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	return withApp(30*time.Second, func(ctx context.Context, a *app) error {
		printSources(cmd.OutOrStdout(), a.engine.Sources(sourcesRegion, sourcesCategory))
		return nil
	})
}

func printSources(out io.Writer, srcs []models.Source) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREGION\tTIER\tKIND\tOFFICIAL\tCATEGORIES")
	for _, s := range srcs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			s.Name, s.Region, s.Tier, s.Kind, s.Official, strings.Join(s.Categories, ","))
	}
	w.Flush()
}

func runSourcesValidate(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("registry %s is invalid: %w", registryPath, err)
	}
	entries := 0
	for _, s := range reg.Sources {
		entries += len(s.Entries)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registry %s (version %s) is valid: %d regions, %d sources, %d knowledge entries\n",
		registryPath, reg.Version, len(reg.Regions), len(reg.Sources), entries)
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return withApp(5*time.Minute, func(ctx context.Context, a *app) error {
		removed := a.engine.CleanupLearningData(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "cleanup finished: %d in-memory interactions removed, retention %d days\n",
			removed, a.cfg.Learning.RetentionDays)
		return nil
	})
}

func runGapsList(cmd *cobra.Command, args []string) error {
	return withApp(30*time.Second, func(ctx context.Context, a *app) error {
		return writeIndented(cmd.OutOrStdout(), a.engine.KnowledgeGaps())
	})
}

func runGapsDigest(cmd *cobra.Command, args []string) error {
	return withApp(time.Minute, func(ctx context.Context, a *app) error {
		gaps := a.engine.PriorityKnowledgeGaps()
		if len(gaps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no high priority knowledge gaps")
			return nil
		}

		ses := a.cfg.Notifications.SES
		if digestDryRun || !ses.Enabled {
			fmt.Fprint(cmd.OutOrStdout(), learning.FormatDigest(gaps))
			return nil
		}

		client, err := awsclients.NewSESClient(ctx, a.cfg.Notifications.AWS.Region, ses.FromEmail)
		if err != nil {
			return err
		}
		id, err := learning.NewEmailDigest(client, ses.Recipients).Send(ctx, gaps)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "digest sent: %d gaps, message %s\n", len(gaps), id)
		return nil
	})
}

func writeIndented(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
