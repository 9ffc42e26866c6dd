package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/kozaktomas/visagevault/internal/cluster"
	"github.com/kozaktomas/visagevault/internal/logging"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group unlabeled faces and review the groups one by one",
	Long: `Cluster every face that is neither labeled nor deleted (DBSCAN over the face
embeddings) and walk through the clusters interactively. For each cluster
you can name it, accept the suggested person, skip it or reject it as not
a face. Every decision is saved immediately; quitting keeps what you did.

Review commands:
  <name>        label the cluster with this person (created if needed)
  #<id>         label the cluster with an existing person id
  y             accept the suggested person
  s             skip, leave the faces unlabeled
  r             reject, delete the faces
  q             quit the review

Examples:
  visagevault cluster
  visagevault cluster --eps 0.45 --min-samples 3
  visagevault cluster --list`,
	Args: cobra.NoArgs,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().Float64("eps", 0, "Neighborhood radius (defaults to CLUSTER_EPS)")
	clusterCmd.Flags().Int("min-samples", 0, "Minimum faces per cluster (defaults to CLUSTER_MIN_SAMPLES)")
	clusterCmd.Flags().Bool("list", false, "Only list the clusters, do not review")
	clusterCmd.Flags().Int("show", 8, "Faces listed per cluster during review")
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if eps := mustGetFloat64(cmd, "eps"); eps > 0 {
		cfg.Cluster.Eps = eps
	}
	if n := mustGetInt(cmd, "min-samples"); n > 0 {
		cfg.Cluster.MinSamples = n
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := cluster.NewEngine(a.Catalog, cluster.NewSuggester(a.Catalog),
		cluster.Params{Eps: cfg.Cluster.Eps, MinSamples: cfg.Cluster.MinSamples},
		logging.Component("cluster"))
	params := engine.Params()
	fmt.Printf("Clustering unlabeled faces (eps=%.2f, min-samples=%d)...\n", params.Eps, params.MinSamples)

	clusters, err := engine.Find(ctx)
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}
	if len(clusters) == 0 {
		fmt.Println("No clusters found. Scan more photos or raise --eps.")
		return nil
	}
	fmt.Printf("Found %d clusters\n\n", len(clusters))

	if mustGetBool(cmd, "list") {
		for _, c := range clusters {
			fmt.Printf("  #%-4d %4d faces%s\n", c.Index, len(c.Faces), suggestionText(c.Suggestion))
		}
		return nil
	}

	review := cluster.NewReview(a.Catalog, clusters)
	if err := runReview(ctx, review, mustGetInt(cmd, "show")); err != nil {
		return err
	}
	printReviewSummary(review.Summary())
	return nil
}

func suggestionText(s *cluster.Suggestion) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("  (looks like %s, distance %.2f)", s.Name, s.Distance)
}

// reviewAction is one parsed review command.
type reviewAction struct {
	kind       string // accept, suggested, skip, reject, quit
	name       string
	identityID int64
}

// parseReviewCommand interprets one line typed during review.
func parseReviewCommand(line string) (reviewAction, error) {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return reviewAction{}, errors.New("type a name, y, s, r or q")
	case "y", "yes":
		return reviewAction{kind: "suggested"}, nil
	case "s", "skip":
		return reviewAction{kind: "skip"}, nil
	case "r", "reject":
		return reviewAction{kind: "reject"}, nil
	case "q", "quit", "exit":
		return reviewAction{kind: "quit"}, nil
	}
	if rest, ok := strings.CutPrefix(line, "#"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return reviewAction{}, fmt.Errorf("invalid person id %q", rest)
		}
		return reviewAction{kind: "accept", identityID: id}, nil
	}
	return reviewAction{kind: "accept", name: line}, nil
}

// runReview walks the clusters until they are exhausted or the user quits.
func runReview(ctx context.Context, review *cluster.Review, show int) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cyan("name> "),
		InterruptPrompt: "^C",
		EOFPrompt:       "q",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	for {
		c, ok := review.Current()
		if !ok {
			return nil
		}
		pos, total := review.Position()
		fmt.Printf("%s %d faces\n", cyan(fmt.Sprintf("Cluster %d/%d:", pos, total)), len(c.Faces))
		for i, f := range c.Faces {
			if i == show {
				fmt.Println(gray(fmt.Sprintf("  ... and %d more", len(c.Faces)-show)))
				break
			}
			fmt.Printf("  face %-6d %s\n", f.ID, gray(f.AssetPath))
		}
		if c.Suggestion != nil {
			fmt.Printf("Suggested: %s %s\n", green(c.Suggestion.Name), gray(fmt.Sprintf("(#%d, distance %.2f, press y)", c.Suggestion.IdentityID, c.Suggestion.Distance)))
		}

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				review.Cancel()
				return nil
			}
			if err != nil {
				return err
			}
			action, err := parseReviewCommand(line)
			if err == nil {
				err = applyReviewAction(ctx, review, c, action)
			}
			if errors.Is(err, errQuit) {
				review.Cancel()
				return nil
			}
			if err != nil {
				fmt.Printf("%s %v\n", red("Error:"), err)
				continue
			}
			fmt.Println()
			break
		}
	}
}

var errQuit = errors.New("quit")

func applyReviewAction(ctx context.Context, review *cluster.Review, c cluster.Cluster, action reviewAction) error {
	switch action.kind {
	case "quit":
		return errQuit
	case "skip":
		return review.Skip()
	case "reject":
		return review.Reject(ctx)
	case "suggested":
		if c.Suggestion == nil {
			return errors.New("no suggestion for this cluster")
		}
		return review.Accept(ctx, c.Suggestion.IdentityID)
	case "accept":
		if action.identityID > 0 {
			return review.Accept(ctx, action.identityID)
		}
		_, err := review.AcceptNew(ctx, action.name)
		return err
	}
	return fmt.Errorf("unknown action %q", action.kind)
}

func printReviewSummary(s cluster.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println("\nReview summary:")
	fmt.Printf("  %s %d\n", green("Accepted:"), s.Accepted)
	fmt.Printf("  %s  %d\n", yellow("Skipped:"), s.Skipped)
	fmt.Printf("  %s %d\n", red("Rejected:"), s.Rejected)
	if s.Cancelled && s.Remaining > 0 {
		fmt.Printf("  Not reviewed: %d (run \"visagevault cluster\" again to continue)\n", s.Remaining)
	}
}
