// Command discuss runs one discussion from the terminal and prints every
// stage, the per-backend answers and the final answers.
//
// Usage:
//
//	discuss "why is the sky blue"
//	echo "why is the sky blue" | discuss --profile companion --style emotional
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
	"lumen.app/companion/core/config"
	"lumen.app/companion/internal/brain"
	"lumen.app/companion/internal/service"
)

var (
	profileFlag  string
	styleFlag    string
	backendsFlag []string
	timeoutFlag  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "discuss [prompt]",
	Short: "Run a multi-model discussion",
	Long: `Fans the prompt out to the profile's backends, synthesizes one answer and
rewrites it in a conversational voice. Reads the prompt from stdin when no
argument is given.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDiscuss,
}

func init() {
	rootCmd.Flags().StringVarP(&profileFlag, "profile", "p", service.ProfileDiscussion, "catalog profile")
	rootCmd.Flags().StringVarP(&styleFlag, "style", "s", string(brain.StyleRational), "rational or emotional")
	rootCmd.Flags().StringSliceVarP(&backendsFlag, "backend", "b", nil, "backend ids (default: the profile's backends)")
	rootCmd.Flags().DurationVar(&timeoutFlag, "timeout", 3*time.Minute, "overall deadline")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runDiscuss(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	style, ok := brain.ParseStyle(styleFlag)
	if !ok {
		return fmt.Errorf("%w: %q", service.ErrInvalidStyle, styleFlag)
	}

	cfg, err := config.Load(config.ServiceTypeDiscuss)
	if err != nil {
		return err
	}
	logger.Setup(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeoutFlag)
	defer cancel()

	registry, err := llm.NewRegistryFromConfigs(ctx, cfg.Catalog.BackendConfigs())
	if err != nil {
		return fmt.Errorf("building backend registry: %w", err)
	}
	pipelines, err := service.NewPipelines(cfg.Catalog, registry)
	if err != nil {
		return err
	}
	pipeline, ok := pipelines[profileFlag]
	if !ok {
		return fmt.Errorf("unknown profile %q (have %s)", profileFlag, strings.Join(pipelines.Names(), ", "))
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	start := time.Now()

	result, err := pipeline.Discuss(ctx, brain.DiscussRequest{
		Prompt:   prompt,
		Backends: backendsFlag,
		Style:    style,
		OnStage: func(s brain.Stage) {
			fmt.Fprintf(errOut, "[%6.2fs] %s\n", time.Since(start).Seconds(), s)
		},
	})
	if err != nil {
		return err
	}

	for _, id := range result.Order {
		fmt.Fprintf(out, "── %s\n%s\n\n", id, result.InitialResponses[id])
	}
	fmt.Fprintf(out, "── synthesized%s\n%s\n\n", degradedNote(result.Degraded.Synthesis), result.SynthesizedAnswer)
	fmt.Fprintf(out, "── humanized%s\n%s\n", degradedNote(result.Degraded.Humanize), result.HumanizedAnswer)
	fmt.Fprintf(errOut, "done in %s\n", result.Elapsed.Round(time.Millisecond))
	return nil
}

func readPrompt(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	var b strings.Builder
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", brain.ErrEmptyPrompt
	}
	return b.String(), nil
}

func degradedNote(degraded bool) string {
	if degraded {
		return " (fallback)"
	}
	return ""
}
