package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"echo-grade/api/internal/app"
	"echo-grade/api/internal/grade/types"
	"echo-grade/api/internal/logging"
)

// comparer is the part of the pipeline compare needs.
type comparer interface {
	Compare(ctx context.Context, master, student string) (types.AnalysisResult, error)
}

// compareCmd grades one student file against one master file.
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Grade one student answer against a master answer and print JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		masterPath, _ := cmd.Flags().GetString("master")
		studentPath, _ := cmd.Flags().GetString("student")
		pretty, _ := cmd.Flags().GetBool("pretty")
		if masterPath == "-" && studentPath == "-" {
			return errors.New("only one of --master and --student can read stdin")
		}

		master, err := readInput(masterPath, cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("master: %w", err)
		}
		student, err := readInput(studentPath, cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("student: %w", err)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// stdout carries the result
		if err := logging.InitWith(cmd.ErrOrStderr(), cfg.LogFile); err != nil {
			return err
		}
		defer logging.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
		defer cancel()

		a, err := app.Build(ctx, cfg, app.Options{NoDB: true})
		if err != nil {
			return err
		}
		defer a.Close()

		return runCompare(ctx, a.Pipeline, master, student, cmd.OutOrStdout(), pretty)
	},
}

func runCompare(ctx context.Context, c comparer, master, student string, out io.Writer, pretty bool) error {
	res, err := c.Compare(ctx, master, student)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func init() {
	compareCmd.Flags().String("master", "", "master answer file (- for stdin)")
	compareCmd.Flags().String("student", "", "student answer file (- for stdin)")
	compareCmd.Flags().Bool("pretty", false, "indent the JSON output")
	_ = compareCmd.MarkFlagRequired("master")
	_ = compareCmd.MarkFlagRequired("student")
	rootCmd.AddCommand(compareCmd)
}
