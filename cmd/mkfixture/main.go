// Command mkfixture writes ARL report fixtures in a chosen encoding and
// delimiter, for exercising the encoding-tolerant reader by hand.
package main

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/gerhard-ee/arlstage/internal/source"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		encoding  string
		delimiter string
		rows      int
		crlf      bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:           "mkfixture <path>",
		Short:         "Write an ARL report fixture CSV",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			delim, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}
			if rows < 1 {
				return fmt.Errorf("rows must be at least 1, got %d", rows)
			}
			enc, err := source.LookupEncoding(encoding)
			if err != nil {
				return err
			}

			flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(path, flag, 0644)
			if err != nil {
				return fmt.Errorf("failed to create fixture: %w", err)
			}
			defer f.Close()

			if err := source.WriteFixture(f, enc, delim, rows, crlf); err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close fixture: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Fixture written: %s (%s, delimiter %q, %d rows)\n", path, enc, delim, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&encoding, "encoding", "e", "utf-8", "Output encoding (utf-8, latin-1, cp1252 or any IANA name)")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", `Field delimiter, a single character or "tab"`)
	cmd.Flags().IntVarP(&rows, "rows", "n", 1, "Number of data rows")
	cmd.Flags().BoolVar(&crlf, "crlf", false, "Use CRLF line endings")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", r)
	}
	return r, nil
}
