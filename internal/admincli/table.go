package admincli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/r9s-ai/open-data-router/internal/admintui"
	"github.com/spf13/cobra"
)

func newTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "table [file]",
		Short: "Render an envelope or model JSON as text tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grids, err := readGrids(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), admintui.Render(grids))
			return err
		},
	}
}

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [file]",
		Short: "Browse an envelope or model JSON interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grids, err := readGrids(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			// stdin may carry the document, so keyboard input comes from the tty.
			in := cmd.InOrStdin()
			if len(args) == 0 || args[0] == "-" {
				tty, err := os.Open("/dev/tty")
				if err != nil {
					return fmt.Errorf("open terminal: %w", err)
				}
				defer func() { _ = tty.Close() }()
				in = tty
			}
			return admintui.Run(grids, in, cmd.OutOrStdout())
		},
	}
}

// readGrids reads JSON from the file argument, or stdin for none or "-".
func readGrids(stdin io.Reader, args []string) ([]admintui.Grid, error) {
	var (
		b   []byte
		err error
	)
	if len(args) == 0 || strings.TrimSpace(args[0]) == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		// #nosec G304 -- file path comes from the operator.
		b, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(b)) == "" {
		return nil, fmt.Errorf("empty input")
	}
	return admintui.ParseGrids(b)
}
