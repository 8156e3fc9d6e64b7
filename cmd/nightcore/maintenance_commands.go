package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nightcore/internal/sweeper"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var expirySeconds int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired files from the local temp directory once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			expiry := cfg.SweepExpiry()
			if expirySeconds > 0 {
				expiry = time.Duration(expirySeconds) * time.Second
			}
			sw, err := sweeper.New(cfg.Paths.TempDir, cfg.SweepInterval(), expiry)
			if err != nil {
				return err
			}
			result := sw.Sweep()
			if asJSON {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Swept %s (expiry %s)\n", cfg.Paths.TempDir, expiry)
			rows := [][]string{
				{"Scanned", strconv.Itoa(result.Scanned)},
				{"Deleted", strconv.Itoa(result.Deleted)},
				{"Kept", strconv.Itoa(result.Kept)},
				{"Failed", strconv.Itoa(result.Failed)},
			}
			fmt.Fprint(out, renderTable([]string{"Files", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().IntVar(&expirySeconds, "expiry", 0, "Override sweeper.expiry_seconds for this run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the sweep result as JSON")
	return cmd
}

func newCookiesCommand(ctx *commandContext) *cobra.Command {
	cookiesCmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage the cookie jar used for extraction",
	}

	setCmd := &cobra.Command{
		Use:   "set <file>",
		Short: "Upload a Netscape cookie export to the daemon (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readCookieSource(cmd, args[0])
			if err != nil {
				return err
			}
			resp, err := ctx.client().UploadCookies(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cookie jar updated: %s (%d bytes)\n", resp.Path, resp.Bytes)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which cookie jar the daemon is using",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			c := status.Cookies
			if !c.Present {
				fmt.Fprintln(out, renderStatusLine("Cookie jar", statusWarn, "missing", colorize))
				return nil
			}
			detail := fmt.Sprintf("%s (%d bytes, updated %s)", c.Path, c.Size, c.UpdatedAt)
			if c.Fallback {
				detail += ", read-only fallback"
			}
			fmt.Fprintln(out, renderStatusLine("Cookie jar", statusOK, detail, colorize))
			return nil
		},
	}

	cookiesCmd.AddCommand(setCmd, statusCmd)
	return cookiesCmd
}

func readCookieSource(cmd *cobra.Command, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read cookies from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	return data, nil
}
