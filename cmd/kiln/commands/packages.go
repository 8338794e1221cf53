package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <name>...",
		Short: "Build and record declared packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			return sess.Install(cmd.Context(), args...)
		},
	}
}

func (c *CLI) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete an installed package and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			return sess.Remove(args[0])
		},
	}
}

func (c *CLI) newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <name>",
		Short: "Replace an installed package with its declared version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			return sess.Upgrade(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			for _, rec := range sess.List() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), rec.String())
			}
			return nil
		},
	}
}

func (c *CLI) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show details of an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			info, err := sess.Info(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Name:         %s\n", info.Record.Name)
			_, _ = fmt.Fprintf(out, "Version:      %s\n", info.Record.Version)
			_, _ = fmt.Fprintf(out, "Dependencies: %s\n", joinOrNone(info.Record.Dependencies))
			_, _ = fmt.Fprintf(out, "Required by:  %s\n", joinOrNone(info.Dependents))
			_, _ = fmt.Fprintf(out, "Files:        %d\n", len(info.Files))
			for _, f := range info.Files {
				_, _ = fmt.Fprintf(out, "  /%s\n", f)
			}
			return nil
		},
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
