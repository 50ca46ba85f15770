package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tailor/internal/api"
	"tailor/internal/media/ffprobe"
	"tailor/internal/workspace"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Copy video files into the media directory as new assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspace.ReadWrite, func(ws *workspace.Workspace) error {
				out := cmd.OutOrStdout()
				for _, path := range args {
					v, err := ws.Importer.ImportFile(cmd.Context(), path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Imported %s (%s)\n", v.Filename, formatBytes(v.SizeBytes))
				}
				return nil
			})
		},
	}
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "edit <asset> <command...>",
		Short: "Apply a plain-language edit to the latest version of an asset",
		Example: `  tailor edit clip.mp4 make it black and white
  tailor edit clip.mp4 "trim the first 20 seconds"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return ctx.withWorkspace(cmd.Context(), workspace.ReadWrite, func(ws *workspace.Workspace) error {
				out, err := ws.Pipeline.HandleCommand(cmd.Context(), ws.AssetOf(args[0]), query)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromOutcome(query, out))
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Created %s (%s from %s)\n", out.Version.Filename, out.Operation, out.Version.Parent)
				fmt.Fprintf(w, "Path: %s\n", ws.Store.Path(out.Version))
				if out.Analysis.Succeeded && out.Analysis.Summary != "" {
					fmt.Fprintf(w, "Analysis: %s\n", out.Analysis.Summary)
				}
				if out.Mirror != "" {
					fmt.Fprintf(w, "Mirror: %s\n", out.Mirror)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <command...>",
		Short: "Show which operation a command would run without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspace.ReadOnly, func(ws *workspace.Workspace) error {
				text := strings.Join(args, " ")
				trigger, ok := ws.Resolver.Match(text)
				if !ok {
					return fmt.Errorf("no operation matches %q; try `tailor ops` for supported phrases", text)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (matched %q)\n", trigger.Operation, trigger.Phrase)
				return nil
			})
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <asset>",
		Short: "List every version of an asset in creation order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspace.ReadOnly, func(ws *workspace.Workspace) error {
				asset := ws.AssetOf(args[0])
				history, err := ws.Store.History(asset)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.HistoryResponse{Asset: asset, Versions: api.FromVersions(history)})
				}
				rows := make([][]string, 0, len(history))
				for i, v := range history {
					rows = append(rows, []string{
						strconv.Itoa(i),
						v.Filename,
						dash(v.Operation),
						dash(v.Parent),
						formatBytes(v.SizeBytes),
						v.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{
						numberColumn("#"), textColumn("Filename"), textColumn("Operation"),
						textColumn("Parent"), numberColumn("Size"), textColumn("Created"),
					},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List uploaded assets and their latest versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspace.ReadOnly, func(ws *workspace.Workspace) error {
				roots := ws.Store.Assets()
				if asJSON {
					return writeJSON(cmd, api.FromVersions(roots))
				}
				if len(roots) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No assets yet; add one with `tailor import <file>`")
					return nil
				}
				rows := make([][]string, 0, len(roots))
				for _, root := range roots {
					history, err := ws.Store.History(root.Asset)
					if err != nil {
						return err
					}
					leaf := history[len(history)-1]
					rows = append(rows, []string{root.Asset, strconv.Itoa(len(history)), leaf.Filename, formatBytes(root.SizeBytes)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{textColumn("Asset"), numberColumn("Versions"), textColumn("Latest"), numberColumn("Original Size")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newOpsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List supported operations and the phrases that trigger them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspace.ReadOnly, func(ws *workspace.Workspace) error {
				resp := api.FromRegistry(ws.Registry, ws.Resolver)
				if asJSON {
					return writeJSON(cmd, resp)
				}
				rows := make([][]string, 0, len(resp.Operations))
				for _, op := range resp.Operations {
					rows = append(rows, []string{op.ID, op.Description, "_" + op.Suffix, strings.Join(op.Triggers, ", ")})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{textColumn("Operation"), wrappedColumn("Description", 40), textColumn("Suffix"), wrappedColumn("Phrases", 48)},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <filename>",
		Short: "Probe a stored version with ffprobe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspace.ReadOnly, func(ws *workspace.Workspace) error {
				v, err := ws.Store.Get(filepath.Base(args[0]))
				if err != nil {
					return err
				}
				result, err := ffprobe.Inspect(cmd.Context(), ws.Config.Engine.FFprobeBinary, ws.Store.Path(v))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %s\n", v.Filename, result.Describe())
				if v.Operation != "" {
					fmt.Fprintf(out, "Derived by %s from %s\n", v.Operation, v.Parent)
				}
				return nil
			})
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
