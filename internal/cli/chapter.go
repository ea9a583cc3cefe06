package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newChapterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter",
		Short: "Inspect chapters",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "exists <series-id> <chapter-number>",
		Short: "Report whether a series already has a chapter number",
		Args:  cobra.ExactArgs(2),
		RunE:  runChapterExists,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <series-id>",
		Short: "List a series' chapters in reading order",
		Args:  cobra.ExactArgs(1),
		RunE:  runChapterList,
	})
	return cmd
}

func runChapterExists(cmd *cobra.Command, args []string) error {
	b, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ok, err := b.ChapterExists(cmd.Context(), args[0], args[1])
	if err != nil {
		return commandError("check chapter", err)
	}
	if flags.jsonMode {
		return printJSON(cmd, map[string]any{"series_id": args[0], "chapter_number": args[1], "exists": ok})
	}
	fmt.Fprintln(cmd.OutOrStdout(), ok)
	return nil
}

func runChapterList(cmd *cobra.Command, args []string) error {
	b, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	chapters, err := b.ListChapters(cmd.Context(), args[0])
	if err != nil {
		return commandError("list chapters", err)
	}
	if flags.jsonMode {
		return printJSON(cmd, chapters)
	}
	out := cmd.OutOrStdout()
	for _, c := range chapters {
		fmt.Fprintf(out, "%-8s %3d pages  %s\n", c.Number, c.TotalPages, c.Title)
	}
	return nil
}
