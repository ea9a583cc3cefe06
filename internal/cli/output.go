package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exitError(exitSysError, "encode output: %s", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// userErrors are rejections caused by the caller's input rather than by the
// store; they exit 1.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidData,
	types.ErrUserNotFound,
	types.ErrSeriesNotFound,
	types.ErrChapterNotFound,
	types.ErrInvalidAmount,
	types.ErrInvalidTxType,
	types.ErrAlreadyUnlocked,
	types.ErrInsufficientBalance,
	types.ErrDuplicateChapter,
	types.ErrTableNotFound,
}

// commandError maps an engine error to the matching exit code.
func commandError(action string, err error) error {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitError(exitUserError, "%s: %w", action, err)
		}
	}
	return exitError(exitSysError, "%s: %w", action, err)
}
