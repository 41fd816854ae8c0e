// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/invowk/contentpipe/internal/issue"
	"github.com/invowk/contentpipe/pkg/contentfs"
	"github.com/invowk/contentpipe/pkg/contentmeta"
	"github.com/invowk/contentpipe/pkg/kar"

	"github.com/spf13/cobra"
)

// karFormatVersion is written into the header of every packed archive.
const karFormatVersion = 1

func newPackCommand(flags *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack <source-dir>",
		Short: "Pack a directory source into a .kar archive",
		Long: `Pack a directory source into a .kar archive.

Every entry is compressed with lz4 on its own, so entries can be read
concurrently and without unpacking the archive. The source manifest is
validated first; the archive is named after the source unless -o is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, out, err := packSource(cmd, args[0], output)
			if err != nil {
				return fail(cmd, flags, ExitStructural, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s packed %d entries into %s\n", SuccessStyle.Render("✓"), n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default <name>.kar in the current directory)")
	return cmd
}

func packSource(cmd *cobra.Command, dir, output string) (int, string, error) {
	s, err := contentfs.OpenDir(dir)
	if err != nil {
		return 0, "", issue.NewErrorContext().
			WithOperation("pack content source").
			WithResource(dir).
			WithSuggestion("Pass the path of a source directory").
			WithIssue(issue.SourceNotFoundId).
			Wrap(err).
			BuildError()
	}
	defer s.Close()

	meta, err := contentmeta.Read(cmd.Context(), s, dir)
	if err != nil {
		return 0, "", issue.NewErrorContext().
			WithOperation("pack content source").
			WithResource(dir).
			WithSuggestion("Fix the source manifest before packing").
			WithIssue(issue.ManifestInvalidId).
			Wrap(err).
			BuildError()
	}

	if output == "" {
		output = meta.Name + kar.Extension
	}

	b := kar.NewBuilder(kar.Header{
		Author:  meta.Author,
		Created: time.Now().Unix(),
		Version: karFormatVersion,
	})
	if err := b.AddFS(os.DirFS(dir)); err != nil {
		return 0, "", fmt.Errorf("pack %s: %w", dir, err)
	}
	if err := writeFileAtomic(output, b); err != nil {
		return 0, "", err
	}
	return len(s.Entries()), output, nil
}

// writeFileAtomic writes through a temporary file in the target directory
// so a failed pack never leaves a truncated archive behind.
func writeFileAtomic(path string, b *kar.Builder) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".contentpipe-pack-*")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = b.WriteTo(tmp); err != nil {
		err = errors.Join(fmt.Errorf("write archive: %w", err), tmp.Close())
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}
