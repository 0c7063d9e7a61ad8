package search

import (
	"context"
	"io"
	"sort"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// ReplaceFunc maps a match to its replacement text. Returning m.Value
// yields an identity rewrite; returning "" erases the match (spec §4.7).
type ReplaceFunc func(m MatchRecord) string

// Replace performs a streaming search-and-replace over inputPath using
// matches (typically the output of Strategy.Matches for one regex,
// already deduped and sorted), writing the rewritten file to outputPath.
// File-mode only (spec §4.7): it opens inputPath itself and reads it
// forward from offset 0, not via a SequentialSource.
func Replace(ctx context.Context, inputPath, outputPath string, matches []MatchRecord, fn ReplaceFunc) error {
	in, err := file.Open(ctx, inputPath)
	if err != nil {
		return errors.Wrapf(err, "search: open %s", inputPath)
	}
	defer in.Close(ctx) // nolint: errcheck

	out, err := file.Create(ctx, outputPath)
	if err != nil {
		return errors.Wrapf(err, "search: create %s", outputPath)
	}
	w := out.Writer(ctx)

	sorted := make([]MatchRecord, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].StartOffset < sorted[b].StartOffset })

	r := in.Reader(ctx)
	var pos int64
	for _, m := range sorted {
		if err := copyRange(w, r, &pos, m.StartOffset); err != nil {
			return errors.Wrapf(err, "search: replace %s: copying up to offset %d", inputPath, m.StartOffset)
		}
		if _, err := io.WriteString(w, fn(m)); err != nil {
			return errors.Wrapf(err, "search: replace %s: writing replacement at offset %d", outputPath, m.StartOffset)
		}
		pos += int64(len(m.Value))
		if err := discard(r, int64(len(m.Value))); err != nil {
			return errors.Wrapf(err, "search: replace %s: skipping matched region at offset %d", inputPath, m.StartOffset)
		}
	}
	if _, err := io.Copy(w, r); err != nil {
		return errors.Wrapf(err, "search: replace %s: copying remainder", inputPath)
	}
	return errors.Wrapf(out.Close(ctx), "search: close %s", outputPath)
}

// copyRange copies bytes from the current position of r up to (not
// including) target, advancing pos as it goes (spec §4.7 step 2).
func copyRange(w io.Writer, r io.Reader, pos *int64, target int64) error {
	n := target - *pos
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(w, r, n); err != nil {
		return err
	}
	*pos = target
	return nil
}

// discard skips n bytes forward in r without writing them (the matched
// region itself, already replaced by the callback's output).
func discard(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
