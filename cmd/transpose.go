package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/compuse/internal/chords"
	"github.com/desertthunder/compuse/internal/formatter"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/urfave/cli/v3"
)

// Keys prints the twelve keys in table order.
func (r *Runner) Keys(ctx context.Context, cmd *cli.Command) error {
	names := make([]string, 0, chords.Semitones)
	for _, k := range chords.Keys() {
		names = append(names, k.String())
	}
	return r.writePlain("%s\n", strings.Join(names, " "))
}

// Transpose rewrites chord text read from the argument, --file or stdin.
func (r *Runner) Transpose(ctx context.Context, cmd *cli.Command) error {
	text, err := r.readText(cmd.StringArg("text"), cmd.String("file"))
	if err != nil {
		return err
	}

	from, to := cmd.String("from"), cmd.String("to")
	var out string
	switch {
	case from != "" || to != "":
		source, err := chords.ParseKey(from)
		if err != nil {
			return fmt.Errorf("%w: --from: %w", shared.ErrInvalidFlag, err)
		}
		target, err := chords.ParseKey(to)
		if err != nil {
			return fmt.Errorf("%w: --to: %w", shared.ErrInvalidFlag, err)
		}
		r.logger.Debug("transposing text", "from", source, "to", target, "interval", chords.Interval(source, target))
		out = chords.Transpose(source, target, text)
	case cmd.IsSet("semitones"):
		out = chords.TransposeBy(cmd.Int("semitones"), text)
	default:
		return fmt.Errorf("%w: either --from and --to or --semitones is required", shared.ErrMissingArgument)
	}

	if cmd.Bool("highlight") {
		out = formatter.HighlightChords(out, bracket)
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return r.writePlain("%s", out)
}

// readText returns arg, or the contents of path ("-" reads the runner's input).
func (r *Runner) readText(arg, path string) (string, error) {
	switch {
	case arg != "" && path != "":
		return "", fmt.Errorf("%w: give the text or --file, not both", shared.ErrInvalidArgument)
	case arg != "":
		return arg, nil
	case path == "-":
		data, err := io.ReadAll(r.input)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: no text given", shared.ErrMissingArgument)
	}
}

func bracket(chord string) string {
	return "[" + chord + "]"
}
