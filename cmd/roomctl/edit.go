package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwrk-planet/roomsync/internal/docsync"
	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/signaling"
)

var errEmptyBoard = errors.New("whiteboard is empty")

var (
	flagColor string
	flagWidth float64
)

// runEdit входит в комнату, применяет правку и ждёт, пока сервер
// разошлёт обновлённые документы.
func runEdit(cmd *cobra.Command, roomID string, op func(*docsync.Client) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	l, err := a.enter(ctx, roomID, false, nil)
	if err != nil {
		return err
	}
	defer func() { _ = l.ctrl.Close() }()

	if err := op(l.ctrl.Docs()); err != nil {
		if errors.Is(err, errEmptyBoard) {
			fmt.Fprintln(cmd.OutOrStdout(), "whiteboard is empty")
			return nil
		}
		return err
	}
	if err := l.await(ctx, signaling.EventDocumentsUpdated, confirmTimeout); err != nil {
		return err
	}
	renderDocuments(cmd.OutOrStdout(), l.ctrl.Docs().Documents())
	return nil
}

// textArg — литерал, "-" читает stdin, "@file" читает файл.
func textArg(cmd *cobra.Command, arg string) (string, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		return string(b), err
	}
	return arg, nil
}

func textEdit(use, short string, apply func(*docsync.Client, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <room-id> <text|-|@file>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := textArg(cmd, args[1])
			if err != nil {
				return err
			}
			return runEdit(cmd, args[0], func(d *docsync.Client) error {
				return apply(d, body)
			})
		},
	}
}

var langCmd = &cobra.Command{
	Use:   "lang <room-id> <language>",
	Short: "Switch the editor language",
	Long:  "Switch the editor language. Known languages: " + knownLanguages(),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang := domain.Language(args[1])
		return runEdit(cmd, args[0], func(d *docsync.Client) error {
			return d.SwitchLanguage(lang)
		})
	},
}

var strokeCmd = &cobra.Command{
	Use:   "stroke <room-id> <x,y> [x,y...]",
	Short: "Draw a stroke on the whiteboard",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := parsePoints(args[1:])
		if err != nil {
			return err
		}
		s := domain.Stroke{
			ID:     uuid.NewString(),
			Color:  flagColor,
			Width:  flagWidth,
			Points: points,
		}
		return runEdit(cmd, args[0], func(d *docsync.Client) error {
			return d.AddStroke(s)
		})
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <room-id>",
	Short: "Remove the last whiteboard stroke",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(cmd, args[0], func(d *docsync.Client) error {
			if len(d.Documents().Whiteboard) == 0 {
				return errEmptyBoard
			}
			return d.UndoStroke()
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <room-id>",
	Short: "Clear the whiteboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(cmd, args[0], func(d *docsync.Client) error {
			return d.ClearWhiteboard()
		})
	},
}

func parsePoints(args []string) ([]domain.Point, error) {
	out := make([]domain.Point, 0, len(args))
	for _, a := range args {
		xs, ys, ok := strings.Cut(a, ",")
		if !ok {
			return nil, fmt.Errorf("%w: point %q, want x,y", domain.ErrValidation, a)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: point %q: %v", domain.ErrValidation, a, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: point %q: %v", domain.ErrValidation, a, err)
		}
		out = append(out, domain.Point{X: x, Y: y})
	}
	return out, nil
}

func knownLanguages() string {
	langs := domain.Languages()
	out := make([]string, len(langs))
	for i, l := range langs {
		out[i] = string(l)
	}
	return strings.Join(out, ", ")
}

func init() {
	strokeCmd.Flags().StringVar(&flagColor, "color", "#111827", "stroke color")
	strokeCmd.Flags().Float64Var(&flagWidth, "width", 3, "stroke width")

	rootCmd.AddCommand(
		textEdit("notes", "Replace the interview notes", (*docsync.Client).EditNotes),
		textEdit("code", "Replace the code in the current language", (*docsync.Client).EditCode),
		textEdit("input", "Replace the program input", (*docsync.Client).SetInput),
		textEdit("output", "Replace the program output", (*docsync.Client).SetOutput),
		langCmd, strokeCmd, undoCmd, clearCmd,
	)
}
