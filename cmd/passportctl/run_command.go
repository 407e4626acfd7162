package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/gate"
	"github.com/dunamismax/passportflow/internal/id"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/dunamismax/passportflow/internal/wizard"
	"github.com/spf13/cobra"
)

type runOptions struct {
	file       string
	edit       editFlags
	background string
	color      string
	size       string
	copies     int
	outDir     string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Take one photo through every wizard stage and save the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.file == "" {
				return errors.New("--file is required")
			}
			if opts.background != "" && opts.color != "" {
				return errors.New("--background and --color are mutually exclusive")
			}
			client, err := ctx.processingClient()
			if err != nil {
				return err
			}
			summary, err := runWizard(cmd.Context(), ctx, client, *opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, summary.rows(), nil))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Photo to process (JPEG or PNG)")
	opts.edit.register(cmd)
	cmd.Flags().StringVar(&opts.background, "background", "", "Background preset (white, lightgray, blue, transparent)")
	cmd.Flags().StringVar(&opts.color, "color", "", "Custom background color as #rrggbb")
	cmd.Flags().StringVar(&opts.size, "size", "", "Size key from the catalog (defaults to the first entry)")
	cmd.Flags().IntVar(&opts.copies, "copies", domain.DefaultCopies, "Copies on the printable sheet")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Directory for the processed photo and sheet")
	return cmd
}

type runSummary struct {
	sessionID  string
	size       domain.SizeSpec
	background string
	degraded   bool
	photoPath  string
	sheetPath  string
	copies     int
}

func (r runSummary) rows() [][]string {
	catalog := "remote"
	if r.degraded {
		catalog = "built-in"
	}
	return [][]string{
		{"Session", r.sessionID},
		{"Size", fmt.Sprintf("%s (%dx%d)", r.size.Name, r.size.Width, r.size.Height)},
		{"Catalog", catalog},
		{"Background", r.background},
		{"Copies", strconv.Itoa(r.copies)},
		{"Photo", r.photoPath},
		{"Sheet", r.sheetPath},
	}
}

func runWizard(ctx context.Context, cc *commandContext, client *processing.Client, opts runOptions) (runSummary, error) {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return runSummary{}, fmt.Errorf("read photo: %w", err)
	}
	background, err := parseBackgroundFlags(opts.background, opts.color)
	if err != nil {
		return runSummary{}, err
	}
	if !domain.ValidCopies(opts.copies) {
		return runSummary{}, fmt.Errorf("%w: %d", domain.ErrInvalidCopies, opts.copies)
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return runSummary{}, fmt.Errorf("create output directory: %w", err)
	}

	s, err := wizard.New(wizard.Options{
		ID:          id.New(),
		Service:     client,
		NoWatermark: !cc.cfg.Collaborator.Watermark,
		Logger:      cc.logger,
	})
	if err != nil {
		return runSummary{}, err
	}
	defer s.Close(context.Background())

	catalog := s.LoadSizes(ctx)
	_, degraded := s.Sizes()

	name := filepath.Base(opts.file)
	up := wizard.Upload{Name: name, ContentType: gate.NormalizeContentType("", name), Data: data}
	if err := s.SelectFile(ctx, up); err != nil {
		return runSummary{}, err
	}
	if err := advance(s); err != nil {
		return runSummary{}, err
	}

	if _, err := opts.edit.apply(s); err != nil {
		return runSummary{}, err
	}
	if err := advance(s); err != nil {
		return runSummary{}, err
	}

	if err := s.SelectBackground(background); err != nil {
		return runSummary{}, err
	}
	if err := advance(s); err != nil {
		return runSummary{}, err
	}

	if opts.size != "" {
		if err := s.SelectSize(opts.size); err != nil {
			return runSummary{}, fmt.Errorf("%w (available: %v)", err, catalog.Keys())
		}
	}
	if err := s.Process(ctx); err != nil {
		return runSummary{}, err
	}
	if err := advance(s); err != nil {
		return runSummary{}, err
	}

	sheetRef, err := s.RequestOutput(ctx, opts.copies)
	if err != nil {
		return runSummary{}, err
	}

	a := s.Artifact()
	photoPath, err := saveDownload(ctx, client, a.ProcessedRef, opts.outDir)
	if err != nil {
		return runSummary{}, err
	}
	sheetPath, err := saveDownload(ctx, client, sheetRef, opts.outDir)
	if err != nil {
		return runSummary{}, err
	}

	return runSummary{
		sessionID:  s.ID(),
		size:       a.SizeSpec,
		background: a.Background.WireValue(),
		degraded:   degraded,
		photoPath:  photoPath,
		sheetPath:  sheetPath,
		copies:     opts.copies,
	}, nil
}

func advance(s *wizard.Session) error {
	from := s.Stage()
	if d := s.Advance(); !d.Admitted {
		if msg := s.LastError(); msg != "" {
			return fmt.Errorf("%s: %s", from, msg)
		}
		return fmt.Errorf("%s: %s", from, d.Reason)
	}
	return nil
}

func parseBackgroundFlags(preset, color string) (domain.BackgroundSpec, error) {
	switch {
	case color != "":
		return domain.CustomBackground(color)
	case preset != "":
		return domain.ParseBackground(preset)
	default:
		return domain.DefaultBackground(), nil
	}
}

func saveDownload(ctx context.Context, client *processing.Client, name, dir string) (string, error) {
	data, err := client.Download(ctx, name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}
