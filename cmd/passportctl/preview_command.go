package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/passportflow/internal/preview"
	"github.com/spf13/cobra"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var (
		file string
		out  string
		edit editFlags
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the edited photo locally without contacting the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			src, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read photo: %w", err)
			}

			if err := preview.Startup(ctx.logger); err != nil {
				return fmt.Errorf("start preview runtime: %w", err)
			}
			defer preview.Shutdown()

			renderer, err := preview.NewRenderer()
			if err != nil {
				return err
			}
			result, err := preview.Render(cmd.Context(), renderer, src, edit.state(), preview.Options{
				MaxEdge: ctx.cfg.Preview.MaxEdge,
				Format:  formatForPath(out),
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, result.Data, 0o644); err != nil {
				return fmt.Errorf("write preview: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d\n", out, result.Width, result.Height)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Photo to preview")
	cmd.Flags().StringVarP(&out, "out", "o", "preview.png", "Where to write the rendered preview")
	edit.register(cmd)
	return cmd
}

func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}
