package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelkehle/office-action-response/internal/assemble"
)

func newRenderCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "render <document.json>",
		Short: "Render an assembled response document as Markdown or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := fromContext(cmd)
			if err != nil {
				return err
			}
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc assemble.Document
			if err := json.Unmarshal(blob, &doc); err != nil {
				return fmt.Errorf("decode document: %w", err)
			}
			var out []byte
			switch format {
			case "md":
				out = []byte(assemble.RenderMarkdown(&doc))
			case "pdf":
				if output == "" {
					return fmt.Errorf("--output is required for pdf")
				}
				out, err = assemble.NewPDFRenderer(cc.cfg.Render.ChromePath).Render(cmd.Context(), &doc)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("format must be md or pdf, got %q", format)
			}
			if output == "" {
				_, err = os.Stdout.Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format (md, pdf)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults to stdout)")
	return cmd
}
