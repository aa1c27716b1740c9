package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelkehle/office-action-response/internal/doctext"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

func newExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <office-action.pdf|txt>",
		Short: "Extract rejections and claim statuses from an office action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := fromContext(cmd)
			if err != nil {
				return err
			}
			res, err := doctext.New().File(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			exec, err := newExecutor(cc.cfg, cc.log)
			if err != nil {
				return err
			}
			ext, err := oa.NewExtractor(exec, cc.log).Extract(cmd.Context(), res.Text)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ext)
		},
	}
}
