package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/xlharvest/internal/spreadsheet"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <output.xlsx>",
		Short: "Export collected links to a workbook",
		Long: `Export writes the targets of a saved crawl to an xlsx workbook.

By default the workbook has one sheet, "download_links", with the
columns description, download_link and filename.

With --metadata the workbook is a metadata sheet for "xlharvest build"
instead: one row per link with empty extraction columns
(headers_coord, data_starts, frequency, time_header_coord, context,
ws_name) to fill in by hand.

Examples:
  xlharvest export --name indec indec_links.xlsx
  xlharvest export --source indec --metadata indec.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: runExportCmd,
	}

	addStateFlags(cmd)
	cmd.Flags().BoolP("metadata", "m", false,
		"Write a metadata sheet template for the build command")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := readStateFlags(cmd, cfg); err != nil {
		return err
	}
	metadata, err := cmd.Flags().GetBool("metadata")
	if err != nil {
		return err
	}

	links, err := loadLinks(cfg, "")
	if err != nil {
		return err
	}
	setupLogger(cmd).Debug("exporting links", "name", cfg.Name, "links", len(links), "metadata", metadata)

	output := args[0]
	if metadata {
		err = spreadsheet.WriteSourceTemplate(output, links)
	} else {
		err = spreadsheet.ExportLinks(output, links)
	}
	if err != nil {
		return fmt.Errorf("failed to export links: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d links to %s\n", len(links), output)
	return nil
}
