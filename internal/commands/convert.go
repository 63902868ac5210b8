package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/continuity/internal/importer"
)

func newConvertCommand(g *globalOptions) *cobra.Command {
	var format, outDir string

	cmd := &cobra.Command{
		Use:   "convert <file|dir>...",
		Short: "Rewrite source statements as extract YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			if format == "" {
				format = cfg.Input.Format
			}

			stmts, err := importer.LoadFiles(importer.DefaultRegistry(), format, args)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output dir: %w", err)
			}

			for _, s := range stmts {
				data, err := yaml.Marshal(importer.ExtractFrom(s))
				if err != nil {
					return fmt.Errorf("encoding %s: %w", s.ID, err)
				}
				name := strings.TrimSuffix(s.ID, filepath.Ext(s.ID)) + ".yaml"
				path := filepath.Join(outDir, name)
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				log.WithField("statement", s.ID).WithField("path", path).Debug("converted")
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", s.ID, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "source format (overrides input.format)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "statements", "directory for the extract files")

	return cmd
}
