package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/render"
	"github.com/graphrapids/graphapi/internal/resolver"
	"github.com/graphrapids/graphapi/internal/services"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the collection schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create and publish the built-in default collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()

			changed, err := services.NewSeeder(reg).EnsureDefaults(cmd.Context())
			if err != nil {
				return err
			}
			if len(changed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "defaults already present")
				return nil
			}
			for _, kind := range changed {
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %s/%s\n", kind, services.DefaultID)
			}
			return nil
		},
	}
}

func newImportThemeCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "import-theme <file.css>",
		Short: "Import a CSS-only legacy theme",
		Long:  "Creates or fills a theme from a plain stylesheet. Themes that already have variables or a body are left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			css, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			reg, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()

			res, err := services.NewSeeder(reg).ImportLegacyTheme(cmd.Context(), id, string(css))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "theme %s: %s (published v%d)\n", id, res.Status, res.Entity.LastPublishedVersion())
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", services.DefaultID, "theme id")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var (
		graphType string
		themeID   string
		stage     string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "render <graph.yaml>",
		Short: "Render a YAML graph to SVG against the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			reg, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()

			cfg := services.NewConfigService(reg, resolver.New(reg))
			svc := services.NewRenderService(cfg, render.NewGraphvizLayout(), render.NewSVGRenderer(), nil, nil, services.RenderOptions{})
			res, err := svc.RenderSVG(cmd.Context(), &services.RenderInput{
				YAML:        string(input),
				GraphTypeID: graphType,
				Stage:       models.Stage(stage),
				ThemeID:     themeID,
			})
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(res.SVG)
				return err
			}
			return os.WriteFile(output, res.SVG, 0o644)
		},
	}
	cmd.Flags().StringVar(&graphType, "graph-type", services.DefaultID, "graph type id")
	cmd.Flags().StringVar(&themeID, "theme", "", "theme id (default theme when empty)")
	cmd.Flags().StringVar(&stage, "stage", string(models.StagePublished), "draft or published")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	return cmd
}
