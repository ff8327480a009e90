package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bookshop/internal/config"
	"bookshop/internal/export"
	"bookshop/internal/models"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var rootCmd = &cobra.Command{
	Use:   "web",
	Short: "Bookshop storefront and back office",
	Long: `web serves the bookshop JSON API and carries the maintenance commands
that operate on the same database: creating the first admin account,
driving unfinished shipments and exporting the catalogue.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, cleanup, err := newApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		return app.serve(ctx)
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account, or promote an existing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		if email == "" || len(password) < minPasswordLength {
			return fmt.Errorf("--email and a --password of at least %d characters are required", minPasswordLength)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		app, cleanup, err := newApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		u, err := app.users.Insert(ctx, name, email, password, models.RoleAdmin)
		if errors.Is(err, models.ErrDuplicate) {
			existing, err := app.users.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			if err := app.users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return err
			}
			app.infoLog.Printf("Promoted %s to admin", existing.Email)
			return nil
		}
		if err != nil {
			return err
		}
		app.infoLog.Printf("Created admin %s (%s)", u.Email, u.ID.Hex())
		return nil
	},
}

var resumeShipmentsCmd = &cobra.Command{
	Use:   "resume-shipments",
	Short: "Drive unfinished shipment workflows once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		app, cleanup, err := newApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		rep, err := app.shipments.Resume(ctx)
		if err != nil {
			return err
		}
		app.infoLog.Printf("Resume: scanned %d, completed %d, failed %d, skipped %d",
			rep.Scanned, rep.Completed, rep.Failed, rep.Skipped)
		if rep.Failed > 0 {
			return fmt.Errorf("%d shipment workflows failed", rep.Failed)
		}
		return nil
	},
}

var exportProductsCmd = &cobra.Command{
	Use:   "export-products",
	Short: "Write the product catalogue as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		app, cleanup, err := newApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		products, names, err := app.catalogueForExport(ctx)
		if err != nil {
			return err
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return export.WriteProductsCSV(out, products, names)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// catalogueForExport loads every product together with a category id to
// name lookup.
func (app *application) catalogueForExport(ctx context.Context) ([]models.Product, map[primitive.ObjectID]string, error) {
	all, err := app.DB.AllProducts(ctx)
	if err != nil {
		return nil, nil, err
	}
	cats, err := app.DB.ListCategories(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	products := make([]models.Product, 0, len(all))
	for _, p := range all {
		products = append(products, *p)
	}
	names := make(map[primitive.ObjectID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return products, names, nil
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP network address (overrides server.addr)")

	createAdminCmd.Flags().String("email", "", "admin email")
	createAdminCmd.Flags().String("password", "", "admin password")
	createAdminCmd.Flags().String("name", "Administrator", "display name")

	exportProductsCmd.Flags().String("out", "", "output file (default stdout)")

	rootCmd.AddCommand(serveCmd, createAdminCmd, resumeShipmentsCmd, exportProductsCmd)
}
