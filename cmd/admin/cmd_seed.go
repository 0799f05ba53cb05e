package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/geocoder89/contextbridge/internal/auth"
	"github.com/geocoder89/contextbridge/internal/config"
	"github.com/geocoder89/contextbridge/internal/db"
	"github.com/geocoder89/contextbridge/internal/identity"
	"github.com/geocoder89/contextbridge/internal/observability"
	"github.com/geocoder89/contextbridge/internal/seed"
	"github.com/geocoder89/contextbridge/internal/store"
	"github.com/spf13/cobra"
)

var seedFile string

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the ADMIN_EMAIL account if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
			return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}
		log := observability.NewLogger(cfg.Env)

		stores, err := store.Open(cmd.Context(), cfg, nil, log)
		if err != nil {
			return err
		}
		defer stores.Close()

		created, err := db.EnsureAdminUser(cmd.Context(), stores.Users, cfg)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", cfg.AdminEmail)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", cfg.AdminEmail)
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load connectors, contexts and users from a YAML file",
	Long: `Load connectors, contexts and users from a YAML file.

Contexts list their data connectors by name and users list their roles by
context name. Entries that already exist by name (or email) are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := observability.NewLogger(cfg.Env)

		fh, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer fh.Close()

		f, err := seed.Load(fh)
		if err != nil {
			return err
		}

		stores, err := store.Open(cmd.Context(), cfg, nil, log)
		if err != nil {
			return err
		}
		defer stores.Close()

		tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL())
		ident := identity.NewService(stores.Users, stores.Contexts, tokens, cfg.BcryptCost)

		res, err := seed.Apply(cmd.Context(), seed.Targets{
			DataConnectors: stores.DataConnectors,
			LLMConnectors:  stores.LLMConnectors,
			Contexts:       stores.Contexts,
			Users:          ident,
		}, f, log)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", res.Created, res.Skipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "seed.yaml", "path to the seed file")
}
