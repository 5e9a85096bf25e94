package main

import (
	"fmt"
	"strconv"

	"github.com/liamcoop/carprice/artifacts"
	"github.com/spf13/cobra"
)

// publishCmd uploads file artifacts to PostgreSQL
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the artifact directory as a new active model version",
	Long: `Read the model and columns files from the artifact directory and store
them in PostgreSQL as the next version of the model. The new version becomes
active; servers pick it up on restart.

Bundles that fail to decode or whose feature count disagrees with the columns
are refused.`,
	RunE: runPublish,
}

// versionsCmd lists the stored versions
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the published versions of the model",
	RunE:  runVersions,
}

// activateCmd switches the active version
var activateCmd = &cobra.Command{
	Use:   "activate <version>",
	Short: "Make a published version active",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivate,
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format, data, cols, err := fileStore(cfg).ReadRaw()
	if err != nil {
		return err
	}

	db, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := artifacts.NewPostgresStore(db, cfg.Artifacts.Name).Publish(cmd.Context(), format, data, cols)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published %s version %s (%s, %d columns)\n",
		cfg.Artifacts.Name, priceColor.Sprint(version), format, len(cols))
	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	versions, err := artifacts.NewPostgresStore(db, cfg.Artifacts.Name).ListVersions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(versions) == 0 {
		fmt.Fprintf(out, "no versions of %s\n", cfg.Artifacts.Name)
		return nil
	}
	for _, v := range versions {
		marker := " "
		if v.Active {
			marker = priceColor.Sprint("*")
		}
		fmt.Fprintf(out, "%s %3d  %-8s %3d columns  %s\n",
			marker, v.Version, v.Format, v.ColumnCount, dimColor.Sprint(v.CreatedAt.Format("2006-01-02 15:04:05")))
	}
	return nil
}

func runActivate(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := artifacts.NewPostgresStore(db, cfg.Artifacts.Name).Activate(cmd.Context(), version); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "activated %s version %d\n", cfg.Artifacts.Name, version)
	return nil
}
