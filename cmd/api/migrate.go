package main

import (
	"fmt"

	"comments-api/infrastructure/config"
	"comments-api/infrastructure/di"
	"comments-api/infrastructure/persistence/dynamodb"
	"comments-api/infrastructure/persistence/sqlstore"

	"github.com/spf13/cobra"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the comment store schema",
	Long: `Apply the SQL migrations for the postgres and sqlite stores, or create
the DynamoDB table and its indexes when it does not exist.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll every SQL migration back")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return err
		}
		return dynamodb.EnsureTable(ctx, di.ProvideDynamoDBClient(awsCfg, cfg), cfg.TableName, logger)

	case config.StorePostgres, config.StoreSQLite:
		db, dialect, err := di.OpenDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if migrateDown {
			return sqlstore.MigrateDown(db, dialect)
		}
		return sqlstore.Migrate(db, dialect, logger)

	default:
		return fmt.Errorf("store %q has no schema to migrate", cfg.StoreBackend)
	}
}
