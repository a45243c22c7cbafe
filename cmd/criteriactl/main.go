// Package main is the entry point for criteriactl, a command line front end
// to the criteria query engine: it compiles criteria query strings, renders
// them as SQL, runs them against a database and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"metaquery/internal/domain/shop"
	"metaquery/internal/metadata"
	"metaquery/pkg/logger"
)

// options are the flags shared by every command.
type options struct {
	schema   string
	entity   string
	foldCase bool
	driver   string
	dsn      string
	timeout  time.Duration
}

func main() {
	// A .env file in the working directory seeds the environment; it is optional.
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "warn"),
		Development: getEnv("APP_ENV", "development") == "development",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "criteriactl",
		Short:         "Compile and run criteria queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.schema, "schema", "", "entity descriptor YAML (default: built-in shop entities)")
	flags.StringVarP(&opts.entity, "entity", "e", shop.EntityCategory, "entity to query")
	flags.BoolVar(&opts.foldCase, "fold-case", false, "case-insensitive contains/notContains")
	flags.StringVar(&opts.driver, "driver", getEnv("DATABASE_DRIVER", "sqlite"), "database driver: postgres, sqlite, mysql, gorm or memory")
	flags.StringVar(&opts.dsn, "dsn", getEnv("DATABASE_URL", ""), "database connection string")
	flags.DurationVar(&opts.timeout, "timeout", getEnvDuration("QUERY_TIMEOUT", 30*time.Second), "timeout of database commands")

	root.AddCommand(
		newCompileCmd(opts),
		newSQLCmd(opts),
		newFindCmd(opts),
		newCountCmd(opts),
		newInitCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// registry returns the entities the commands work on.
func (o *options) registry() (*metadata.Registry, error) {
	if o.schema == "" {
		return shop.Registry(), nil
	}
	defs, err := metadata.LoadFile(o.schema)
	if err != nil {
		return nil, err
	}
	reg := metadata.NewRegistry()
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (o *options) entityDef() (metadata.EntityDef, error) {
	reg, err := o.registry()
	if err != nil {
		return metadata.EntityDef{}, err
	}
	return reg.Lookup(o.entity)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
