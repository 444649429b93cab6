package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MirseoDB/mirseodb/internal/engine"
	"github.com/MirseoDB/mirseodb/internal/sqlparse"
	"github.com/MirseoDB/mirseodb/internal/table"
)

// createdbCmd creates a database on disk
var createdbCmd = &cobra.Command{
	Use:   "createdb <database>",
	Short: "Create a database on disk",
	Long: `Create the on-disk database directory, an empty data file, and a
default routing config. Idempotent: re-running against an existing
database is a no-op.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.EnsureDataDir(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if _, err := engine.CreateDatabase(cfg.Data.Dir, args[0], engineOptions(cfg)); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created database %q under %s\n", args[0], cfg.Data.Dir)
	},
}

// queryCmd executes one statement against a database and prints the rows
var queryCmd = &cobra.Command{
	Use:   "query <database> <sql>",
	Short: "Execute a single SQL statement",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		eng, err := openEngine(cfg, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}

		sql := strings.Join(args[1:], " ")
		stmt, err := sqlparse.Parse(sql)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
			os.Exit(1)
		}

		rows, err := eng.Execute(stmt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Execution error: %v\n", err)
			os.Exit(1)
		}

		for _, row := range rows {
			parts := make([]string, 0, len(row))
			for _, col := range table.SortedColumns(row) {
				parts = append(parts, fmt.Sprintf("%s=%s", col, row[col]))
			}
			fmt.Println(strings.Join(parts, "\t"))
		}
		fmt.Printf("(%d rows)\n", len(rows))
	},
}

// tablesCmd lists a database's tables
var tablesCmd = &cobra.Command{
	Use:   "tables <database>",
	Short: "List a database's tables",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		eng, err := openEngine(cfg, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}

		for _, info := range eng.TableInfos() {
			fmt.Printf("%s\t%d columns\t%d rows\n", info.Name, info.ColumnCount, info.RowCount)
		}
	},
}

func init() {
	rootCmd.AddCommand(createdbCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tablesCmd)
}
