// Package main prints category trees as indented text, for checking what the
// tree queries return against a real catalog.
//
// Usage:
//
//	go run ./cmd/treeinspect -taxonomy subject -complete
//	go run ./cmd/treeinspect -levels 2 -strategy recursive -sql
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/store/sqlstore"
	"github.com/filecatman/catalog/internal/treequery"
)

var (
	taxonomy = flag.String("taxonomy", "", "Taxonomy table name (default: every enabled taxonomy)")
	levels   = flag.Int("levels", -1, "Deepest level to print (-1: the catLvls option)")
	strategy = flag.String("strategy", "", "Query strategy: joins or recursive")
	complete = flag.Bool("complete", false, "Print slug and count")
	sortTree = flag.Bool("sort", false, "Sort siblings by name, ignoring case and accents")
	showSQL  = flag.Bool("sql", false, "Print the generated query first")
)

func main() {
	flag.Parse()
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "treeinspect: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}
	st, err := sqlstore.Open(sqlstore.Config{Dialect: dialect, Path: cfg.Database.Path, DSN: cfg.Database.DSN}, log.Logger)
	if err != nil {
		return err
	}
	defer st.Close()

	trees := service.NewTreeService(st, cfg.Catalog.CategoryLevels, treequery.Strategy(cfg.Catalog.TreeStrategy), log.Logger)

	req := service.TreeRequest{
		Taxonomy: *taxonomy,
		Complete: *complete,
		Strategy: *strategy,
		Sort:     *sortTree,
	}
	if *levels >= 0 {
		req.Levels = levels
	}

	result, err := trees.BuildTree(ctx, req)
	if err != nil {
		return err
	}

	if *showSQL {
		q, err := treequery.Build(treequery.Options{
			Filter:   treequery.Filter{Taxonomy: *taxonomy},
			Levels:   result.Levels,
			Complete: *complete,
			Strategy: result.Strategy,
		})
		if err != nil {
			return err
		}
		fmt.Printf("-- %s, %d levels\n%s\n\n", q.Strategy, q.Levels, q.SQL)
	}

	entries := result.Model.Entries()
	for _, e := range entries {
		line := strings.Repeat("  ", e.Level) + e.Name
		if *complete {
			line += fmt.Sprintf("  [%s/%s] (%d)", e.Taxonomy, e.Slug, e.Count)
		}
		fmt.Println(line)
	}
	fmt.Fprintf(os.Stderr, "%d terms, %d levels, %s strategy\n", len(entries), result.Levels, result.Strategy)
	return nil
}
