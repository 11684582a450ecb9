// Package main runs a one-shot relation count audit against the catalog
// database. Ctrl-C cancels the audit and rolls back every correction.
//
// Usage:
//
//	go run ./cmd/recount
//	DB_DRIVER=mysql DB_DSN='user:pass@tcp(localhost:3306)/catalog' go run ./cmd/recount -quiet
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

var quiet = flag.Bool("quiet", false, "Only print the corrections")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recount: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Database location comes from the environment and .env, like the server.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audits := service.NewAuditService(st, store.NewNoopEmitter(), log.Logger)

	var progress func(domain.AuditProgress)
	if !*quiet {
		progress = func(p domain.AuditProgress) {
			fmt.Fprintf(os.Stderr, "\r%d/%d terms checked, %d to correct", p.Done, p.Total, p.Corrections)
		}
	}

	job, err := audits.RunSync(ctx, service.TriggerCLI, progress)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if errors.Is(err, store.ErrAuditCancelled) {
		return errors.New("cancelled, no counts were changed")
	}
	if err != nil {
		return err
	}

	printResult(job)
	return nil
}

func printResult(job domain.AuditJob) {
	if job.Result == nil || len(job.Result.Corrections) == 0 {
		if !*quiet {
			fmt.Printf("All counts correct (%d terms checked)\n", checked(job))
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TERM\tNAME\tTAXONOMY\tSTORED\tACTUAL")
	for _, c := range job.Result.Corrections {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", c.TermID, c.Name, c.Taxonomy, c.Stored, c.Actual)
	}
	_ = w.Flush()

	if !*quiet {
		fmt.Printf("\n%d of %d counts corrected\n", len(job.Result.Corrections), checked(job))
	}
}

func checked(job domain.AuditJob) int {
	if job.Result == nil {
		return 0
	}
	return job.Result.Checked
}

