// Command relvault is a thin CLI over a Manager: backup, restore,
// integrity checking, and statistics reporting against a database file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/relvault/relvault/db"
	"github.com/relvault/relvault/schema"
)

const version = "0.1.0"

// CLI defines relvault's command-line interface.
var CLI struct {
	Database string `required:"" short:"d" help:"Path to the SQLite database file" type:"path"`

	Backup          BackupCmd          `cmd:"" help:"Write a backup of the database"`
	Restore         RestoreCmd         `cmd:"" help:"Restore the database from a backup"`
	Stats           StatsCmd           `cmd:"" help:"Print database statistics"`
	IntegrityCheck  IntegrityCheckCmd  `cmd:"" name:"integrity-check" help:"Run PRAGMA integrity_check"`
	Optimize        OptimizeCmd        `cmd:"" help:"Vacuum and analyze the database"`
	Version         VersionCmd         `cmd:"" help:"Print version information"`
}

func openManager(path string) (*db.Manager, error) {
	m, err := db.New(db.DefaultConfig(path), []schema.Table{})
	if err != nil {
		return nil, err
	}
	if err := m.Connect(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}

// BackupCmd writes a backup file.
type BackupCmd struct {
	Out      string `arg:"" help:"Backup output path" type:"path"`
	Compress bool   `help:"Gzip-compress the backup (output path must end in .gz)"`
	Schema   bool   `help:"Write a schema-only JSON backup instead of a full binary copy"`
}

func (c *BackupCmd) Run() error {
	m, err := openManager(CLI.Database)
	if err != nil {
		return err
	}
	defer m.Disconnect(context.Background())

	opts := db.DefaultBackupOptions()
	opts.Compress = c.Compress
	if c.Schema {
		opts.Format = db.BackupJSON
	}

	if err := m.Backup(context.Background(), c.Out, opts); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	fmt.Printf("Backup written: %s\n", c.Out)
	return nil
}

// RestoreCmd restores from a backup file.
type RestoreCmd struct {
	In           string `arg:"" help:"Backup input path" type:"existingfile"`
	DropExisting bool   `help:"Drop existing tables before restoring"`
}

func (c *RestoreCmd) Run() error {
	m, err := openManager(CLI.Database)
	if err != nil {
		return err
	}
	defer m.Disconnect(context.Background())

	err = m.Restore(context.Background(), c.In, db.RestoreOptions{DropExisting: c.DropExisting})
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	fmt.Printf("Restored from: %s\n", c.In)
	return nil
}

// StatsCmd prints database statistics.
type StatsCmd struct{}

func (c *StatsCmd) Run() error {
	m, err := openManager(CLI.Database)
	if err != nil {
		return err
	}
	defer m.Disconnect(context.Background())

	stats, err := m.GetDatabaseStats(context.Background())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("Tables:        %d\n", stats.Tables)
	fmt.Printf("Total records: %d\n", stats.TotalRecords)
	fmt.Printf("Database size: %d bytes\n", stats.DatabaseSize)
	fmt.Printf("Indexes:       %d\n", stats.Indexes)
	for _, ts := range stats.TableStats {
		fmt.Printf("  %-24s records=%-8d size=%d\n", ts.Name, ts.Records, ts.Size)
	}
	return nil
}

// IntegrityCheckCmd runs PRAGMA integrity_check.
type IntegrityCheckCmd struct{}

func (c *IntegrityCheckCmd) Run() error {
	m, err := openManager(CLI.Database)
	if err != nil {
		return err
	}
	defer m.Disconnect(context.Background())

	report, err := m.CheckIntegrity(context.Background())
	if err != nil {
		return fmt.Errorf("integrity-check: %w", err)
	}

	if report.IsValid {
		fmt.Println("ok")
		return nil
	}

	fmt.Println("integrity errors found:")
	for _, e := range report.Errors {
		fmt.Printf("  %s\n", e)
	}
	os.Exit(1)
	return nil
}

// OptimizeCmd runs vacuum/analyze/reindex.
type OptimizeCmd struct {
	Reindex bool `help:"Also rebuild indexes"`
}

func (c *OptimizeCmd) Run() error {
	m, err := openManager(CLI.Database)
	if err != nil {
		return err
	}
	defer m.Disconnect(context.Background())

	opts := db.DefaultOptimizeOptions()
	opts.Reindex = c.Reindex
	if err := m.Optimize(context.Background(), opts); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	fmt.Println("optimize complete")
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("relvault"),
		kong.Description("Lifecycle and maintenance tool for a relvault-managed SQLite database"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
