// Command katmer is the thin CLI front end over core/engine: it loads
// an inventory document and one or more task files via core/config,
// then drives core/engine.Run. Every concrete module package is blank
// imported below so its init() self-registers before any task runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/furkankose/katmer/core/config"
	"github.com/furkankose/katmer/core/engine"
	"github.com/furkankose/katmer/core/inventory"
	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/types"

	_ "github.com/furkankose/katmer/modules/archive"
	_ "github.com/furkankose/katmer/modules/become"
	_ "github.com/furkankose/katmer/modules/copy"
	_ "github.com/furkankose/katmer/modules/cron"
	_ "github.com/furkankose/katmer/modules/debug"
	_ "github.com/furkankose/katmer/modules/gatherfacts"
	_ "github.com/furkankose/katmer/modules/git"
	_ "github.com/furkankose/katmer/modules/hostname"
	_ "github.com/furkankose/katmer/modules/http"
	_ "github.com/furkankose/katmer/modules/pkg"
	_ "github.com/furkankose/katmer/modules/script"
	_ "github.com/furkankose/katmer/modules/setfact"
	_ "github.com/furkankose/katmer/modules/systemd"
	_ "github.com/furkankose/katmer/modules/template"
)

var (
	inventoryPath string
	taskFilePaths []string
	targetPattern string
	logLevel      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "katmer",
	Short: "Agentless configuration and remote-execution engine",
	Long: `katmer runs declarative task files against an inventory of local and
remote targets over SSH, with no agent installed on the targets themselves.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one or more task files against the inventory",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate inventory and task files without contacting any target",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var listTargetsCmd = &cobra.Command{
	Use:   "list-targets",
	Short: "Resolve and print the targets a pattern selects",
	Args:  cobra.NoArgs,
	RunE:  runListTargets,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "i", "inventory.yml", "Path to the inventory file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	runCmd.Flags().StringArrayVarP(&taskFilePaths, "file", "f", nil, "Path to a task file (repeatable)")
	runCmd.MarkFlagRequired("file")

	checkCmd.Flags().StringArrayVarP(&taskFilePaths, "file", "f", nil, "Path to a task file (repeatable)")
	checkCmd.MarkFlagRequired("file")

	listTargetsCmd.Flags().StringVarP(&targetPattern, "pattern", "p", "all", "Target selection pattern")

	rootCmd.AddCommand(runCmd, checkCmd, listTargetsCmd)
}

func newLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "katmer",
		Level:  hclog.LevelFromString(logLevel),
		Output: os.Stderr,
	})
}

func loadInventory() (engine.TargetsConfig, error) {
	data, err := os.ReadFile(inventoryPath)
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", inventoryPath, err)
	}
	raw, err := config.LoadInventory(data)
	if err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", inventoryPath, err)
	}
	return engine.TargetsConfig(raw), nil
}

func loadTaskFiles() ([]engine.TaskFile, error) {
	files := make([]engine.TaskFile, 0, len(taskFilePaths))
	for _, path := range taskFilePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read task file %s: %w", path, err)
		}
		tf, err := config.LoadTaskFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse task file %s: %w", path, err)
		}
		files = append(files, engine.TaskFile{Targets: tf.Targets, Defaults: tf.Defaults, Tasks: tf.Tasks})
	}
	return files, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadInventory()
	if err != nil {
		return err
	}
	files, err := loadTaskFiles()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := engine.Run(ctx, logger, cfg, files)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

// runCheck validates that the inventory normalizes, every task file
// parses, every referenced module is registered, and every task's
// params satisfy that module's schema. It never constructs a provider
// or runs a single command against a target.
func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadInventory()
	if err != nil {
		return err
	}
	if _, err := inventory.Normalize(map[string]any(cfg)); err != nil {
		return fmt.Errorf("inventory invalid: %w", err)
	}

	files, err := loadTaskFiles()
	if err != nil {
		return err
	}

	problems := 0
	for fi, file := range files {
		for ti, t := range file.Tasks {
			mod, ok := module.Lookup(t.Module)
			if !ok {
				fmt.Fprintf(os.Stderr, "file %d task %d (%s): unknown module %q\n", fi, ti, t.Name, t.Module)
				problems++
				continue
			}
			if internal, ok := mod.(module.Internal); ok && internal.InternalOnly() {
				fmt.Fprintf(os.Stderr, "file %d task %d (%s): %q is not directly selectable\n", fi, ti, t.Name, t.Module)
				problems++
				continue
			}
			if err := module.ValidateParams(mod.Schema(), t.Params); err != nil {
				fmt.Fprintf(os.Stderr, "file %d task %d (%s): %v\n", fi, ti, t.Name, err)
				problems++
			}
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Println("ok")
	return nil
}

func runListTargets(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadInventory()
	if err != nil {
		return err
	}
	inv, err := inventory.Normalize(map[string]any(cfg))
	if err != nil {
		return fmt.Errorf("inventory invalid: %w", err)
	}
	resolver := inventory.NewResolver(inv, logger.Named("resolver"))
	defer resolver.Dispose()

	targets, err := resolver.ResolveTargets(targetPattern)
	if err != nil {
		return fmt.Errorf("resolve pattern %q: %w", targetPattern, err)
	}
	for _, target := range targets {
		if target.Connection == types.ConnectionLocal {
			fmt.Printf("%s\tlocal\n", target.Name)
			continue
		}
		fmt.Printf("%s\t%s@%s:%d\n", target.Name, target.Username, target.Hostname, target.Port)
	}
	return nil
}

func printReport(report *engine.RunReport) {
	fmt.Printf("run %s: %d task(s), %v -> %v\n", report.RunID, len(report.TaskRuns), report.Start, report.End)
	for _, tr := range report.TaskRuns {
		status := "ok"
		if tr.Err != nil {
			status = "failed: " + tr.Err.Error()
		}
		fmt.Printf("  task %q: %s\n", tr.Task, status)
		for _, tgt := range tr.Targets {
			changed := "unchanged"
			if tgt.Result.Changed {
				changed = "changed"
			}
			if tgt.Result.Failed || tgt.Err != nil {
				changed = "failed"
			}
			fmt.Printf("    %s: %s (%s)\n", tgt.Target, changed, tgt.Result.Msg)
		}
	}
}
