package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lh-go/internal/app"
	"lh-go/internal/config"
	"lh-go/internal/diff"
	"lh-go/internal/lh"
)

var (
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	dimColor     = color.New(color.FgHiBlack)
)

var (
	assumeYes bool
	verbose   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file at the default location.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no config at %s: run 'lh config init'", defaults["config_path"])
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an LHApp. The caller must defer app.Close().
// near, when set, is a path used to locate workspace settings.
func newApp(command, parameters, near string) (*app.LHApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	workspace := ""
	if near != "" {
		if abs, err := filepath.Abs(near); err == nil {
			if info, err := os.Stat(abs); err != nil || !info.IsDir() {
				abs = filepath.Dir(abs)
			}
			workspace = app.FindWorkspace(abs, cfg.History.WorkspaceSettings)
		}
	}

	var confirmer lh.Confirmer = newTerminalConfirmer(os.Stdin, os.Stderr)
	if assumeYes {
		confirmer = lh.AutoConfirm{}
	}

	a, err := app.NewLHApp(cfg, command, parameters, app.Options{
		Confirmer: confirmer,
		Workspace: workspace,
		Verbose:   verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// notice turns expected user-facing outcomes into messages instead of failures.
func notice(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lh.ErrAborted):
		warningColor.Println("Aborted.")
		return nil
	case errors.Is(err, lh.ErrNoHistory):
		warningColor.Println(err.Error())
		return nil
	}
	return err
}

func colourOutput() bool {
	return !color.NoColor && term.IsTerminal(int(os.Stdout.Fd()))
}

var rootCmd = &cobra.Command{
	Use:           "lh",
	Short:         "Local file revision history",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"], defaults["history_root"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("History Root: %s\n", cfg.History.Root)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("History Root:  %s\n", cfg.History.Root)
		fmt.Printf("Layout:        %s\n", cfg.History.Layout)
		fmt.Printf("Settings:      %s\n", cfg.History.SettingsPath)
		fmt.Printf("Journal:       %s\n", cfg.Journal.Type)
		fmt.Printf("Archive:       %s (encrypt=%t)\n", cfg.Archive.Type, cfg.Archive.Encrypt)
		return nil
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Capture a revision of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preRevert, _ := cmd.Flags().GetBool("pre-revert")

		a, err := newApp("save", args[0], args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Save(cmd.Context(), args[0], preRevert)
		if err != nil {
			return err
		}
		printSaveResult(args[0], res)
		return nil
	},
}

func printSaveResult(path string, res *lh.SaveResult) {
	switch res.Action {
	case lh.SaveCreated:
		successColor.Printf("Saved %s\n", res.Revision.FileName)
	case lh.SaveSuperseded:
		successColor.Printf("Updated %s (replaced %s)\n", res.Revision.FileName, filepath.Base(res.Replaced))
	case lh.SaveUnchanged:
		dimColor.Printf("No changes since %s\n", res.Revision.FileName)
	case lh.SaveSkipped:
		dimColor.Printf("Skipped %s: %s\n", path, res.SkipReason)
	}
	for _, e := range res.Evicted {
		dimColor.Printf("Evicted %s\n", filepath.Base(e))
	}
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch [DIR...]",
	Short: "Capture revisions whenever files change",
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := args
		if len(dirs) == 0 {
			dirs = []string{"."}
		}

		a, err := newApp("watch", fmt.Sprint(dirs), dirs[0])
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %d director(ies). Press Ctrl-C to stop.\n", len(dirs))
		return a.Watch(ctx, dirs, func(ev app.WatchEvent) {
			if ev.Err != nil {
				warningColor.Printf("Save failed for %s: %v\n", ev.Path, ev.Err)
				return
			}
			if ev.Result.Action == lh.SaveSkipped {
				return
			}
			printSaveResult(ev.Path, ev.Result)
		})
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log FILE",
	Short: "View the revisions of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp("log", args[0], args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		revs, err := a.History(cmd.Context(), args[0], all)
		if err != nil {
			return err
		}
		if len(revs) == 0 {
			fmt.Println("No local history.")
			return nil
		}

		for _, r := range revs {
			marker := " "
			switch r.Reason {
			case lh.ReasonRevert:
				marker = "r"
			case lh.ReasonManual:
				marker = "m"
			}
			fmt.Printf("%s  %s  %8d  %s\n", r.Timestamp, marker, r.Size, r.Path)
		}
		return nil
	},
}

// diff command
var diffCmd = &cobra.Command{
	Use:   "diff REVISION [FILE]",
	Short: "Compare a revision with the current file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := ""
		if len(args) == 2 {
			file = args[1]
		}

		a, err := newApp("diff", args[0], file)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Diff(cmd.Context(), args[0], file, diff.NewPresenter(os.Stdout, colourOutput()))
	},
}

// revert command
var revertCmd = &cobra.Command{
	Use:   "revert REVISION [FILE]",
	Short: "Restore a file to a revision",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := ""
		if len(args) == 2 {
			file = args[1]
		}

		a, err := newApp("revert", args[0], file)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Revert(cmd.Context(), args[0], file)
		if err != nil {
			return notice(err)
		}
		if !res.Reverted {
			dimColor.Printf("%s already matches the revision\n", res.TrackedPath)
			return nil
		}
		if res.Snapshot != nil && res.Snapshot.Revision != nil && res.Snapshot.Action != lh.SaveUnchanged {
			dimColor.Printf("Previous content saved as %s\n", res.Snapshot.Revision.FileName)
		}
		successColor.Printf("Reverted %s\n", res.TrackedPath)
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm REVISION",
	Short: "Delete a single revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("rm", args[0], "")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveRevision(cmd.Context(), args[0]); err != nil {
			return err
		}
		successColor.Printf("Removed %s\n", filepath.Base(args[0]))
		return nil
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear FILE",
	Short: "Delete every revision of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("clear", args[0], args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ClearHistory(cmd.Context(), args[0])
		if err != nil {
			return notice(err)
		}
		successColor.Printf("Removed %d revision(s)\n", n)
		return nil
	},
}

// purge command
var purgeCmd = &cobra.Command{
	Use:   "purge --days N",
	Short: "Delete revisions older than N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		workspace, _ := cmd.Flags().GetString("workspace")

		a, err := newApp("purge", fmt.Sprintf("days=%d workspace=%s", days, workspace), workspace)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Purge(cmd.Context(), days, workspace)
		if err != nil {
			return notice(err)
		}
		if n == 0 {
			fmt.Printf("No revisions older than %d day(s).\n", days)
			return nil
		}
		successColor.Printf("Removed %d revision(s)\n", n)
		return nil
	},
}

// path command
var pathCmd = &cobra.Command{
	Use:   "path [FILE]",
	Short: "Print the revision directory of a file or workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")
		copyPath, _ := cmd.Flags().GetBool("copy")
		if (len(args) == 0) == (workspace == "") {
			return fmt.Errorf("pass either FILE or --workspace DIR")
		}

		a, err := newApp("path", fmt.Sprint(args), "")
		if err != nil {
			return err
		}
		defer a.Close()

		var p string
		if workspace != "" {
			p, err = a.WorkspaceRevisionPath(workspace)
		} else {
			p, err = a.RevisionPath(args[0])
		}
		if err != nil {
			return err
		}

		fmt.Println(p)
		if copyPath {
			if err := clipboard.WriteAll(p); err != nil {
				return fmt.Errorf("copying to clipboard: %w", err)
			}
			dimColor.Fprintln(os.Stderr, "Copied to clipboard.")
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive FILE",
	Short: "Copy the history of a file to the archive vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("archive", args[0], args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Archive(cmd.Context(), args[0])
		if err != nil {
			return notice(err)
		}
		successColor.Printf("Archived %d revision(s)\n", n)
		return nil
	},
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive FILE",
	Short: "Restore the archived history of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("unarchive", args[0], args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Unarchive(cmd.Context(), args[0], func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return notice(err)
		}
		successColor.Printf("Restored %d revision(s)\n", n)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("keys-init", "", "")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		again, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != again {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.InitKeys(pass); err != nil {
			return err
		}
		successColor.Printf("Keys written to %s\n", filepath.Dir(a.Config().Encryption.PublicKeyPath))
		return nil
	},
}

// journal command
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "View recent revision store changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		file, _ := cmd.Flags().GetString("file")

		a, err := newApp("journal", file, "")
		if err != nil {
			return err
		}
		defer a.Close()

		var events []lh.Event
		if file != "" {
			events, err = a.JournalFor(cmd.Context(), file, limit)
		} else {
			events, err = a.Journal(cmd.Context(), limit)
		}
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No changes recorded.")
			return nil
		}

		for _, e := range events {
			op := e.OperationID
			if len(op) > 8 {
				op = op[:8]
			}
			fmt.Printf("%s  %-8s  %-10s  %s  %s\n",
				e.At.Local().Format("2006-01-02 15:04:05"),
				op,
				e.Action,
				e.TrackedPath,
				e.Revision,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().Bool("pre-revert", false, "Capture as a pre-revert revision")
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().BoolP("all", "a", false, "Show every revision instead of the display limit")
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().Int("days", 0, "Delete revisions older than this many days")
	purgeCmd.Flags().String("workspace", "", "Only purge history of files under this directory")
	_ = purgeCmd.MarkFlagRequired("days")
	rootCmd.AddCommand(pathCmd)
	pathCmd.Flags().String("workspace", "", "Print the history directory of a workspace")
	pathCmd.Flags().Bool("copy", false, "Copy the path to the clipboard")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	journalCmd.Flags().String("file", "", "Only show events of this file")
}
