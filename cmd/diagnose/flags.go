package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"magic-workflow/config"
	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/deps"
	"magic-workflow/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// handleCLIFlags runs the requested reports. Without flags it prints the
// diagnosis.
func handleCLIFlags(args []string, out io.Writer) int {
	flags := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	showVersion := flags.Bool("version", false, "print version information")
	showDiagnose := flags.Bool("diagnose", false, "print runtime diagnostics")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if !*showVersion && !*showDiagnose {
		*showDiagnose = true
	}

	if *showVersion {
		printVersion(out)
	}
	if *showDiagnose {
		if *showVersion {
			fmt.Fprintln(out)
		}
		printDiagnose(out)
	}
	return 0
}

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
}

func printDiagnose(out io.Writer) {
	fmt.Fprintf(out, "runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "version: %s\n", version)

	// Only read an existing config; diagnosing must not create one.
	if configPath, err := config.ResolveConfigPath(); err == nil {
		if _, err = os.Stat(configPath); err == nil {
			if _, err = config.LoadOrCreateConfig(); err != nil {
				fmt.Fprintf(out, "config: <error: %v>\n", err)
			}
		}
	}
	appdirs.SetWorkspace(appdirs.Workspace{
		WorkDir:   config.Conf.App.WorkDir,
		ConfigDir: config.Conf.App.ConfigDir,
	})

	paths, err := appdirs.Resolve()
	if err != nil {
		fmt.Fprintf(out, "paths: <error: %v>\n", err)
	} else {
		fmt.Fprintf(out, "portable: %t\n", paths.Portable)
		printPath(out, "config", paths.ConfigFile)
		printPath(out, "projects", appdirs.ProjectRootFor(paths))
		printPath(out, "project_configs", filepath.Dir(appdirs.ProjectConfigPathFor(paths, "_")))
		printPath(out, "database", appdirs.DBPathFor(paths))
		printPath(out, "media_temp", appdirs.MediaTempFor(paths))
	}

	if logDir, err := log.ResolveLogDir(); err == nil {
		printPath(out, "effective_log_dir", logDir)
	} else {
		fmt.Fprintf(out, "path.effective_log_dir: <error: %v>\n", err)
	}

	states := deps.ResolveDependencyStates(deps.BuildDependencyInventory(config.Conf.Media), deps.NewPathResolver())
	fmt.Fprintln(out, deps.FormatDependencyReport(states))
}

func printPath(out io.Writer, name, value string) {
	_, err := os.Stat(value)
	switch {
	case err == nil:
		fmt.Fprintf(out, "path.%s: %s (exists)\n", name, value)
	case os.IsNotExist(err):
		fmt.Fprintf(out, "path.%s: %s (missing)\n", name, value)
	default:
		fmt.Fprintf(out, "path.%s: %s (error=%v)\n", name, value, err)
	}
}
