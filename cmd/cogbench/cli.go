package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/errors"
	"github.com/cogbench/cogbench/internal/ops"
	"github.com/cogbench/cogbench/internal/watch"
	"github.com/cogbench/cogbench/internal/web"
)

// maxStdinBytes caps piped input when no character limit is configured.
const maxStdinBytes = 16 << 20

// newCLIApp creates the CLI application with all commands. env may be nil
// when only help or version output is needed.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "cogbench",
		Usage:   "Compile and publish experiment tasks",
		Version: Version,
		Commands: []*cli.Command{
			buildCmd(env, false),
			buildCmd(env, true),
			visibilityCmd(env, true),
			visibilityCmd(env, false),
			statusCmd(env),
			listCmd(env),
			exportCmd(env),
			watchCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// buildFlags are shared by build, rebuild and watch.
func buildFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Document title (defaults to ref)"},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Markdown shown above the task"},
	}
}

// buildCmd creates the build or rebuild command.
func buildCmd(env *ops.Env, replace bool) *cli.Command {
	name, usage, fn := "build", "Compile a new artifact (reads source from stdin or --file)", ops.Build
	if replace {
		name, usage, fn = "rebuild", "Recompile an artifact, keeping its public id and bumping the patch version", ops.Rebuild
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<ref>",
		Flags: append(buildFlags(),
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read source from file instead of stdin"},
		),
		Action: func(c *cli.Context) error {
			ref, err := requireRef(c)
			if err != nil {
				return outputError(err)
			}

			limit := maxSourceBytes(env)
			var text string
			switch {
			case c.String("file") != "":
				text, err = readFile(c.String("file"), limit)
			case stdinHasData():
				text, err = readStdin(limit)
			default:
				return outputError(errors.NewInvalidRequest("source must be piped via stdin or given with --file"))
			}
			if err != nil {
				return outputError(err)
			}

			output, err := fn(c.Context, env, ops.BuildInput{
				Ref:         ref,
				Title:       c.String("title"),
				Description: c.String("description"),
				SourceText:  text,
			})
			if err != nil {
				return outputError(err)
			}

			if err := outputJSON(output); err != nil {
				return err
			}
			if output.BuildError != nil {
				return cli.Exit("", 2)
			}
			return nil
		},
	}
}

// visibilityCmd creates the publish or unpublish command.
func visibilityCmd(env *ops.Env, public bool) *cli.Command {
	name, usage, fn := "publish", "Make an artifact reachable at /e/<public_id>", ops.Publish
	if !public {
		name, usage, fn = "unpublish", "Hide an artifact from the public path", ops.Unpublish
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<ref>",
		Action: func(c *cli.Context) error {
			ref, err := requireRef(c)
			if err != nil {
				return outputError(err)
			}
			output, err := fn(c.Context, env, ops.PublishInput{Ref: ref})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show version, build status and access counts for an artifact",
		ArgsUsage: "[ref]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "public-id", Aliases: []string{"p"}, Usage: "Address by public id instead of ref"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Status(c.Context, env.DB, ops.StatusInput{
				Ref:      c.Args().First(),
				PublicID: c.String("public-id"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List artifacts, most recently updated first",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "public", Usage: "Only published artifacts"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by build status: success|failed"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, env.DB, ops.ListInput{
				PublicOnly: c.Bool("public"),
				Status:     c.String("status"),
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write the compiled document to a standalone .html file",
		ArgsUsage: "<ref>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output path (default: ~/.cogbench/exports/<ref>-<version>.html)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write the document to stdout instead of a file"},
		},
		Action: func(c *cli.Context) error {
			ref, err := requireRef(c)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("stdout") {
				if c.String("out") != "" {
					return outputError(errors.NewInvalidRequest("--out and --stdout are mutually exclusive"))
				}
				if _, err := ops.WriteDocument(c.Context, env.DB, ref, os.Stdout); err != nil {
					return outputError(err)
				}
				return nil
			}

			output, err := ops.Export(c.Context, env, ops.ExportInput{Ref: ref, Path: c.String("out")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Rebuild an artifact every time its source file is saved",
		ArgsUsage: "<file>",
		Flags: append(buildFlags(),
			&cli.StringFlag{Name: "ref", Aliases: []string{"r"}, Required: true, Usage: "Artifact to rebuild"},
			&cli.DurationFlag{Name: "debounce", Value: watch.DefaultDebounce, Usage: "Quiet period after the last write"},
		),
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return outputError(errors.NewInvalidRequest("source file is required"))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			src := &watch.Source{
				Path:     path,
				Debounce: c.Duration("debounce"),
				Logger:   env.Logger,
				OnChange: rebuildOnChange(env, ops.BuildInput{
					Ref:         c.String("ref"),
					Title:       c.String("title"),
					Description: c.String("description"),
				}),
			}
			if err := src.Run(ctx); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			return nil
		},
	}
}

// rebuildOnChange returns a watch callback that rebuilds with the new text
// and prints each result as one JSON line.
func rebuildOnChange(env *ops.Env, base ops.BuildInput) func(context.Context, string) {
	return func(ctx context.Context, text string) {
		input := base
		input.SourceText = text
		output, err := ops.Rebuild(ctx, env, input)
		if err != nil {
			env.Logger.Error("rebuild failed", zap.String("ref", base.Ref), zap.Error(err))
			return
		}
		_ = json.NewEncoder(os.Stdout).Encode(output)
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve published documents over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Listen address (default from config: 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config: 8750)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.Config
			if bind := c.String("bind"); bind != "" {
				cfg.Bind = bind
			}
			if port := c.Int("port"); port != 0 {
				cfg.Port = port
			}
			srv := web.NewServer(env.DB, &cfg, env.Logger)
			if err := web.Run(srv, env.Logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// requireRef returns the first positional argument.
func requireRef(c *cli.Context) (string, error) {
	ref := strings.TrimSpace(c.Args().First())
	if ref == "" {
		return "", errors.NewInvalidRequest("ref is required")
	}
	return ref, nil
}

// maxSourceBytes bounds how much input is read before the character check in
// ops runs. A character is at most four bytes of UTF-8.
func maxSourceBytes(env *ops.Env) int64 {
	if env == nil || env.Config == nil || env.Config.SourceMaxChars <= 0 {
		return maxStdinBytes
	}
	return int64(env.Config.SourceMaxChars)*4 + 1
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.CogError
	if stderrors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	return readLimited(os.Stdin, limit)
}

// readFile reads at most limit bytes from path.
func readFile(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("cannot open source: %v", err))
	}
	defer f.Close()
	return readLimited(f, limit)
}

func readLimited(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", limit))
	}
	return string(data), nil
}
