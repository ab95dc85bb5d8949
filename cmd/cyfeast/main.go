// cyfeast declares the CY Feast API infrastructure and renders it for deployment.
//
// # Commands
//
//	cyfeast synth                Render the stack as a CloudFormation template or SDK requests
//	cyfeast plan                 Show what changed since the last recorded synth
//	cyfeast graph                Print the creation (or teardown) order of the stack
//	cyfeast snapshots list       List recorded snapshots
//	cyfeast snapshots rm <name>  Forget the snapshot of a stack
//	cyfeast version              Print the version
//
// # Configuration
//
// The deployment is read from cyfeast.yaml, cyfeast.yml or cyfeast.hcl, searched for
// from the current directory upwards. Without one, the reference deployment (events
// and stocks) is used:
//
//	name: cyFeastApi
//	tablePrefix: cy-feast-
//	defaults:
//	  memoryMB: 128
//	collections:
//	  - name: events
//	    partitionKey: event-id
//	  - name: stocks
//	    partitionKey: stock-id
//
// CYFEAST_REGION, CYFEAST_ACCOUNT, CYFEAST_PARTITION, CYFEAST_STAGE and
// CYFEAST_TABLE_PREFIX override the file. They may be set in a .env file. When no region
// is declared, synth --format sdk uses the region of the AWS shared config (AWS_REGION,
// ~/.aws/config).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/Louis4933/CYFEAST-2023-BACK/config"
	"github.com/Louis4933/CYFEAST-2023-BACK/internal/ctxlog"
	"github.com/Louis4933/CYFEAST-2023-BACK/snapshot"
	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
	"github.com/Louis4933/CYFEAST-2023-BACK/synth"
)

const version = "0.1.0"

type CLI struct {
	LogLevel    string   `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	LogFormat   string   `name:"log-format" default:"text" enum:"text,json" help:"Log format (text, json)"`
	EnvFile     []string `name:"env-file" sep:"," help:"Env file(s) to load before reading the configuration (default: ./.env if present)"`
	SnapshotDir string   `name:"snapshot-dir" default:".cyfeast" help:"Directory holding recorded snapshots"`

	Synth     SynthCmd     `cmd:"" help:"Render the stack as a CloudFormation template or SDK requests"`
	Plan      PlanCmd      `cmd:"" help:"Show what changed since the last recorded synth"`
	Graph     GraphCmd     `cmd:"" help:"Print the creation order of the stack"`
	Snapshots SnapshotsCmd `cmd:"" help:"Manage recorded snapshots"`
	Version   VersionCmd   `cmd:"" help:"Print the version"`
}

type SynthCmd struct {
	Config string `name:"config" short:"c" help:"Path to the deployment declaration (default: search upwards for cyfeast.yaml/.hcl)"`
	Format string `name:"format" short:"f" default:"yaml" enum:"yaml,json,sdk" help:"Output format (yaml, json, sdk)"`
	Output string `name:"out" short:"o" help:"Write output to this file instead of stdout"`
	Record bool   `name:"record" help:"Record the synthesized stack for later plans"`
}

type PlanCmd struct {
	Config string `name:"config" short:"c" help:"Path to the deployment declaration"`
}

type GraphCmd struct {
	Config   string `name:"config" short:"c" help:"Path to the deployment declaration"`
	Teardown bool   `name:"teardown" help:"Print the teardown order instead"`
}

type SnapshotsCmd struct {
	List SnapshotsListCmd `cmd:"" help:"List recorded snapshots"`
	Rm   SnapshotsRmCmd   `cmd:"" help:"Forget the snapshot of a stack"`
}

type SnapshotsListCmd struct{}

type SnapshotsRmCmd struct {
	Name string `arg:"" help:"Stack name"`
}

type VersionCmd struct{}

type kongExitCode int

type commandDeps struct {
	lookupEnv config.LookupFunc
	openStore func(dir string) (*snapshot.Store, error)
	// awsRegion supplies the region of the SDK request plan when neither the declaration
	// nor CYFEAST_REGION sets one.
	awsRegion func(ctx context.Context) (string, error)
	out       io.Writer
	errOut    io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], defaultDeps()))
}

func defaultDeps() commandDeps {
	return commandDeps{
		lookupEnv: os.LookupEnv,
		openStore: openStore,
		awsRegion: sharedConfigRegion,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

func openStore(dir string) (*snapshot.Store, error) {
	return snapshot.Open(snapshot.StoreOptions{Path: dir})
}

// sharedConfigRegion is the region the AWS SDK resolves from AWS_REGION or the shared
// config files. Credentials are not retrieved.
func sharedConfigRegion(ctx context.Context) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	return cfg.Region, nil
}

// newLogger creates a logger writing to w. Unknown levels fall back to info.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

func run(args []string, deps commandDeps) (exitCode int) {
	out := deps.out
	if out == nil {
		out = os.Stdout
	}
	errOut := deps.errOut
	if errOut == nil {
		errOut = os.Stderr
	}
	if deps.lookupEnv == nil {
		deps.lookupEnv = os.LookupEnv
	}
	if deps.openStore == nil {
		deps.openStore = openStore
	}
	if deps.awsRegion == nil {
		deps.awsRegion = sharedConfigRegion
	}

	cli := CLI{}
	parser, err := kong.New(
		&cli,
		kong.Name("cyfeast"),
		kong.Description("Declare the CY Feast API infrastructure and render it for deployment."),
		kong.Writers(out, errOut),
		kong.Exit(func(code int) {
			panic(kongExitCode(code))
		}),
	)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: initialize command parser: %v\n", err)
		return 1
	}
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		code, ok := recovered.(kongExitCode)
		if !ok {
			panic(recovered)
		}
		exitCode = int(code)
	}()
	kctx, err := parser.Parse(args)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		_, _ = fmt.Fprintln(errOut, "Hint: run `cyfeast --help`.")
		return 1
	}

	logger := newLogger(cli.LogLevel, cli.LogFormat, errOut)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	if err := config.LoadDotEnv(cli.EnvFile...); err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	switch kctx.Command() {
	case "synth":
		err = runSynth(ctx, cli.Synth, cli.SnapshotDir, deps, out)
	case "plan":
		err = runPlan(ctx, cli.Plan, cli.SnapshotDir, deps, out)
	case "graph":
		err = runGraph(ctx, cli.Graph, deps, out)
	case "snapshots list":
		err = runSnapshotsList(ctx, cli.SnapshotDir, deps, out)
	case "snapshots rm <name>":
		err = runSnapshotsRm(ctx, cli.Snapshots.Rm, cli.SnapshotDir, deps, out)
	case "version":
		_, err = fmt.Fprintf(out, "cyfeast version %s\n", version)
	default:
		err = fmt.Errorf("unsupported command: %s", kctx.Command())
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadStack resolves the declaration, applies environment overrides and builds the stack.
func loadStack(ctx context.Context, path string, deps commandDeps) (*config.File, *stack.Stack, error) {
	f, source, err := config.Resolve(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	f.ApplyEnv(deps.lookupEnv)
	s, err := stack.Build(ctx, f.StackConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("build stack from %s: %w", source, err)
	}
	ctxlog.FromContext(ctx).Info("Built stack.", "stack", s.Name(), "source", source, "routes", len(s.Routes()))
	return f, s, nil
}

func runSynth(ctx context.Context, cmd SynthCmd, snapshotDir string, deps commandDeps, out io.Writer) error {
	f, s, err := loadStack(ctx, cmd.Config, deps)
	if err != nil {
		return err
	}

	var data []byte
	switch cmd.Format {
	case "sdk":
		env := f.SynthEnv()
		if env.Region == "" {
			region, err := deps.awsRegion(ctx)
			if err != nil {
				return err
			}
			ctxlog.FromContext(ctx).Debug("Using region from AWS config.", "region", region)
			env.Region = region
		}
		plan, err := synth.Requests(s, env)
		if err != nil {
			return fmt.Errorf("render requests: %w", err)
		}
		data, err = plan.JSON()
		if err != nil {
			return err
		}
	default:
		tpl, err := synth.CloudFormation(s, f.SynthOptions())
		if err != nil {
			return fmt.Errorf("render template: %w", err)
		}
		if cmd.Format == "json" {
			data, err = tpl.JSON()
		} else {
			data, err = tpl.YAML()
		}
		if err != nil {
			return err
		}
	}

	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, data, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		ctxlog.FromContext(ctx).Info("Wrote synthesized stack.", "path", cmd.Output, "format", cmd.Format)
	} else if _, err := out.Write(data); err != nil {
		return err
	}

	if !cmd.Record {
		return nil
	}
	store, err := deps.openStore(snapshotDir)
	if err != nil {
		return err
	}
	defer store.Close()
	rec, err := store.Save(ctx, s, cmd.Format, data)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Recorded snapshot.", "stack", rec.Stack, "dir", snapshotDir)
	return nil
}

func runPlan(ctx context.Context, cmd PlanCmd, snapshotDir string, deps commandDeps, out io.Writer) error {
	_, s, err := loadStack(ctx, cmd.Config, deps)
	if err != nil {
		return err
	}
	store, err := deps.openStore(snapshotDir)
	if err != nil {
		return err
	}
	defer store.Close()

	var prev stack.Graph
	rec, err := store.Load(ctx, s.Name())
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		_, _ = fmt.Fprintf(out, "No recorded snapshot for %s; every resource is new.\n", s.Name())
	case err != nil:
		return err
	default:
		prev = rec.Graph
	}

	changes := snapshot.Compare(prev, s.Graph())
	_, err = io.WriteString(out, changes.String())
	return err
}

func runGraph(ctx context.Context, cmd GraphCmd, deps commandDeps, out io.Writer) error {
	_, s, err := loadStack(ctx, cmd.Config, deps)
	if err != nil {
		return err
	}
	g := s.Graph()
	order, err := g.CreationOrder()
	if cmd.Teardown {
		order, err = g.TeardownOrder()
	}
	if err != nil {
		return err
	}
	for _, id := range order {
		if _, err := fmt.Fprintln(out, id); err != nil {
			return err
		}
	}
	return nil
}

func runSnapshotsList(ctx context.Context, snapshotDir string, deps commandDeps, out io.Writer) error {
	store, err := deps.openStore(snapshotDir)
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		_, err = fmt.Fprintln(out, "No recorded snapshots.")
		return err
	}
	for _, name := range names {
		rec, err := store.Load(ctx, name)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\t%s\t%d resources\t%s\n",
			rec.Stack, rec.Format, len(rec.Graph.Nodes), rec.RecordedAt.Format(time.RFC3339))
		if err != nil {
			return err
		}
	}
	return nil
}

func runSnapshotsRm(ctx context.Context, cmd SnapshotsRmCmd, snapshotDir string, deps commandDeps, out io.Writer) error {
	store, err := deps.openStore(snapshotDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Load(ctx, cmd.Name); err != nil {
		return err
	}
	if err := store.Delete(ctx, cmd.Name); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", cmd.Name, err)
	}
	ctxlog.FromContext(ctx).Info("Deleted snapshot.", "stack", cmd.Name, "dir", snapshotDir)
	_, err = fmt.Fprintf(out, "Deleted snapshot for %s.\n", cmd.Name)
	return err
}
