package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/benchwright/benchwright/internal/bench"
	"github.com/benchwright/benchwright/internal/checkout"
	"github.com/benchwright/benchwright/internal/config"
	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/engine"
	"github.com/benchwright/benchwright/internal/maintenance"
	"github.com/benchwright/benchwright/internal/notify"
	"github.com/benchwright/benchwright/internal/observer"
	"github.com/benchwright/benchwright/internal/policy"
	"github.com/benchwright/benchwright/internal/registry"
	"github.com/benchwright/benchwright/internal/workstore"
	"github.com/benchwright/benchwright/tui"
	"github.com/benchwright/benchwright/web/api"
)

var (
	createBaseRepo string
	createBranch   string
	listState      string
	listBaseRepo   string
	benchWorkspace string
	captureLabel   string
	verdictPct     float64
	validateVia    string
	flowOptions    []string
	servePort      int
)

func init() {
	// workspace commands
	workspaceCmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workspace for a branch",
		RunE:  runWorkspaceCreate,
	}
	createCmd.Flags().StringVar(&createBaseRepo, "base-repo", "", "base repository path")
	createCmd.Flags().StringVar(&createBranch, "branch", "", "branch name")
	createCmd.MarkFlagRequired("base-repo")
	createCmd.MarkFlagRequired("branch")
	workspaceCmd.AddCommand(createCmd)

	workspaceCmd.AddCommand(&cobra.Command{
		Use:   "activate ID",
		Short: "Activate a workspace",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkspaceActivate,
	})
	workspaceCmd.AddCommand(&cobra.Command{
		Use:   "stale ID",
		Short: "Mark a workspace stale",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkspaceStale,
	})
	workspaceCmd.AddCommand(&cobra.Command{
		Use:   "reclaim ID",
		Short: "Reclaim a stale workspace",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkspaceReclaim,
	})

	wsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE:  runWorkspaceList,
	}
	wsListCmd.Flags().StringVar(&listState, "state", "", "filter by state")
	wsListCmd.Flags().StringVar(&listBaseRepo, "base-repo", "", "filter by base repository")
	workspaceCmd.AddCommand(wsListCmd)
	rootCmd.AddCommand(workspaceCmd)

	// bench commands
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Manage benchmark sessions",
	}

	benchCmd.AddCommand(&cobra.Command{
		Use:   "start WORKSPACE TARGET",
		Short: "Start a benchmark session",
		Args:  cobra.ExactArgs(2),
		RunE:  runBenchStart,
	})

	captureCmd := &cobra.Command{
		Use:   "capture SESSION",
		Short: "Run the harness and record samples",
		Args:  cobra.ExactArgs(1),
		RunE:  runBenchCapture,
	}
	captureCmd.Flags().StringVar(&captureLabel, "label", "baseline", "baseline or candidate")
	benchCmd.AddCommand(captureCmd)

	verdictCmd := &cobra.Command{
		Use:   "verdict SESSION",
		Short: "Compute the verdict for a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runBenchVerdict,
	}
	verdictCmd.Flags().Float64Var(&verdictPct, "threshold", 0, "threshold percentage (default from config)")
	benchCmd.AddCommand(verdictCmd)

	benchListCmd := &cobra.Command{
		Use:   "list",
		Short: "List benchmark sessions",
		RunE:  runBenchList,
	}
	benchListCmd.Flags().StringVar(&benchWorkspace, "workspace", "", "filter by workspace")
	benchCmd.AddCommand(benchListCmd)
	rootCmd.AddCommand(benchCmd)

	// validate command
	validateCmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a change message draft against the policy",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().StringVar(&validateVia, "measured-via", "", "measurement source for metric claims")
	rootCmd.AddCommand(validateCmd)

	// flow command
	flowCmd := &cobra.Command{
		Use:   "flow",
		Short: "Run orchestration flows",
	}
	flowRunCmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a named flow",
		Args:  cobra.ExactArgs(1),
		RunE:  runFlow,
	}
	flowRunCmd.Flags().StringArrayVar(&flowOptions, "opt", nil, "flow option as key=value (repeatable)")
	flowCmd.AddCommand(flowRunCmd)
	rootCmd.AddCommand(flowCmd)

	// sweep command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Run the stale sweep once",
		RunE:  runSweep,
	})

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status server and background sweeper",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)

	// tui command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Launch the TUI dashboard",
		RunE:  runTUI,
	})
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// components bundles the pieces most commands need
type components struct {
	cfg      *config.Config
	store    *workstore.Store
	registry *registry.Registry
	bench    *bench.Controller
}

func open() (*components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := workstore.New(cfg.General.DatabasePath)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(store, checkout.NewManager(cfg.General.WorkspaceRoot))
	if err != nil {
		store.Close()
		return nil, err
	}
	ctrl, err := bench.NewController(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &components{cfg: cfg, store: store, registry: reg, bench: ctrl}, nil
}

func (c *components) Close() { c.store.Close() }

func (c *components) engine() (*engine.Engine, error) {
	pol, err := policy.Load(c.cfg.Policy.RulesPath)
	if err != nil {
		return nil, err
	}
	return &engine.Engine{
		Registry:            c.registry,
		Bench:               c.bench,
		Runner:              bench.NewRunner(c.cfg.Benchmark.HarnessCommand, c.cfg.Benchmark.HarnessTimeout()),
		Policy:              pol,
		DefaultThresholdPct: c.cfg.Benchmark.DefaultThresholdPct,
	}, nil
}

func runWorkspaceCreate(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	rec, err := c.registry.Create(createBaseRepo, createBranch)
	if err != nil {
		return err
	}

	fmt.Printf("Created workspace %s at %s\n", rec.ID, rec.Path)
	return nil
}

func runWorkspaceActivate(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	rec, err := c.registry.Activate(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Workspace %s is %s\n", rec.ID, rec.State)
	return nil
}

func runWorkspaceStale(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	rec, err := c.registry.MarkStale(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Workspace %s is %s\n", rec.ID, rec.State)
	return nil
}

func runWorkspaceReclaim(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	rec, err := c.registry.Reclaim(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Workspace %s reclaimed\n", rec.ID)
	return nil
}

func runWorkspaceList(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBRANCH\tBASE REPO\tSTATE\tLAST TOUCHED")
	for _, ws := range c.registry.List() {
		if listState != "" && string(ws.State) != listState {
			continue
		}
		if listBaseRepo != "" && ws.BaseRepo != listBaseRepo {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ws.ID, ws.Branch, ws.BaseRepo, ws.State, ws.LastTouched.Format("2006-01-02 15:04"))
	}
	w.Flush()

	return nil
}

func runBenchStart(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	sess, err := c.bench.StartSession(args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Started session %s for %s\n", sess.ID, sess.Target)
	return nil
}

func runBenchCapture(cmd *cobra.Command, args []string) error {
	label := domain.SampleLabel(captureLabel)
	if label != domain.LabelBaseline && label != domain.LabelCandidate {
		return fmt.Errorf("label must be baseline or candidate, got %q", captureLabel)
	}

	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	eng, err := c.engine()
	if err != nil {
		return err
	}

	if err := eng.Capture(cmd.Context(), args[0], label); err != nil {
		return err
	}

	sess, err := c.bench.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Captured %d %s samples, session is %s\n",
		len(sess.SamplesFor(label)), label, sess.State)
	return nil
}

func runBenchVerdict(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	pct := verdictPct
	if !cmd.Flags().Changed("threshold") {
		pct = c.cfg.Benchmark.DefaultThresholdPct
	}

	sess, err := c.bench.ComputeVerdict(args[0], pct)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s: %s (delta %s, threshold %.1f%%)\n",
		sess.ID, sess.Verdict, policy.FormatDelta(sess.Delta), sess.ThresholdPct)

	if sess.Verdict == domain.VerdictRegressed {
		newNotifier(c.cfg).Send(notify.ForVerdict(sess))
	}
	return nil
}

func runBenchList(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWORKSPACE\tTARGET\tSTATE\tVERDICT\tDELTA")
	for _, sess := range c.bench.List() {
		if benchWorkspace != "" && sess.WorkspaceID != benchWorkspace {
			continue
		}
		delta := "-"
		if sess.State == domain.SessionVerdicted {
			delta = policy.FormatDelta(sess.Delta)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			sess.ID, sess.WorkspaceID, sess.Target, sess.State, sess.Verdict, delta)
	}
	w.Flush()

	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	draft, err := policy.ParseDraft(content)
	if err != nil {
		return err
	}
	if validateVia != "" {
		draft.MeasuredVia = validateVia
	}

	pol, err := policy.Load(cfg.Policy.RulesPath)
	if err != nil {
		return err
	}

	violations := policy.Validate(pol, draft)
	if len(violations) == 0 {
		fmt.Println("Draft conforms to policy")
		return nil
	}

	for _, v := range violations {
		fmt.Printf("%s  %s: %s\n", v.Severity, v.Rule, v.Message)
	}
	if !policy.Conformant(violations) {
		return fmt.Errorf("draft has policy violations")
	}
	return nil
}

func runFlow(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	eng, err := c.engine()
	if err != nil {
		return err
	}

	options := make(map[string]string, len(flowOptions))
	for _, opt := range flowOptions {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			return fmt.Errorf("--opt must be key=value, got %q", opt)
		}
		options[key] = value
	}

	res := eng.Run(cmd.Context(), engine.Request{Flow: args[0], Options: options})

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !res.Completed {
		return fmt.Errorf("flow %s failed in %s: %s", res.Flow, res.Component, res.Error)
	}
	return nil
}

func newSweeper(c *components) (*maintenance.Sweeper, error) {
	return maintenance.NewSweeper(maintenance.Config{
		Cron:           c.cfg.Maintenance.SweepCron,
		StaleAfter:     c.cfg.Maintenance.StaleAfterDuration(),
		SessionTimeout: c.cfg.Maintenance.SessionTimeoutDuration(),
	}, c.registry, c.bench)
}

func runSweep(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	sweeper, err := newSweeper(c)
	if err != nil {
		return err
	}

	report := sweeper.Sweep()
	fmt.Printf("Marked %d workspaces stale, %d sessions incomplete\n",
		len(report.MarkedStale), len(report.MarkedIncomplete))
	return nil
}

func newNotifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	port := servePort
	if port == 0 {
		port = c.cfg.Web.Port
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.Web.Host, port)

	server := api.NewServer(c.registry, c.bench, addr)
	notifier := newNotifier(c.cfg)

	sweeper, err := newSweeper(c)
	if err != nil {
		return err
	}
	sweeper.OnReport(func(report maintenance.Report) {
		server.Broadcast(api.Event{Type: api.EventSweepCompleted, Data: report})
		notifier.Send(notify.ForSweep(len(report.MarkedStale), len(report.MarkedIncomplete)))
	})

	// Bump LastTouched when files change inside active workspaces
	watcher, err := observer.NewTouchWatcher(c.registry)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	for ws := range c.registry.Find(func(w *domain.WorkspaceRecord) bool {
		return w.State == domain.WorkspaceActive
	}) {
		if err := watcher.AddWorkspace(ws.ID, ws.Path); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	watcher.Start(ctx)

	g.Go(server.Start)
	g.Go(func() error { return sweeper.Run(ctx) })

	fmt.Printf("Serving status API at http://%s (next sweep %s)\n", addr, sweeper.NextRun().Format("15:04"))
	err = g.Wait()

	// Unverdicted sessions are reported, never dropped
	if sessions, terr := c.bench.Teardown(); terr == nil && len(sessions) > 0 {
		fmt.Printf("Marked %d unverdicted sessions incomplete at shutdown\n", len(sessions))
	}
	return err
}

// dataSource adapts the registry and controller to the TUI
type dataSource struct {
	registry *registry.Registry
	bench    *bench.Controller
}

func (d dataSource) Workspaces() []*domain.WorkspaceRecord { return d.registry.List() }
func (d dataSource) Sessions() []*domain.BenchmarkSession  { return d.bench.List() }

func runTUI(cmd *cobra.Command, args []string) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	model := tui.NewModel(dataSource{registry: c.registry, bench: c.bench})
	p := tea.NewProgram(model, tea.WithAltScreen())

	_, err = p.Run()
	return err
}
