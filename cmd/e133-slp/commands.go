package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/e133slp/internal/config"
	"github.com/muurk/e133slp/internal/daemon"
	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/ui"
)

// Command flags
var (
	metricsListen string
	advertise     []string
	lifetime      uint16
	outputFormat  string
	saveAd        bool
)

func init() {
	daemonCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on host:port; overrides the config file")
	daemonCmd.Flags().StringSliceVar(&advertise, "advertise", nil, "Additional endpoint (host:port) to keep registered; repeatable")
	daemonCmd.Flags().Uint16Var(&lifetime, "lifetime", 0, "Lifetime in seconds for --advertise endpoints (0 = protocol minimum)")

	discoverCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, plain, json)")

	registerCmd.Flags().Uint16Var(&lifetime, "lifetime", 0, "Lifetime in seconds (0 = protocol minimum)")
	registerCmd.Flags().BoolVar(&saveAd, "save", false, "Also add the endpoint to the config file's advertisements")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// headerParams describes the directory settings shown in command headers.
func headerParams(cfg *config.Config) map[string]string {
	params := map[string]string{
		"Backend": cfg.Backend,
		"Service": cfg.SLP.ServiceName,
	}
	if cfg.Backend == config.BackendMDNS {
		iface := cfg.MDNS.Interface
		if iface == "" {
			iface = "all"
		}
		params["Interface"] = iface
	}
	return params
}

// logEvent is the daemon's event observer.
func logEvent(e daemon.Event) {
	fields := []zap.Field{
		zap.String("action", e.Action),
		zap.String("endpoint", e.Endpoint),
	}
	if e.OK {
		logging.Info("Registration event", fields...)
	} else {
		logging.Warn("Registration event failed", fields...)
	}
}

// daemonCmd runs the bridge until interrupted
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep endpoints registered and discover other components",
	Long: `Run the SLP bridge in the foreground.

Every advertisement in the config file (plus any --advertise endpoints) is
registered and renewed before its lifetime expires. Discovery runs for as long
as the daemon does. On SIGINT or SIGTERM all advertisements are withdrawn
before exiting.

When a metrics listen address is configured, Prometheus metrics are served on
/metrics and a liveness probe on /healthz.`,
	Example: `  # Run with the config file's advertisements
  e133-slp daemon --log-level info

  # Advertise an extra endpoint and expose metrics
  e133-slp daemon --advertise 10.0.0.5:5568 --metrics-listen :9133

  # Try it without a network
  e133-slp daemon --backend memory --advertise 127.0.0.1:5568`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if metricsListen != "" {
		cfg.Metrics.Listen = metricsListen
	}
	for _, endpoint := range advertise {
		cfg.AddAdvertisement(endpoint, lifetime)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	d, err := daemon.New(cfg,
		daemon.WithEventObserver(logEvent),
		daemon.WithDiscoveryObserver(func(ok bool, endpoints []string) {
			if ok {
				logging.Debug("Discovered endpoints", zap.Strings("endpoints", endpoints))
			}
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	defer logging.Sync()
	return d.Run(ctx)
}

// discoverCmd runs a single discovery poll
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find E1.33 components on the network",
	Long: `Run one discovery poll and print the endpoints found.

Nothing is registered. With the mDNS backend the poll lasts for the configured
browse timeout.`,
	Example: `  # Discover on all interfaces
  e133-slp discover

  # Discover on one interface, machine readable
  e133-slp discover --interface eth0 --format json`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch outputFormat {
	case "detailed", "plain", "json":
	default:
		return fmt.Errorf("unknown output format %q (expected detailed, plain or json)", outputFormat)
	}

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		ok        bool
		endpoints []string
	}
	results := make(chan result, 1)

	d, err := daemon.New(cfg,
		daemon.WithAdvertisements(nil),
		daemon.WithMetricsListen(""),
		daemon.WithDiscoveryObserver(func(ok bool, endpoints []string) {
			select {
			case results <- result{ok: ok, endpoints: endpoints}:
			default:
			}
			cancel()
		}),
	)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout)
	if outputFormat == "detailed" {
		printer.PrintHeader("E1.33 SLP Discovery", "e133-slp discover", headerParams(cfg))
		printer.Newline()
	}

	started := time.Now()
	if err := d.Run(ctx); err != nil {
		if outputFormat == "detailed" {
			printer.PrintResult(ui.NewFailureResult("Discovery Failed", err, ui.DiscoveryTroubleshooting))
		}
		return err
	}

	var res result
	select {
	case res = <-results:
	default:
		return errors.New("discovery interrupted")
	}
	sort.Strings(res.endpoints)

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			OK        bool     `json:"ok"`
			Endpoints []string `json:"endpoints"`
		}{OK: res.ok, Endpoints: res.endpoints})
	case "plain":
		if !res.ok {
			return errors.New("discovery poll failed")
		}
		for _, endpoint := range res.endpoints {
			fmt.Println(endpoint)
		}
		return nil
	}

	if !res.ok {
		printer.PrintResult(ui.NewFailureResult("Discovery Failed",
			errors.New("the directory agent returned an error"), ui.DiscoveryTroubleshooting))
		return errors.New("discovery poll failed")
	}

	printer.PrintEndpoints(res.endpoints)
	printer.Newline()
	if len(res.endpoints) == 0 {
		printer.PrintResult(ui.NewFailureResult("No Components Found", nil, ui.DiscoveryTroubleshooting))
		return nil
	}
	printer.PrintResult(ui.NewSuccessResult("Discovery Complete",
		ui.Detail{Key: "Endpoints", Value: strconv.Itoa(len(res.endpoints))},
		ui.Detail{Key: "Duration", Value: time.Since(started).Round(time.Millisecond).String()},
	))
	return nil
}

// registerCmd advertises one endpoint until interrupted
var registerCmd = &cobra.Command{
	Use:   "register <host:port>",
	Short: "Advertise an endpoint until interrupted",
	Long: `Register one endpoint, keep it renewed and withdraw it on Ctrl+C.

Lifetimes shorter than twice the aging time, or than the configured minimum,
are raised. Use --save to also keep the endpoint in the config file so the
daemon advertises it.`,
	Example: `  # Advertise a broker for the default lifetime
  e133-slp register 10.0.0.5:5568

  # Advertise with a five minute lifetime and remember it
  e133-slp register 10.0.0.5:5568 --lifetime 300 --save`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ad := config.Advertisement{Endpoint: args[0], Lifetime: lifetime}
	if saveAd {
		if err := saveAdvertisement(ad); err != nil {
			return err
		}
	}

	events := make(chan daemon.Event, 16)
	d, err := daemon.New(cfg,
		daemon.WithAdvertisements([]config.Advertisement{ad}),
		daemon.WithMetricsListen(""),
		daemon.WithEventObserver(func(e daemon.Event) {
			select {
			case events <- e:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout)
	params := headerParams(cfg)
	params["Endpoint"] = ad.Endpoint
	printer.PrintHeader("E1.33 SLP Registration", "e133-slp register", params)
	printer.Newline()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	for {
		select {
		case err := <-done:
			drainEvents(printer, cfg, ad, events)
			return err

		case e := <-events:
			printEvent(printer, cfg, ad, e)
			if e.Action == daemon.ActionRegister && e.OK {
				printer.Println(ui.MutedStyle.Render("Press Ctrl+C to withdraw the advertisement"))
			}
			if e.Action == daemon.ActionRegister && !e.OK {
				cancel()
			}
		}
	}
}

// drainEvents prints events delivered after the daemon stopped, such as the
// final withdrawal.
func drainEvents(printer *ui.Printer, cfg *config.Config, ad config.Advertisement, events <-chan daemon.Event) {
	for {
		select {
		case e := <-events:
			printEvent(printer, cfg, ad, e)
		default:
			return
		}
	}
}

func printEvent(printer *ui.Printer, cfg *config.Config, ad config.Advertisement, e daemon.Event) {
	switch e.Action {
	case daemon.ActionRegister:
		if !e.OK {
			printer.PrintResult(ui.NewFailureResult("Registration Failed",
				fmt.Errorf("could not register %s", e.Endpoint), ui.DiscoveryTroubleshooting))
			return
		}
		printer.PrintResult(ui.NewSuccessResult("Endpoint Registered",
			ui.Detail{Key: "Endpoint", Value: e.Endpoint},
			ui.Detail{Key: "Service URL", Value: cfg.ServiceURL(ad)},
			ui.Detail{Key: "Lifetime", Value: fmt.Sprintf("%ds", cfg.EffectiveLifetime(ad))},
		))
	case daemon.ActionRenew:
		status := "renewed"
		if !e.OK {
			status = "renewal failed, retrying"
		}
		printer.Println(ui.MutedStyle.Render(fmt.Sprintf("%s  %s %s",
			time.Now().Format("15:04:05"), e.Endpoint, status)))
	case daemon.ActionDeregister:
		if e.OK {
			printer.PrintResult(ui.NewSuccessResult("Advertisement Withdrawn",
				ui.Detail{Key: "Endpoint", Value: e.Endpoint}))
			return
		}
		printer.PrintResult(ui.NewWarningResult("Withdrawal Failed",
			ui.Detail{Key: "Endpoint", Value: e.Endpoint},
			ui.Detail{Key: "Note", Value: "the directory drops it when its lifetime runs out"}))
	}
}

func saveAdvertisement(ad config.Advertisement) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	// Save the file as loaded, without command line overrides
	saved, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	saved.AddAdvertisement(ad.Endpoint, ad.Lifetime)
	if err := saved.Validate(); err != nil {
		return fmt.Errorf("invalid advertisement: %w", err)
	}
	if err := saved.SaveFile(path); err != nil {
		return err
	}

	logging.Info("Saved advertisement", zap.String("endpoint", ad.Endpoint), zap.String("path", path))
	return nil
}

// watchCmd shows a live view of discovery
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of discovered components",
	Long: `Run the bridge with an interactive view of discovery results and
registration events.

The config file's advertisements are kept registered while the view is open
and withdrawn when it closes. Press r to poll immediately.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return errors.New("watch needs an interactive terminal; use 'e133-slp discover' instead")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Log lines would tear the alternate screen
	logging.SetLogger(zap.NewNop())

	var program *tea.Program
	d, err := daemon.New(cfg,
		daemon.WithMetricsListen(""),
		daemon.WithDiscoveryObserver(func(ok bool, endpoints []string) {
			program.Send(ui.DiscoveryMsg{OK: ok, Endpoints: endpoints, At: time.Now()})
		}),
		daemon.WithEventObserver(func(e daemon.Event) {
			program.Send(ui.RegistrationMsg{Action: e.Action, Endpoint: e.Endpoint, OK: e.OK, At: time.Now()})
		}),
	)
	if err != nil {
		return err
	}

	program = tea.NewProgram(ui.NewWatchModel(headerParams(cfg), d.Rescan), tea.WithAltScreen())

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := d.Run(ctx)
		done <- err
		program.Quit()
	}()

	_, uiErr := program.Run()
	cancel()
	runErr := <-done

	if uiErr != nil {
		return fmt.Errorf("watch view failed: %w", uiErr)
	}
	return runErr
}
