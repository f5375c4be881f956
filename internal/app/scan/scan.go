package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MOYARU/vigil/internal/analysis"
	"github.com/MOYARU/vigil/internal/app/output"
	"github.com/MOYARU/vigil/internal/app/ui"
	"github.com/MOYARU/vigil/internal/claims"
	"github.com/MOYARU/vigil/internal/config"
	"github.com/MOYARU/vigil/internal/engine"
	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/fingerprint"
	"github.com/MOYARU/vigil/internal/genai"
	"github.com/MOYARU/vigil/internal/intel"
	msges "github.com/MOYARU/vigil/internal/messages"
	"github.com/MOYARU/vigil/internal/policy"
	"github.com/MOYARU/vigil/internal/report"
	"github.com/MOYARU/vigil/internal/reputation"
	"github.com/MOYARU/vigil/internal/server"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	JSON       bool
	HTML       bool
	AssumeYes  bool // upload unseen artifacts without asking
}

type session struct {
	cfg     *config.Config
	svc     *intel.Service
	metrics *engine.MetricsTransport
}

// newSession loads configuration and wires the upstream clients. needStore
// reports whether the command talks to the reputation service.
func newSession(opts Options, needStore bool) (*session, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	report.SetRedactionPatterns(cfg.RedactionPatterns)

	creds := cfg.ResolveCredentials()
	if err := config.RequireCredentials(creds, needStore, true); err != nil {
		return nil, err
	}

	metrics := &engine.MetricsTransport{}
	client := engine.Wrap(engine.NewHTTPClient(cfg.HTTPTimeout()), cfg.HTTP.RequestBudget, apiHosts(cfg), metrics)

	store := reputation.NewVirusTotal(cfg.VirusTotal.BaseURL, creds.VirusTotal, client)
	model := genai.NewGemini(cfg.Gemini.BaseURL, cfg.Gemini.Model, creds.Gemini, client)
	var registry claims.Registry
	if creds.FactCheck != "" {
		registry = claims.NewFactCheckTools(cfg.FactCheck.BaseURL, creds.FactCheck, cfg.FactCheck.Language, client)
	}

	svc := intel.New(store, model, registry, policy.New(cfg.Policy.ExtraDeniedDomains), intel.Options{
		PollInterval:        cfg.PollInterval(),
		MaxWait:             cfg.MaxWait(),
		MaliciousThreshold:  cfg.Policy.MaliciousThreshold,
		EnforceVerdictFloor: cfg.Policy.EnforceVerdictFloor,
		MaxEmailLinks:       cfg.Policy.MaxEmailLinks,
	})
	return &session{cfg: cfg, svc: svc, metrics: metrics}, nil
}

// apiHosts lists the hosts the shared client may reach.
func apiHosts(cfg *config.Config) []string {
	bases := []string{
		orDefault(cfg.VirusTotal.BaseURL, reputation.DefaultVirusTotalBaseURL),
		orDefault(cfg.Gemini.BaseURL, genai.DefaultGeminiBaseURL),
		orDefault(cfg.FactCheck.BaseURL, claims.DefaultFactCheckBaseURL),
	}
	hosts := make([]string, 0, len(bases))
	for _, b := range bases {
		if u, err := url.Parse(b); err == nil && u.Hostname() != "" {
			hosts = append(hosts, u.Hostname())
		}
	}
	return hosts
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// attachTerminal hooks the interactive prompts and the polling display onto svc.
func attachTerminal(svc *intel.Service, maxWait time.Duration, assumeYes bool) {
	if !assumeYes {
		svc.ConfirmSubmit = func(_ context.Context, kind reputation.Kind, id string) bool {
			prompt := fmt.Sprintf("%s%s%s", ui.ColorYellow, msges.GetUIMessage("SubmitPrompt", kind, report.SanitizeText(id)), ui.ColorReset)
			ok, err := ui.Confirm(prompt)
			if err != nil || !ok {
				return false
			}
			fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("Submitting", kind), ui.ColorReset)
			return true
		}
	}

	var pollStart time.Time
	svc.OnTransition = func(from, to analysis.State) {
		if from == analysis.StatePolling {
			fmt.Println()
		}
		fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("StateChange", from, to), ui.ColorReset)
		if to == analysis.StatePolling {
			pollStart = time.Now()
			output.PrintPollProgress(0, maxWait)
		}
	}
	svc.Sleep = func(ctx context.Context, d time.Duration) error {
		err := analysis.SleepContext(ctx, d)
		output.PrintPollProgress(time.Since(pollStart), maxWait)
		return err
	}
}

type assessFunc func(ctx context.Context, svc *intel.Service) (any, error)

// run executes one assessment and handles everything around it: config,
// cancellation, failure display, request stats and report files.
func run(opts Options, kind, target string, needStore bool, assess assessFunc) error {
	s, err := newSession(opts, needStore)
	if err != nil {
		fmt.Printf("%s%s%s\n", ui.ColorRed, msges.GetUIMessage("MissingCredentials", err), ui.ColorReset)
		return err
	}
	attachTerminal(s.svc, s.cfg.MaxWait(), opts.AssumeYes)

	ctx, stop := ui.WaitForCancel(context.Background())
	defer stop()

	fmt.Printf("%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("Target", report.SanitizeTarget(target)), ui.ColorReset)

	startTime := time.Now()
	result, err := assess(ctx, s.svc)
	endTime := time.Now()
	count, total := s.metrics.Snapshot()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println(ui.ColorYellow + msges.GetUIMessage("AssessmentCancelled") + ui.ColorReset)
			return err
		}
		output.PrintFailure(err)
		output.PrintRequestStats(count, total)
		return err
	}
	output.PrintRequestStats(count, total)

	if opts.JSON {
		if _, err := output.SaveJSONReport(kind, target, result, startTime, endTime); err != nil {
			fmt.Printf("[Error] %s\n", msges.GetUIMessage("JSONReportFailed", err))
		}
	}
	if opts.HTML {
		if _, err := output.SaveHTMLReport(kind, target, result, startTime, endTime); err != nil {
			fmt.Printf("%s\n", msges.GetUIMessage("HTMLReportFailed", err))
		}
	}
	return nil
}

// RunFile assesses a local file.
func RunFile(path string, opts Options) error {
	data, err := readInput("scan.file", path)
	if err != nil {
		output.PrintFailure(err)
		return err
	}
	name := filepath.Base(path)
	return run(opts, "file", name, true, func(ctx context.Context, svc *intel.Service) (any, error) {
		fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("Fingerprint", fingerprint.Sum(data)), ui.ColorReset)
		fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("LookupStart"), ui.ColorReset)
		t, err := svc.AssessFile(ctx, name, data)
		if err != nil {
			return nil, err
		}
		output.PrintThreat(t)
		return t, nil
	})
}

// RunURL assesses a URL. A missing scheme defaults to https.
func RunURL(raw string, opts Options) error {
	target := normalizeTarget(raw)
	return run(opts, "url", target, true, func(ctx context.Context, svc *intel.Service) (any, error) {
		fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("LookupStart"), ui.ColorReset)
		t, err := svc.AssessURL(ctx, target)
		if err != nil {
			return nil, err
		}
		output.PrintThreat(t)
		return t, nil
	})
}

// RunEmail assesses a raw email read from path, or from stdin when path is "-".
func RunEmail(path string, opts Options) error {
	data, err := readInput("scan.email", path)
	if err != nil {
		output.PrintFailure(err)
		return err
	}
	return run(opts, "email", emailLabel(path), true, func(ctx context.Context, svc *intel.Service) (any, error) {
		stopDots := startStatusDots(ctx, msges.GetUIMessage("StatusWorking"))
		t, err := svc.AssessEmail(ctx, string(data))
		stopDots()
		if err != nil {
			return nil, err
		}
		output.PrintThreat(t)
		return t, nil
	})
}

// RunClaim fact-checks a single claim.
func RunClaim(claim string, opts Options) error {
	return run(opts, "claim", claim, false, func(ctx context.Context, svc *intel.Service) (any, error) {
		stopDots := startStatusDots(ctx, msges.GetUIMessage("StatusWorking"))
		f, err := svc.CheckClaim(ctx, claim)
		stopDots()
		if err != nil {
			return nil, err
		}
		output.PrintFactCheck(f)
		return f, nil
	})
}

// RunMedia checks an image, video or audio file. An empty contentType is sniffed.
func RunMedia(path, contentType string, opts Options) error {
	data, err := readInput("scan.media", path)
	if err != nil {
		output.PrintFailure(err)
		return err
	}
	if len(data) > server.MaxMediaBytes {
		err := failure.New(failure.ErrInputRead, "scan.media", fmt.Sprintf("media is larger than %d bytes", server.MaxMediaBytes))
		output.PrintFailure(err)
		return err
	}
	return run(opts, "media", filepath.Base(path), false, func(ctx context.Context, svc *intel.Service) (any, error) {
		stopDots := startStatusDots(ctx, msges.GetUIMessage("StatusWorking"))
		m, err := svc.AssessMedia(ctx, contentType, data)
		stopDots()
		if err != nil {
			return nil, err
		}
		output.PrintMedia(m)
		return m, nil
	})
}

// RunServe exposes the assessment flows over HTTP until interrupted. Unseen
// artifacts are always submitted since nobody is at the terminal.
func RunServe(addr string, opts Options) error {
	s, err := newSession(opts, true)
	if err != nil {
		fmt.Printf("%s%s%s\n", ui.ColorRed, msges.GetUIMessage("MissingCredentials", err), ui.ColorReset)
		return err
	}
	if addr == "" {
		addr = s.cfg.Server.Addr
	}

	ctx, stop := ui.WaitForCancel(context.Background())
	defer stop()

	fmt.Printf("%s%s%s\n", ui.ColorGreen, msges.GetUIMessage("ServerStarting", addr), ui.ColorReset)
	err = server.New(s.svc).ListenAndServe(ctx, addr)
	count, total := s.metrics.Snapshot()
	output.PrintRequestStats(count, total)
	fmt.Println(msges.GetUIMessage("ServerStopped"))
	return err
}

func readInput(op, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(os.Stdin, server.MaxUploadBytes+1))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, failure.Wrap(failure.ErrInputRead, op, err)
	}
	if len(data) == 0 {
		return nil, failure.New(failure.ErrInputRead, op, "input is empty")
	}
	if len(data) > server.MaxUploadBytes {
		return nil, failure.New(failure.ErrInputRead, op, fmt.Sprintf("input is larger than %d bytes", server.MaxUploadBytes))
	}
	return data, nil
}

func emailLabel(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

// normalizeTarget adds https:// to bare hosts. The URL itself is never
// contacted; validation happens in the URL policy.
func normalizeTarget(rawTarget string) string {
	target := strings.TrimSpace(rawTarget)
	if target == "" || strings.Contains(target, "://") {
		return target
	}
	return "https://" + target
}

func startStatusDots(ctx context.Context, base string) func() {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		dots := 0
		for {
			select {
			case <-ctx.Done():
				fmt.Printf("\r%s%s%s\033[K\n", ui.ColorGray, base, ui.ColorReset)
				return
			case <-stopCh:
				fmt.Printf("\r%s%s%s\033[K\n", ui.ColorGray, base, ui.ColorReset)
				return
			case <-ticker.C:
				dots = (dots + 1) % 4
				fmt.Printf("\r%s%s%s%s\033[K", ui.ColorGray, base, strings.Repeat(".", dots), ui.ColorReset)
			}
		}
	}()

	return func() {
		close(stopCh)
		<-doneCh
	}
}
