// scriptloc localizes demo scripts: it translates a DOCX document with an
// OpenAI-compatible model and renames the people in it consistently.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/minios-linux/scriptloc/completion"
	"github.com/minios-linux/scriptloc/config"
	"github.com/minios-linux/scriptloc/docx"
	"github.com/minios-linux/scriptloc/i18n"
	"github.com/minios-linux/scriptloc/localize"
	"github.com/minios-linux/scriptloc/prompt"
	"github.com/minios-linux/scriptloc/server"
	"github.com/minios-linux/scriptloc/settings"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
	colorGray   = "\033[0;90m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

func logDebug(format string, args ...any) {
	if global.verbose {
		fmt.Fprintf(os.Stderr, colorGray+"[DEBUG]"+colorReset+" "+format+"\n", args...)
	}
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

type globalFlags struct {
	configPath string
	overrides  config.Overrides
	verbose    bool
}

var global globalFlags

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scriptloc",
		Short: "Demo script localization with AI",
		Long: `scriptloc translates demo scripts (DOCX) into another language and
replaces the names of people from a chosen country with a chosen name,
consistently across the whole document.

Commands:
  serve      Start the web page
  localize   Localize one document from the command line
  init       Write .scriptloc.yaml and API_key.env templates
  auth       Manage stored API keys

Providers:
  openai         OpenAI (default) — API key required
  groq           Groq — API key required
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	global = globalFlags{}
	pf := root.PersistentFlags()
	pf.StringVar(&global.configPath, "config", "", "Config file (default: ./"+config.FileName+")")
	pf.StringVar(&global.overrides.Provider, "provider", "", "AI provider: openai, groq, ollama, custom-openai")
	pf.StringVar(&global.overrides.Model, "model", "", "Model name (default: provider default)")
	pf.StringVar(&global.overrides.APIKey, "api-key", "", "API key (or SCRIPTLOC_API_KEY / OPENAI_API_KEY)")
	pf.StringVar(&global.overrides.BaseURL, "base-url", "", "Custom API base URL")
	pf.StringVar(&global.overrides.Proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	pf.DurationVar(&global.overrides.Timeout, "timeout", 0, "Request timeout (0 = provider default)")
	pf.IntVar(&global.overrides.ChunkSize, "chunk-size", 0, "Characters per request (default 3500)")
	pf.IntVar(&global.overrides.MaxAttempts, "max-attempts", 0, "Attempts per chunk when rate limited (default 5)")
	pf.DurationVar(&global.overrides.RetryDelay, "retry-delay", 0, "Delay between rate-limited attempts (default 20s)")
	pf.BoolVar(&global.verbose, "verbose", false, "Enable detailed logging")

	_ = root.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"openai\tOpenAI — API key required",
			"groq\tGroq — API key required",
			"ollama\tOllama local server",
			"custom-openai\tCustom OpenAI-compatible endpoint",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newServeCmd(),
		newLocalizeCmd(),
		newInitCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scriptloc version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// loadConfig merges env files, the config file, the environment, the
// global flags and the credential store, then selects the UI language.
func loadConfig() (*config.Config, error) {
	loaded, err := config.LoadEnvFiles(".")
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		logDebug("Loaded %s", p)
	}

	cfg, err := config.Load(global.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Apply(global.overrides)
	if src := cfg.ResolveCredentials(); src != "" {
		logDebug("API key from %s", src)
	}

	i18n.Init(cfg.UILanguage)
	return cfg, nil
}

// newPipeline validates cfg and wires the completion client and prompts
// into a pipeline. Configuration errors surface here, before any work.
func newPipeline(cfg *config.Config, onProgress func(done, total int)) (*localize.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := completion.New(cfg.CompletionConfig(logWarning))
	if err != nil {
		return nil, err
	}

	prompts, err := prompt.LoadFile(cfg.PromptsPath())
	if err != nil {
		return nil, err
	}
	if prompts != prompt.Default() {
		logDebug("Using prompts from %s", cfg.PromptsPath())
	}

	prov := cfg.CompletionProvider()
	logDebug("Provider: %s, model: %s, endpoint: %s", prov.Name, client.Model(), prov.BaseURL)

	return localize.New(client, localize.Options{
		ChunkSize:  cfg.ChunkSize,
		Prompts:    prompts,
		OnProgress: onProgress,
		OnLog:      logDebug,
	}), nil
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web page",
		Long: `Start the demo script localization page.

Open the listen address in a browser, upload a DOCX script, fill in the
target language, country and name, and download the localized script.

Endpoints:
  GET  /               Web page
  POST /api/localize   Multipart form (file, language, country, name) → JSON
  POST /localize       Same form → DOCX download
  GET  /healthz        Health check

Examples:
  scriptloc serve
  scriptloc serve --listen 127.0.0.1:9000 --provider groq`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().StringVar(&global.overrides.Listen, "listen", "", "Listen address (default "+config.DefaultListen+")")

	return cmd
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, nil)
	if err != nil {
		return err
	}

	opts := server.Options{
		MaxUploadBytes:   cfg.MaxUploadBytes(),
		CORSOrigins:      cfg.Server.CORSOrigins,
		FilenameTemplate: cfg.Output.Filename,
		OnLog:            logInfo,
		OnError:          logError,
	}
	if global.verbose {
		opts.AccessLog = os.Stderr
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(pipeline, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logInfo(i18n.T("Listening on %s"), cfg.Server.Listen)
	if err := srv.Serve(ctx, cfg.Server.Listen); err != nil {
		return err
	}
	logSuccess("Server stopped")
	return nil
}

// ---------------------------------------------------------------------------
// localize
// ---------------------------------------------------------------------------

type localizeArgs struct {
	input, output           string
	language, country, name string
	print                   bool
}

func newLocalizeCmd() *cobra.Command {
	var a localizeArgs

	cmd := &cobra.Command{
		Use:   "localize",
		Short: "Localize one document",
		Long: `Localize a DOCX demo script from the command line.

The text is split into chunks, each chunk is translated and its names are
replaced, and the joined result is written as a new DOCX document.

Examples:
  scriptloc localize --input demo.docx --lang French --country India --name "Rahul Sharma"
  scriptloc localize --input demo.docx --lang de --country Japan --name "Yuki Tanaka" --output out.docx
  scriptloc localize --input demo.docx --lang Hindi --country USA --name "John Doe" --print`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalize(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&a.input, "input", "i", "", "Source DOCX document (required)")
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output DOCX path (default: <language>_demo_script.docx next to the input)")
	cmd.Flags().StringVar(&a.language, "lang", "", "Target language, e.g. French or fr (required)")
	cmd.Flags().StringVar(&a.country, "country", "", "Country whose people are renamed (required)")
	cmd.Flags().StringVar(&a.name, "name", "", "Replacement person name (required)")
	cmd.Flags().BoolVar(&a.print, "print", false, "Also print the localized text to stdout")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runLocalize(ctx context.Context, a localizeArgs, stdout io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, func(done, total int) {
		logInfo(i18n.T("Chunk %d/%d done"), done, total)
	})
	if err != nil {
		return err
	}

	f, err := os.Open(a.input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("opening input: %w", err)
	}
	doc, err := docx.Read(f, stat.Size())
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", a.input, err)
	}

	req := localize.Request{
		Paragraphs: doc.Paragraphs,
		Language:   a.language,
		Country:    a.country,
		Name:       a.name,
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w (use --lang, --country and --name)", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logInfo("Localizing %s (%d paragraphs, %d characters)", a.input, len(doc.Paragraphs), len([]rune(req.Text())))
	res, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	logSuccess(i18n.N("Localized %d chunk", "Localized %d chunks", res.Chunks)+" (%v)", res.Chunks, res.Duration.Round(time.Second))

	out := a.output
	if out == "" {
		out = filepath.Join(filepath.Dir(a.input), localize.OutputFilename(cfg.Output.Filename, req.Language))
	}
	if err := writeDocument(out, res.Text); err != nil {
		return err
	}
	logSuccess(i18n.T("Wrote %s"), out)

	if a.print {
		fmt.Fprintln(stdout, res.Text)
	}
	return nil
}

func writeDocument(path, text string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := docx.Write(f, text); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var (
		dir     string
		prompts bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write configuration templates",
		Long: `Write a commented ` + config.FileName + ` and an API_key.env template.

Existing files are never overwritten. With --prompts, the built-in prompt
templates are also written to the user's prompts.json for editing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(dir, prompts)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write the templates to")
	cmd.Flags().BoolVar(&prompts, "prompts", false, "Also write the default prompts.json to the data directory")

	return cmd
}

func runInit(dir string, withPrompts bool) error {
	written, err := config.WriteTemplates(dir)
	for _, p := range written {
		logSuccess(i18n.T("Created %s"), p)
	}
	if err != nil {
		return err
	}
	for _, name := range []string{config.FileName, config.EnvFiles[0]} {
		p := filepath.Join(dir, name)
		if !contains(written, p) {
			logWarning(i18n.T("%s already exists, skipped"), p)
		}
	}

	if withPrompts {
		p, err := settings.PromptsFilePath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil {
			logWarning(i18n.T("%s already exists, skipped"), p)
		} else {
			if err := prompt.WriteDefaultFile(p); err != nil {
				return err
			}
			logSuccess(i18n.T("Created %s"), p)
		}
	}

	logInfo("Put your key into API_key.env (OPENAI_API_KEY=...) or run 'scriptloc auth login'")
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API keys",
		Long: `Manage API keys stored in ` + settings.FilePath() + `.

Examples:
  scriptloc auth login                          Store an OpenAI key
  scriptloc auth login --provider groq          Store a Groq key
  scriptloc auth login --provider custom-openai Store an endpoint and key
  scriptloc auth logout --provider groq         Remove the Groq key
  scriptloc auth logout                         Remove all keys
  scriptloc auth list                           Show stored keys`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

// keyProviders are the providers that can store a key, in menu order.
var keyProviders = []struct {
	id      string
	name    string
	helpURL string
	envVar  string
}{
	{completion.ProviderOpenAI, "OpenAI", "https://platform.openai.com/api-keys", "OPENAI_API_KEY"},
	{completion.ProviderGroq, "Groq Cloud", "https://console.groq.com/keys", "GROQ_API_KEY"},
	{completion.ProviderCustomOpenAI, "Custom OpenAI", "", ""},
}

func findKeyProvider(id string) (int, bool) {
	for i, p := range keyProviders {
		if p.id == id {
			return i, true
		}
	}
	return 0, false
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authLogin(provider, bufio.NewScanner(cmd.InOrStdin()))
		},
	}

	cmd.Flags().StringVar(&provider, "provider", completion.ProviderOpenAI, "Provider: openai, groq, custom-openai")

	return cmd
}

func authLogin(providerID string, in *bufio.Scanner) error {
	idx, ok := findKeyProvider(providerID)
	if !ok {
		return fmt.Errorf("provider '%s' does not use stored keys (valid: openai, groq, custom-openai)", providerID)
	}
	info := keyProviders[idx]

	fmt.Fprintf(os.Stderr, "\n%s%s — API Key Setup%s\n", colorBlue, info.name, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	if info.helpURL != "" {
		fmt.Fprintf(os.Stderr, "  Get your API key from: %s%s%s\n\n", colorGreen, info.helpURL, colorReset)
	}

	var baseURL string
	if info.id == completion.ProviderCustomOpenAI {
		current := settings.GetBaseURL(info.id)
		if current != "" {
			fmt.Fprintf(os.Stderr, "  Endpoint [%s]: ", current)
		} else {
			fmt.Fprintf(os.Stderr, "  Endpoint (e.g. http://localhost:8080/v1): ")
		}
		baseURL = readLine(in)
		if baseURL == "" {
			baseURL = current
		}
		if baseURL == "" {
			return fmt.Errorf("an endpoint URL is required for %s", info.id)
		}
	}

	existing := settings.GetAPIKey(info.id)
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  Current key: %s%s%s\n", colorYellow, settings.MaskKey(existing), colorReset)
		fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter API key: ")
	}
	key := readLine(in)
	if key == "" {
		key = existing
	}
	if key == "" && info.id != completion.ProviderCustomOpenAI {
		return fmt.Errorf("no API key provided")
	}

	if err := settings.SetAPIKey(info.id, key, baseURL); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}
	logSuccess("%s credentials saved to %s", info.name, settings.FilePath())
	return nil
}

func readLine(in *bufio.Scanner) string {
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		Long: `Remove the stored key of one provider, or all keys when --provider is
not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("All stored credentials removed")
				return nil
			}
			if _, ok := findKeyProvider(provider); !ok {
				return fmt.Errorf("unknown provider '%s'. Run 'scriptloc auth list' to see providers", provider)
			}
			if err := settings.Remove(provider); err != nil {
				return fmt.Errorf("removing %s credentials: %w", provider, err)
			}
			logSuccess("%s credentials removed", provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to logout (default: all)")

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored keys and key variables",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.ErrOrStderr()
			fmt.Fprintf(out, "\n%sStored Credentials%s (%s)\n", colorBlue, colorReset, settings.FilePath())
			fmt.Fprintln(out, strings.Repeat("─", 60))

			store := settings.Load()
			for _, p := range keyProviders {
				entry := store[p.id]
				switch {
				case entry != nil && entry.Key != "":
					status := fmt.Sprintf("%sconfigured%s (key: %s)", colorGreen, colorReset, settings.MaskKey(entry.Key))
					if entry.BaseURL != "" {
						status += fmt.Sprintf("\n  %14s endpoint: %s", "", entry.BaseURL)
					}
					fmt.Fprintf(out, "  %-14s %s\n", p.id, status)
				case entry != nil && entry.BaseURL != "":
					fmt.Fprintf(out, "  %-14s %sconfigured%s (no key)\n  %14s endpoint: %s\n", p.id, colorGreen, colorReset, "", entry.BaseURL)
				default:
					fmt.Fprintf(out, "  %-14s %snot configured%s\n", p.id, colorRed, colorReset)
				}
			}
			fmt.Fprintf(out, "  %-14s %sno key needed%s\n", completion.ProviderOllama, colorGray, colorReset)

			fmt.Fprintf(out, "\n  %sEnvironment Variables%s\n", colorYellow, colorReset)
			for _, name := range []string{"SCRIPTLOC_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY"} {
				if v := os.Getenv(name); v != "" {
					fmt.Fprintf(out, "  %-18s %s%s%s (overrides stored keys)\n", name, colorGreen, settings.MaskKey(v), colorReset)
				} else {
					fmt.Fprintf(out, "  %-18s %snot set%s\n", name, colorRed, colorReset)
				}
			}
			fmt.Fprintln(out)
		},
	}
}
