// ABOUTME: Entry point for the hawkgate authentication gateway
// ABOUTME: Serves Hawk-protected routes and manages sessions from the command line

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/hawkgate/internal/config"
	"github.com/2389/hawkgate/internal/gateway"
	"github.com/2389/hawkgate/internal/hawk"
	"github.com/2389/hawkgate/internal/session"
	"github.com/2389/hawkgate/internal/token"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                       _                   _
| |__    __ _ __      __| | __  __ _   __ _ | |_   ___
| '_ \  / _' |\ \ /\ / /| |/ / / _' | / _' || __| / _ \
| | | || (_| | \ V  V / |   < | (_| || (_| || |_ |  __/
|_| |_| \__,_|  \_/\_/  |_|\_\ \__, | \__,_| \__| \___|
                               |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: HAWKGATE_CONFIG env var > XDG_CONFIG_HOME/hawkgate/config.yaml > ~/.config/hawkgate/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HAWKGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hawkgate", "config.yaml")
}

// getDataPath returns the path to the hawkgate data directory.
// Priority: XDG_DATA_HOME/hawkgate > ~/.local/share/hawkgate
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "hawkgate")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: hawkgate <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                          Start the gateway server")
	fmt.Fprintln(w, "  init                           Create a new config file interactively")
	fmt.Fprintln(w, "  health                         Check gateway health")
	fmt.Fprintln(w, "  sessions list [--limit N]      List stored sessions")
	fmt.Fprintln(w, "  sessions revoke <id>           Delete a session")
	fmt.Fprintln(w, "  sign --token T --url U         Print a Hawk Authorization header")
	fmt.Fprintln(w, "  version                        Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "sessions":
		err = runSessions(ctx, os.Args[2:], os.Stdout)
	case "sign":
		err = runSign(os.Args[2:], os.Stdout)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	color.New(color.FgCyan, color.Bold).Print(banner)
	fmt.Printf("  %s %s\n\n", color.HiBlackString("version"), version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("config loaded", "path", configPath)

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, path := range []string{"/health", "/health/ready"} {
		url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unhealthy: %s returned status %d", path, resp.StatusCode)
		}
	}

	fmt.Println(color.GreenString("healthy"))
	return nil
}

// openStore opens the configured session store for offline administration.
func openStore() (*session.SQLiteStore, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == ":memory:" {
		return nil, errors.New("database.path is :memory:, sessions live only inside the server")
	}
	return session.NewSQLiteStore(cfg.Database.Path)
}

func runSessions(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: hawkgate sessions <list|revoke>")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("sessions list", flag.ContinueOnError)
		limit := fs.Int("limit", 50, "maximum number of sessions to show (0 for all)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return listSessions(ctx, s, *limit, out)
	case "revoke":
		if len(args) != 2 {
			return errors.New("usage: hawkgate sessions revoke <id>")
		}
		if err := s.Delete(ctx, args[1]); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("session %s not found", args[1])
			}
			return err
		}
		fmt.Fprintf(out, "%s session %s\n", color.GreenString("revoked"), args[1])
		return nil
	default:
		return fmt.Errorf("unknown sessions command: %s", args[0])
	}
}

func listSessions(ctx context.Context, s session.Store, limit int, out io.Writer) error {
	infos, err := s.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "no sessions")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tALGORITHM\tAPP\tCREATED\tLAST USED")
	for _, info := range infos {
		lastUsed := "never"
		if info.LastUsedAt != nil {
			lastUsed = info.LastUsedAt.Local().Format(time.DateTime)
		}
		app := info.App
		if app == "" {
			app = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			info.ID, info.Algorithm, app, info.CreatedAt.Local().Format(time.DateTime), lastUsed)
	}
	return tw.Flush()
}

// runSign acts as a Hawk client: it derives the credential from a session
// token and prints the Authorization header for one request.
func runSign(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	tokenHex := fs.String("token", os.Getenv("HAWKGATE_TOKEN"), "session token (or HAWKGATE_TOKEN)")
	method := fs.String("method", http.MethodGet, "HTTP method")
	rawURL := fs.String("url", "", "request URL")
	algorithm := fs.String("algorithm", string(hawk.SHA256), "session algorithm")
	ext := fs.String("ext", "", "ext attribute")
	app := fs.String("app", "", "app attribute")
	data := fs.String("data", "", "request body; signs a payload hash when set")
	contentType := fs.String("content-type", "application/json", "content type used for the payload hash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tokenHex == "" || *rawURL == "" {
		return errors.New("usage: hawkgate sign --token <hex> --url <url> [--method M]")
	}

	alg, err := hawk.ParseAlgorithm(*algorithm)
	if err != nil {
		return err
	}
	codec, err := token.NewCodec(alg)
	if err != nil {
		return err
	}
	tok, err := codec.Decode(*tokenHex)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(strings.ToUpper(*method), *rawURL, nil)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	var payload []byte
	if *data != "" {
		payload = []byte(*data)
		req.Header.Set("Content-Type", *contentType)
	}

	opts := hawk.HeaderOptions{Ext: *ext, App: *app, HashPayload: payload != nil}
	if err := hawk.SignRequest(req, tok.Credential, payload, opts); err != nil {
		return err
	}

	fmt.Fprintf(out, "Authorization: %s\n", req.Header.Get("Authorization"))
	return nil
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "hawkgate configuration setup")
	fmt.Fprintln(out, "============================")
	fmt.Fprintln(out)

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "sessions.db")

	outputFile := prompt(reader, out, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", config.DefaultHTTPAddr)

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	dbPath := prompt(reader, out, "SQLite database path", defaultDbPath)

	fmt.Fprintln(out, "\n--- Hawk Configuration ---")
	skew := prompt(reader, out, "Timestamp skew", config.DefaultTimestampSkew.String())
	verifyPayload := isYes(prompt(reader, out, "Require payload hashes?", "no"))

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	content := renderConfig(initAnswers{
		HTTPAddr:      httpAddr,
		DBPath:        dbPath,
		TimestampSkew: skew,
		VerifyPayload: verifyPayload,
		LogLevel:      logLevel,
		LogFormat:     logFormat,
	})

	// Refuse to write something serve could not load.
	if _, err := config.Parse([]byte(content), false); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  hawkgate serve")

	return nil
}

type initAnswers struct {
	HTTPAddr      string
	DBPath        string
	TimestampSkew string
	VerifyPayload bool
	LogLevel      string
	LogFormat     string
}

func renderConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("# hawkgate configuration\n")
	b.WriteString("# Generated by hawkgate init\n\n")

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  http_addr: %q\n\n", a.HTTPAddr)

	b.WriteString("database:\n")
	fmt.Fprintf(&b, "  path: %q\n\n", a.DBPath)

	b.WriteString("hawk:\n")
	b.WriteString("  algorithms: [\"sha256\"]\n")
	fmt.Fprintf(&b, "  timestamp_skew: %q\n", a.TimestampSkew)
	fmt.Fprintf(&b, "  verify_payload: %t\n\n", a.VerifyPayload)

	b.WriteString("sessions:\n")
	fmt.Fprintf(&b, "  token_header: %q\n\n", config.DefaultTokenHeader)

	b.WriteString("routes:\n")
	for _, r := range config.DefaultRoutes() {
		fmt.Fprintf(&b, "  - path: %q\n", r.Path)
		if r.AutoCreate {
			b.WriteString("    auto_create: true\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n\n", a.LogFormat)

	b.WriteString("metrics:\n")
	b.WriteString("  enabled: true\n")
	fmt.Fprintf(&b, "  path: %q\n", config.DefaultMetricsPath)

	return b.String()
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
