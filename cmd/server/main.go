// Command server runs the transpile-bench web tool: convert a program
// between Python, C++ and Java with an LLM, run both versions locally and
// compare output and timings.
//
// Configuration comes from environment variables. Run with
// -hash-passphrase to turn a passphrase read from stdin into a value for
// ACCESS_PASSPHRASE_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/transpile-bench/internal/auth"
	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/executor/local"
	"github.com/sakif/transpile-bench/internal/server"
	"github.com/sakif/transpile-bench/internal/translate"
)

func main() {
	hashPassphrase := flag.Bool("hash-passphrase", false, "read a passphrase from stdin, print its bcrypt hash and exit")
	flag.Parse()

	if *hashPassphrase {
		if err := printPassphraseHash(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// === 1. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))

	if err := run(logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// === 2. SERVER CONFIGURATION ===
	port, err := envInt("PORT", 8080)
	if err != nil {
		return err
	}
	allowExec, err := envBool("ALLOW_EXEC", false)
	if err != nil {
		return err
	}
	secureCookies, err := envBool("SECURE_COOKIES", false)
	if err != nil {
		return err
	}

	templateDir, _ := filepath.Abs("web/templates")
	staticDir, _ := filepath.Abs("web/static")

	dbPath := envString("DB_PATH", "data/playground.db")
	if dbPath != ":memory:" {
		dbDir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}
	}

	// === 3. RUNNER ===
	runnerCfg := local.DefaultConfig()
	runnerCfg.TempDir = envString("RUN_TEMP_DIR", runnerCfg.TempDir)
	runnerCfg.PythonBin = envString("PYTHON_BIN", runnerCfg.PythonBin)
	runnerCfg.CXXBin = envString("CXX_BIN", runnerCfg.CXXBin)
	runnerCfg.JavacBin = envString("JAVAC_BIN", runnerCfg.JavacBin)
	runnerCfg.JavaBin = envString("JAVA_BIN", runnerCfg.JavaBin)
	if runnerCfg.CompileTimeout, err = envDuration("COMPILE_TIMEOUT", runnerCfg.CompileTimeout); err != nil {
		return err
	}
	maxRuns, err := envInt("MAX_CONCURRENT_RUNS", runtime.NumCPU())
	if err != nil {
		return err
	}
	runner := local.New(runnerCfg, logger)
	exec := local.NewPool(runner, maxRuns, logger)

	if !allowExec {
		logger.Warn("ALLOW_EXEC is not set; running code is disabled")
	}
	for _, lang := range executor.Languages {
		if missing := runner.Missing(lang); len(missing) > 0 {
			logger.Warn("toolchain not found",
				slog.String("language", string(lang)),
				slog.String("missing", strings.Join(missing, ",")),
			)
		}
	}

	// === 4. TRANSLATION ENGINES ===
	trCfg := translate.DefaultConfig()
	trCfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	trCfg.OpenAIModel = envString("OPENAI_MODEL", trCfg.OpenAIModel)
	trCfg.OpenAIBaseURL = envString("OPENAI_BASE_URL", trCfg.OpenAIBaseURL)
	trCfg.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	trCfg.AnthropicModel = envString("ANTHROPIC_MODEL", trCfg.AnthropicModel)
	trCfg.AnthropicBaseURL = envString("ANTHROPIC_BASE_URL", trCfg.AnthropicBaseURL)
	if trCfg.RequestTimeout, err = envDuration("TRANSLATE_TIMEOUT", trCfg.RequestTimeout); err != nil {
		return err
	}
	if trCfg.MaxRetries, err = envInt("TRANSLATE_MAX_RETRIES", trCfg.MaxRetries); err != nil {
		return err
	}
	if trCfg.OpenAIKey == "" && trCfg.AnthropicKey == "" {
		logger.Warn("no LLM API key set; conversion is unavailable")
	}
	translator := translate.New(trCfg, logger)

	// === 5. AUTH ===
	// JWT_SECRET=$(openssl rand -hex 32). Without it the tool runs in
	// single-user local mode.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Warn("JWT_SECRET not set; authentication is disabled")
	}
	githubCallbackURL := envString("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port))

	// === 6. START ===
	srv, err := server.New(server.Config{
		Port:               port,
		TemplateDir:        templateDir,
		StaticDir:          staticDir,
		DBPath:             dbPath,
		AllowExec:          allowExec,
		JWTSecret:          jwtSecret,
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  githubCallbackURL,
		PassphraseHash:     os.Getenv("ACCESS_PASSPHRASE_HASH"),
		SecureCookies:      secureCookies,
	}, logger, exec, translator)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Blocks until SIGINT or SIGTERM.
	return srv.Start()
}

func printPassphraseHash() error {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	passphrase := strings.TrimRight(line, "\r\n")
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}

	hash, err := auth.NewPasswordService().Hash(passphrase)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelDebug
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}
