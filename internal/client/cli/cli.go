package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/worksync/internal/client/iocli"
	"github.com/iudanet/worksync/internal/config"
	"github.com/iudanet/worksync/internal/crypto"
)

const (
	// PassphraseEnv - переменная окружения с паролем шифрования кеша
	PassphraseEnv = "WORKSYNC_CACHE_PASSPHRASE"
	// TokenEnv - переменная окружения с токеном доступа к серверу
	TokenEnv = "WORKSYNC_TOKEN"
)

// Option configures the CLI application
type Option func(*App)

// WithVersion sets the version printed by --version
func WithVersion(version string) Option {
	return func(a *App) {
		a.version = version
	}
}

// WithRemoteFactory replaces the function that opens the remote store
func WithRemoteFactory(f RemoteFactory) Option {
	return func(a *App) {
		a.openRemote = f
	}
}

// WithLogOutput sets where diagnostic logs go (stderr by default)
func WithLogOutput(w io.Writer) Option {
	return func(a *App) {
		a.logOut = w
	}
}

// WithKDFParams overrides argon2 parameters for the cache key
func WithKDFParams(params crypto.KDFParams) Option {
	return func(a *App) {
		a.kdf = params
	}
}

// App хранит состояние одного запуска CLI: итоговую конфигурацию,
// логгер и способ открыть удаленное хранилище.
type App struct {
	io         iocli.IO
	logOut     io.Writer
	logger     *slog.Logger
	openRemote RemoteFactory
	version    string
	configPath string
	kdf        crypto.KDFParams
	flags      config.ClientConfig // значения флагов до слияния с файлом
	cfg        config.ClientConfig // итоговая конфигурация
}

// NewRootCommand creates the root command of the worksync client
func NewRootCommand(ioc iocli.IO, opts ...Option) *cobra.Command {
	a := &App{
		io:         ioc,
		logOut:     os.Stderr,
		logger:     slog.New(slog.DiscardHandler),
		openRemote: OpenRemote,
		version:    "dev",
		kdf:        crypto.DefaultKDFParams(),
		flags:      config.DefaultClientConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}

	cmd := &cobra.Command{
		Use:   "worksync",
		Short: "Offline-first task, reminder and goal tracker",
		Long: `worksync keeps tasks, reminders, goals and goal completions in a local
cache and synchronizes them with a shared workspace document.

Changes are always saved locally first. When the remote store is
reachable they are merged into the workspace document; otherwise they
are sent on the next run.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolveConfig(cmd.Flags().Changed)
		},
	}

	defaults := config.DefaultClientConfig()
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to YAML config file")
	pf.StringVar(&a.flags.Remote, "remote", defaults.Remote, "remote store URL: http(s)://server or redis://host:port/db")
	pf.StringVarP(&a.flags.Workspace, "workspace", "w", defaults.Workspace, "workspace key")
	pf.StringVar(&a.flags.DBPath, "db", defaults.DBPath, "path to local cache database")
	pf.StringVar(&a.flags.Token, "token", "", "access token for the worksync server (or "+TokenEnv+")")
	pf.DurationVar(&a.flags.Debounce, "debounce", defaults.Debounce, "delay before local changes are committed")
	pf.StringVar(&a.flags.LogLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.PassphraseFile, "cache-passphrase-file", "", "file containing the cache passphrase")
	pf.BoolVar(&a.flags.Encrypt, "encrypt", false, "encrypt the local cache with a passphrase")

	cmd.AddCommand(a.newTaskCommand())
	cmd.AddCommand(a.newReminderCommand())
	cmd.AddCommand(a.newGoalCommand())
	cmd.AddCommand(a.newDeleteCommand())
	cmd.AddCommand(a.newListCommand())
	cmd.AddCommand(a.newStatusCommand())
	cmd.AddCommand(a.newSyncCommand())
	cmd.AddCommand(a.newWatchCommand())

	return cmd
}

// resolveConfig сливает файл конфигурации с явно заданными флагами.
// Приоритет: флаг, затем файл, затем значение по умолчанию.
func (a *App) resolveConfig(changed func(name string) bool) error {
	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}

	overrides := []struct {
		flag  string
		apply func()
	}{
		{"remote", func() { cfg.Remote = a.flags.Remote }},
		{"workspace", func() { cfg.Workspace = a.flags.Workspace }},
		{"db", func() { cfg.DBPath = a.flags.DBPath }},
		{"token", func() { cfg.Token = a.flags.Token }},
		{"debounce", func() { cfg.Debounce = a.flags.Debounce }},
		{"log-level", func() { cfg.LogLevel = a.flags.LogLevel }},
		{"cache-passphrase-file", func() { cfg.PassphraseFile = a.flags.PassphraseFile }},
		{"encrypt", func() { cfg.Encrypt = a.flags.Encrypt }},
	}
	for _, o := range overrides {
		if changed(o.flag) {
			o.apply()
		}
	}

	if cfg.Token == "" {
		cfg.Token = os.Getenv(TokenEnv)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.logOut, &slog.HandlerOptions{Level: level}))

	return nil
}

// readPassphrase reads the cache passphrase from various sources with priority:
// 1. Environment variable WORKSYNC_CACHE_PASSPHRASE
// 2. File from --cache-passphrase-file
// 3. Interactive prompt (fallback)
func (a *App) readPassphrase() (string, error) {
	// Priority 1: Environment variable
	if env := os.Getenv(PassphraseEnv); env != "" {
		return env, nil
	}

	// Priority 2: File
	if a.cfg.PassphraseFile != "" {
		content, err := os.ReadFile(a.cfg.PassphraseFile)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase file: %w", err)
		}
		// Убираем trailing newline/whitespace
		passphrase := strings.TrimSpace(string(content))
		if passphrase == "" {
			return "", fmt.Errorf("passphrase file is empty")
		}
		return passphrase, nil
	}

	// Priority 3: Interactive prompt
	passphrase, err := a.io.ReadPassword("Cache passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if passphrase == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}

	return passphrase, nil
}
