// Package cli provides the medtriage command tree.
//
// Configuration is read, lowest priority first, from built-in defaults, a
// YAML file, MEDTRIAGE_* environment variables and command-line flags. The
// file is taken from --config, then MEDTRIAGE_CONFIG_FILE, then
// .medtriage.yaml in the working directory or ~/.config/medtriage.
//
// Environment Variables:
//
//	MEDTRIAGE_CONFIG_FILE: Path to a config file
//	MEDTRIAGE_ANALYZER_ENDPOINT: Analysis service URL
//	MEDTRIAGE_STORAGE_BACKEND: sqlite, file or memory
//	And every other key following the MEDTRIAGE_<SECTION>_<OPTION> pattern
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raysh454/medtriage/internal/app"
	"github.com/raysh454/medtriage/internal/auth"
	"github.com/raysh454/medtriage/internal/logging"
)

// Option customizes the command tree, mainly for tests.
type Option func(*runtime)

// WithAppOptions passes opts to every app.NewApplication call.
func WithAppOptions(opts ...app.Option) Option {
	return func(rt *runtime) { rt.appOpts = append(rt.appOpts, opts...) }
}

// WithLogger replaces the JSON stderr logger.
func WithLogger(l logging.Logger) Option {
	return func(rt *runtime) { rt.logger = l }
}

// runtime is the state shared by every subcommand of one root command.
type runtime struct {
	v       *viper.Viper
	cfgFile string
	appOpts []app.Option
	logger  logging.Logger
}

// NewRootCommand builds the command tree. Each call has its own viper
// instance, so trees are independent.
func NewRootCommand(opts ...Option) *cobra.Command {
	rt := &runtime{v: viper.New()}
	for _, opt := range opts {
		opt(rt)
	}

	root := &cobra.Command{
		Use:   "medtriage",
		Short: "Submit medical scans for analysis and keep their reports",
		Long: `MedTriage uploads a medical image to an analysis service, classifies the
returned findings, and keeps the 50 most recent results on this device.

Quick Start:
  medtriage scan chest.dcm          Analyze a scan and print its report
  medtriage history list            List saved results, newest first
  medtriage report <id> -f pdf      Export a saved result
  medtriage serve                   Start the local API for a UI`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.initConfig()
		},
	}

	root.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "config file (default is .medtriage.yaml, can also use MEDTRIAGE_CONFIG_FILE env var)")
	root.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = rt.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newScanCommand(rt),
		newHistoryCommand(rt),
		newReportCommand(rt),
		newThemeCommand(rt),
		newServeCommand(rt),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// initConfig selects and reads the config file. A missing default file is
// not an error; a missing explicit file is.
func (rt *runtime) initConfig() error {
	app.ConfigureViper(rt.v)

	explicit := true
	if rt.cfgFile != "" {
		rt.v.SetConfigFile(rt.cfgFile)
	} else if envConfigFile := os.Getenv(app.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		rt.v.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		rt.v.AddConfigPath(".")
		rt.v.AddConfigPath("$HOME/.config/medtriage")
		rt.v.SetConfigType("yaml")
		rt.v.SetConfigName(".medtriage")
	}

	if err := rt.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// open loads the configuration and wires an Application. The caller closes it.
func (rt *runtime) open(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := app.LoadConfig(rt.v)
	if err != nil {
		return nil, err
	}
	logger := rt.logger
	if logger == nil {
		logger = logging.NewLogger("medtriage", logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())
	}
	return app.NewApplication(cfg, logger, rt.appOpts...)
}

// openUnlocked is open followed by the unlock gate. When a passphrase is
// configured it is read from the command's stdin.
func (rt *runtime) openUnlocked(cmd *cobra.Command) (*app.Application, error) {
	a, err := rt.open(cmd)
	if err != nil {
		return nil, err
	}
	ok, err := a.Gate.UnlockWithInput(cmd.Context(), promptLine(cmd.InOrStdin(), cmd.ErrOrStderr()))
	if err != nil {
		a.Close()
		return nil, err
	}
	if !ok {
		a.Close()
		return nil, auth.ErrLocked
	}
	return a, nil
}

// promptLine writes prompt to w and reads one line from r.
func promptLine(r io.Reader, w io.Writer) func(context.Context, string) (string, error) {
	return func(_ context.Context, prompt string) (string, error) {
		fmt.Fprintf(w, "%s: ", prompt)
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}
