package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ah-its-andy/img2webp/internal/config"
	"github.com/ah-its-andy/img2webp/internal/db"
	"github.com/ah-its-andy/img2webp/internal/logging"
	"github.com/ah-its-andy/img2webp/internal/progress"
	"github.com/ah-its-andy/img2webp/internal/worker"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// version is set at build time via ldflags.
var version = "dev"

type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:   "img2webp [dir]",
		Short: "Convert images to WebP in place, deleting verified originals",
		Long: `img2webp walks a directory tree, converts every JPEG, PNG, GIF, BMP, TIFF
and WebP image it finds to a new_<name>.webp file next to the source, checks
the output decodes, and only then deletes the original. Failures are listed
at the end of the run; the exit status is zero regardless.`,
		Version:           version,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runConvert,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./img2webp.yaml or ~/.config/img2webp/img2webp.yaml)")
	pf.IntP("quality", "q", 1, "quality level 1-5, encoder quality (level-1)*20+10")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("history-db", "", "record runs to this sqlite file")
	pf.Int("http-port", 8080, "HTTP port for the history API (0 disables it in watch mode)")
	pf.Bool("spinner", true, "show a spinner on interactive terminals")
	pf.Bool("auto-orient", true, "apply EXIF orientation before encoding")
	bindFlags(v, pf, map[string]string{
		config.KeyQuality:    "quality",
		config.KeyLogLevel:   "log-level",
		config.KeyHistoryDB:  "history-db",
		config.KeyHTTPPort:   "http-port",
		config.KeySpinner:    "spinner",
		config.KeyAutoOrient: "auto-orient",
	})

	root.AddCommand(newConvertCmd(a), newWatchCmd(a), newServeCmd(a))
	return root
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// setup reads the config file, applies the directory argument and
// initializes logging. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName("img2webp")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "img2webp"))
		}
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}

	if len(args) == 1 {
		a.v.Set(config.KeyRoot, args[0])
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel)
	if used := a.v.ConfigFileUsed(); used != "" && cfgFile == "" {
		log.Debug().Str("file", used).Msg("Using config file")
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.cfg = cfg
	return nil
}

// openHistory opens the ledger when one is configured. A ledger that cannot
// be opened disables history for this run instead of failing it.
func (a *app) openHistory() *gorm.DB {
	if !a.cfg.HistoryEnabled() {
		return nil
	}
	conn, err := db.Init(a.cfg.HistoryDB)
	if err != nil {
		log.Warn().Err(err).Str("path", a.cfg.HistoryDB).Msg("History disabled")
		return nil
	}
	return conn
}

func (a *app) newWorker(conn *gorm.DB, opts ...worker.Option) *worker.Worker {
	if conn != nil {
		opts = append(opts, worker.WithHistory(worker.NewHistory(conn)))
	}
	return worker.New(a.cfg, newConverter(), opts...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && progress.IsTerminal(f)
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}
