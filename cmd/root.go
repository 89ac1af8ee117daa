package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/syslog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BitPonyLLC/huematch/buildinfo"
	"github.com/BitPonyLLC/huematch/pkg/ipc"
	"github.com/BitPonyLLC/huematch/pkg/palette"
	"github.com/BitPonyLLC/huematch/pkg/pidpath"
	"github.com/BitPonyLLC/huematch/pkg/termwrap"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute is the primary entrypoint for this CLI
func Execute() int {
	defer atExit()

	tw := termwrap.NewTermWrap(80)
	rootCmd.Long = tw.Paragraph(buildinfo.App.Description + "\n\n" + buildinfo.App.FullDescription)

	rootCmd.SetOut(os.Stdout) // default is stderr

	var cancelCtx context.Context
	cancelCtx, cancelFunc = context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info().Str("signal", sig.String()).Msg("stopping")
		cancelFunc()
	}()

	err := rootCmd.ExecuteContext(cancelCtx)
	if err != nil {
		log.Err(err).Msg("command failed")
		cancelFunc()
		return failureCode
	}

	return 0
}

//--------------------------------------------------------------------------------
// private

const logDstLabel = "log-dst"
const minimalTimeFormat = "15:04:05.000"

// exit codes
const (
	codeConfig     = 2
	codeLogging    = 4
	codeCatalog    = 11
	codeRead       = 12
	codeDecode     = 13
	codeMatch      = 14
	codeDaemon     = 15
	codeDegenerate = 16
	codeServe      = 17
)

var failureCode = 1
var initialized = false

var configPath = "$HOME/." + buildinfo.App.Name
var dumpConfig = false
var logF *os.File

var cancelFunc func()
var pidPath *pidpath.PidPath
var ipcServer *ipc.IPCServer

var rootCmd = &cobra.Command{
	Use:               buildinfo.App.Name,
	Short:             buildinfo.App.Description,
	Version:           buildinfo.All,
	SilenceUsage:      true,
	PersistentPreRunE: atStart,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if dumpConfig {
			return dump("config", cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configPath, "the configuration file to load")
	rootCmd.Flags().BoolVar(&dumpConfig, "dump-config", dumpConfig, "dump configuration to stdout")

	rootCmd.PersistentFlags().String("log-level", "info", "set logging level: trace, debug, info, warn, error")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String(logDstLabel, "stderr", "write logs to syslog, stdout, stderr, or provide a pathname")
	viper.BindPFlag(logDstLabel, rootCmd.PersistentFlags().Lookup(logDstLabel))

	defaultPidPath := filepath.Join(os.TempDir(), buildinfo.App.Name+".pid")
	rootCmd.PersistentFlags().String("pidpath", defaultPidPath, "pathname of the pidfile")
	viper.BindPFlag("pidpath", rootCmd.PersistentFlags().Lookup("pidpath"))

	defaultSockPath := filepath.Join(os.TempDir(), buildinfo.App.Name+".sock")
	rootCmd.PersistentFlags().String("sockpath", defaultSockPath, "pathname of the sockfile")
	viper.BindPFlag("sockpath", rootCmd.PersistentFlags().Lookup("sockpath"))

	rootCmd.PersistentFlags().Int("nice", 10, "the priority level of the process")
	viper.BindPFlag("nice", rootCmd.PersistentFlags().Lookup("nice"))

	rootCmd.PersistentFlags().StringP("catalog", "c", "catalog.yml", "pathname of the reference catalog")
	viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))

	rootCmd.PersistentFlags().IntP("k", "k", palette.DefaultK, "number of dominant colors per signature")
	viper.BindPFlag("match.k", rootCmd.PersistentFlags().Lookup("k"))

	rootCmd.PersistentFlags().Int64("seed", palette.DefaultSeed, "seed for cluster initialization")
	viper.BindPFlag("match.seed", rootCmd.PersistentFlags().Lookup("seed"))

	rootCmd.PersistentFlags().String("strategy", palette.MetricAligned,
		fmt.Sprintf("how signatures are compared: %v", palette.MetricNames()))
	viper.BindPFlag("match.strategy", rootCmd.PersistentFlags().Lookup("strategy"))

	rootCmd.PersistentFlags().Bool("strict", false, "reject images with fewer distinct colors than k")
	viper.BindPFlag("match.strict", rootCmd.PersistentFlags().Lookup("strict"))

	viper.SetDefault("match.max-iterations", palette.DefaultMaxIterations)
	viper.SetDefault("match.tolerance", palette.DefaultTolerance)
}

func atStart(cmd *cobra.Command, _ []string) error {
	if initialized {
		return nil
	}

	initialized = true

	viper.SetConfigName(filepath.Base(configPath))
	viper.SetConfigType("toml")
	viper.AddConfigPath(filepath.Dir(configPath))

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fail(codeConfig, "unable to read config file: %w", err)
		}
	} else {
		viper.OnConfigChange(func(e fsnotify.Event) {
			confLogLevel := viper.GetString("log-level")
			level, err := zerolog.ParseLevel(confLogLevel)
			if err != nil {
				log.Err(err).Str("level", confLogLevel).Msg("unable to parse new log level")
			} else {
				zerolog.SetGlobalLevel(level)
				log.Info().Str("level", level.String()).Msg("log level changed")
			}
		})

		viper.WatchConfig()
	}

	err = setupLogging(cmd, "")
	if err != nil {
		return err
	}

	pidPath = pidpath.New(viper.GetString("pidpath"), 0644)
	ipcServer = &ipc.IPCServer{}

	log.Debug().Str("file", viper.ConfigFileUsed()).Msg("config")
	return nil
}

func atExit() {
	if ipcServer != nil {
		ipcServer.Stop()
	}

	if pidPath != nil {
		pidPath.Release()
	}

	if logF != nil {
		logF.Close()
	}
}

func setupLogging(cmd *cobra.Command, logDst string) error {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var logWriter io.Writer

	withTime := true

	if logDst == "" {
		logDst = viper.GetString(logDstLabel)
	}

	switch logDst {
	case "syslog":
		syslogger, err := syslog.New(syslog.LOG_INFO, buildinfo.App.Name)
		if err != nil {
			newErr := setupLogging(cmd, "stderr")
			if newErr != nil {
				return newErr
			}

			log.Warn().Err(err).Msg("unable to use syslog: switched to stderr")
			return nil
		}

		withTime = false
		logWriter = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.NoColor = true
			w.PartsExclude = []string{zerolog.TimestampFieldName}
			w.Out = zerolog.SyslogLevelWriter(syslogger)
		})
	case "stdout":
		zerolog.TimeFieldFormat = minimalTimeFormat
		logWriter = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = minimalTimeFormat
			w.Out = os.Stdout
		})
	case "stderr":
		zerolog.TimeFieldFormat = minimalTimeFormat
		logWriter = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = minimalTimeFormat
			w.Out = os.Stderr
		})
	default:
		var err error
		logF, err = os.OpenFile(logDst, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fail(codeLogging, "unable to open %s: %w", logDst, err)
		}

		logWriter = logF
	}

	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fail(codeLogging, err)
	}

	zerolog.SetGlobalLevel(level)

	if withTime {
		log.Logger = zerolog.New(logWriter).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(logWriter)
	}

	return nil
}

func fail(code int, formatOrErr interface{}, args ...interface{}) error {
	failureCode = code
	if len(args) == 0 {
		err, ok := formatOrErr.(error)
		if ok {
			return err
		}
		return errors.New(formatOrErr.(string))
	}
	return fmt.Errorf(formatOrErr.(string), args...)
}

// failMatch picks the exit code for an extraction or matching error.
func failMatch(err error, format string, args ...interface{}) error {
	code := codeMatch
	switch {
	case errors.Is(err, palette.ErrDecode):
		code = codeDecode
	case errors.Is(err, palette.ErrDegenerateInput):
		code = codeDegenerate
	case errors.Is(err, palette.ErrInvalidK):
		code = codeConfig
	}

	return fail(code, format+": %w", append(args, err)...)
}
