package cmd

import (
	"runtime"
	"time"

	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/server"
	"github.com/BitPonyLLC/huematch/pkg/util"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// daemon is the state of a running serve process that remote commands act on.
type daemon struct {
	store     *catalog.Store
	loader    *catalog.Loader
	server    *server.Server
	addr      string
	startedAt time.Time
}

// running is set only inside the serve process.
var running *daemon

func init() {
	flags := serveCmd.Flags()

	flags.String("addr", "127.0.0.1:8000", "HTTP listen address")
	viper.BindPFlag("serve.addr", flags.Lookup("addr"))

	flags.Int("workers", runtime.NumCPU(), "number of uploads processed concurrently")
	viper.BindPFlag("serve.workers", flags.Lookup("workers"))

	flags.Int64("max-upload", server.DefaultMaxUpload, "largest accepted upload in bytes")
	viper.BindPFlag("serve.max-upload", flags.Lookup("max-upload"))

	flags.String("upload-dir", "", "keep a copy of every upload in this directory")
	viper.BindPFlag("serve.upload-dir", flags.Lookup("upload-dir"))

	flags.StringSlice("cors-origins", []string{"*"}, "origins allowed to call the HTTP API")
	viper.BindPFlag("serve.cors-origins", flags.Lookup("cors-origins"))

	flags.Duration("debounce", catalog.DefaultDebounce, "quiet period before reloading a changed catalog")
	viper.BindPFlag("serve.debounce", flags.Lookup("debounce"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves uploads over HTTP and reloads the catalog when it changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		err := pidPath.CheckAndSet()
		if err != nil {
			return fail(codeDaemon, err)
		}

		err = util.BeNice(viper.GetInt("nice"))
		if err != nil {
			log.Warn().Err(err).Msg("running at normal priority")
		}

		m, loader, snap, err := loadCatalog()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store := catalog.NewStore(snap)

		err = catalog.Watch(ctx, store, loader, viper.GetDuration("serve.debounce"))
		if err != nil {
			return fail(codeCatalog, err)
		}

		srv := &server.Server{
			Matcher:     m,
			Catalog:     store,
			Log:         &log.Logger,
			MaxUpload:   viper.GetInt64("serve.max-upload"),
			UploadDir:   viper.GetString("serve.upload-dir"),
			CORSOrigins: viper.GetStringSlice("serve.cors-origins"),
			Workers:     viper.GetInt("serve.workers"),
		}

		running = &daemon{
			store:     store,
			loader:    loader,
			server:    srv,
			addr:      viper.GetString("serve.addr"),
			startedAt: time.Now(),
		}

		err = ipcServer.Start(ctx, &log.Logger, viper.GetString("sockpath"), newRemoteCmd)
		if err != nil {
			return fail(codeDaemon, err)
		}

		log.Info().Str("catalog", snap.Source()).Int("entries", snap.Len()).Int("pid", pidPath.Getpid()).Msg("serving")

		err = srv.ListenAndServe(ctx, running.addr)
		if err != nil {
			return fail(codeServe, err)
		}

		log.Info().Msg("stopped")
		return nil
	},
}
