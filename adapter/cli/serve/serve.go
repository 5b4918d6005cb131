// Package serve implements the serve command.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyloop/studyloop/adapter/api"
	"github.com/studyloop/studyloop/adapter/cli"
)

var addrFlag string

// Cmd is the serve command.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server exposing schedule generation, time
prediction, model status, and weight tuning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Scheduler == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "The server requires a database connection.")
			return nil
		}

		cfg := api.DefaultServerConfig()
		if addrFlag != "" {
			cfg.Addr = addrFlag
		} else if app.Config != nil && app.Config.APIAddr != "" {
			cfg.Addr = app.Config.APIAddr
		}

		handler := api.NewStudyHandler(api.StudyHandlerConfig{
			Repo:      app.Repo,
			Scheduler: app.Scheduler,
			Engine:    app.Engine,
			Predictor: app.Predictor,
			Health:    app.Health,
			Metrics:   app.Metrics,
		})
		server := api.NewServer(cfg, handler, cli.Logger())

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	Cmd.Flags().StringVarP(&addrFlag, "addr", "a", "", "listen address (defaults to configuration)")
}
