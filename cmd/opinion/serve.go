package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/api"
	"github.com/zulandar/chatopinion/internal/digest"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat opinion API",
		Long: `Starts the HTTP API. Uploaded attachments are served under /media.
When digest.schedule is set, the reply-needed digest runs in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if a.cfg.Digest.Schedule != "" {
		sched, err := digest.NewScheduler(a.db, a.alerts, a.cfg.Digest.Schedule)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Digest scheduled: %s\n", a.cfg.Digest.Schedule)
	}

	srv, err := api.New(api.Deps{
		DB:            a.db,
		Conversations: a.conversations,
		Bookings:      a.bookings,
		Complaints:    a.complaints,
		AuthHeader:    a.cfg.Auth.Header,
		PublicURL:     a.cfg.Server.PublicURL,
		MediaRoot:     a.docs.Root(),
	})
	if err != nil {
		return err
	}

	if port == 0 {
		port = a.cfg.Server.Port
	}
	return srv.Start(ctx, api.StartOpts{
		Port: port,
		Out:  cmd.OutOrStdout(),
	})
}
