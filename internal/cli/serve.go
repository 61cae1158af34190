package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/api"
	mcpserver "github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/mcp"
)

const serveLongDesc string = `Run agent-recall services.

  agent-recall serve mcp   Serve the memory tools to an MCP client over stdio
  agent-recall serve api   Run the HTTP API server`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run agent-recall services",
		Long:  serveLongDesc,
	}

	cmd.AddCommand(newServeMCPCmd(), newServeAPICmd())
	return cmd
}

const serveMCPLongDesc string = `Serve the memory tools over the Model Context Protocol on stdio.

Register it with an MCP client, for example:
  {"command": "agent-recall", "args": ["serve", "mcp"]}

Logs go to stderr; stdout carries the protocol.`

func newServeMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory tools over MCP stdio",
		Long:  serveMCPLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcpserver.NewServer(mcpserver.Config{
				Service: a.svc,
				Version: cmd.Root().Version,
				Logger:  a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			return server.RunStdio(cmd.Context())
		},
	}
}

func newServeAPICmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("listen") {
				listen = a.cfg.API.Listen
			}

			server, err := api.NewServer(api.Config{ListenAddr: listen}, a.svc, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create API server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Run()
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				a.logger.Info("shutting down API server", zap.String("listen", listen))
				return server.Shutdown()
			}
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Address for API server to listen on (default from api.listen)")
	return cmd
}
