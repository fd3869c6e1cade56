package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-pyro/internal/api"
	"github.com/joeblew999/plat-pyro/internal/observability"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/server"
	"github.com/joeblew999/plat-pyro/internal/sharelink"
)

// Options defines all CLI flags and env vars for the pyro server.
// Flags: --host, --port, --data-dir, --web-dir, --share ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_SHARE ...
type Options struct {
	Host         string  `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int     `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string  `doc:"Directory holding palette.yaml" default:".data"`
	WebDir       string  `doc:"Optional directory overriding templates/ and static/"`
	LogLevel     string  `doc:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat    string  `doc:"Log format (text, json)" default:"text"`
	MinSizeFeet  float64 `doc:"Smallest audience or restricted zone side, in feet" default:"0"`
	ShareBaseURL string  `doc:"Base URL for generated share links"`
	Share        string  `doc:"Share link or token to load at startup"`
}

func displayBase(opts *Options) string {
	host := opts.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, opts.Port)
}

func newServer(opts *Options) *server.Server {
	shareBase := opts.ShareBaseURL
	if shareBase == "" {
		shareBase = displayBase(opts) + "/editor"
	}
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		WebDir:       opts.WebDir,
		MinSizeFeet:  opts.MinSizeFeet,
		ShareBaseURL: shareBase,
		InitialShare: opts.Share,
		Logger:       observability.NewLogger(opts.LogLevel, opts.LogFormat),
	})
}

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			baseURL := displayBase(opts)

			fmt.Println()
			fmt.Printf("plat-pyro server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Scene:   %d annotations\n", srv.Store().Len())
			fmt.Println()
			fmt.Printf("  Pages:   %s/editor, %s/report\n", baseURL, baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "pyro"
	cli.Root().Short = "Site planning for pyrotechnic displays"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Root().AddCommand(shareCmd())

	cli.Run()
}

// shareCmd converts between scene YAML files and share links, for
// preparing a plan offline or inspecting a link someone sent.
func shareCmd() *cobra.Command {
	share := &cobra.Command{
		Use:   "share",
		Short: "Encode or decode share links",
	}

	encode := &cobra.Command{
		Use:   "encode <scene.yaml>",
		Short: "Print the share link for a scene file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			snap := scene.EmptySnapshot()
			if err := yaml.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if _, err := snap.Entities(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			base, _ := cmd.Flags().GetString("base")
			link, err := sharelink.EncodeURL(base, snap)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	encode.Flags().String("base", "http://localhost:8086/editor", "URL the fragment is appended to")

	decode := &cobra.Command{
		Use:   "decode <link-or-token>",
		Short: "Print a share link's scene as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := sharelink.Decode(args[0])
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(snap)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	share.AddCommand(encode, decode)
	return share
}
