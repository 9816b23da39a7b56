package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/router"
	"github.com/zen-systems/modelgate/pkg/server"
	"github.com/zen-systems/modelgate/pkg/telemetry"
	"github.com/zen-systems/modelgate/pkg/validate"
)

var (
	policyFile string
	envFile    string
	devLogs    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelgate",
		Short: "Task-aware model routing with validation, repair and fallback",
		Long: `Modelgate routes generation tasks to a primary model chosen by policy,
validates the output against the expected shape, repairs or falls back
when validation fails, and degrades gracefully when every provider fails.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is fine; the environment may already be set.
			_ = godotenv.Load(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "path to routing policy file (overrides "+config.EnvPolicyPath+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&devLogs, "dev", false, "human-readable development logging")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(priceCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var (
		taskFlag   string
		schemaFlag string
		shapeFlag  string
		modeFlag   string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Route a prompt through the policy and print the result",
		Long: `Classifies the prompt (unless --task is given), routes it to the
policy's primary model, validates the output and prints it.

Use --json to print the full routing result including model, latency,
repair and fallback flags and the cost estimate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.router.Route(ctx, router.Request{
				TaskID:     taskFlag,
				Prompt:     args[0],
				Shape:      validate.Shape(shapeFlag),
				SchemaName: schemaFlag,
				Mode:       config.Mode(modeFlag),
			})
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintf(os.Stderr, "Routed %s to %s in %dms", result.TaskID, result.ModelUsed, result.LatencyMs)
			if result.Repaired {
				fmt.Fprint(os.Stderr, " (repaired)")
			}
			if result.Fallback {
				fmt.Fprint(os.Stderr, " (fallback)")
			}
			fmt.Fprintln(os.Stderr)

			if len(result.Structured) > 0 {
				fmt.Println(string(result.Structured))
				return nil
			}
			fmt.Println(result.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskFlag, "task", "", "task identifier (classified from the prompt when empty)")
	cmd.Flags().StringVar(&schemaFlag, "schema", "", "schema the output must satisfy ("+strings.Join(validate.SchemaNames(), ", ")+")")
	cmd.Flags().StringVar(&shapeFlag, "shape", "", "expected output shape (text, json, mermaid)")
	cmd.Flags().StringVar(&modeFlag, "mode", "", "explicit mode (quality, balanced, cheap)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full result as JSON")

	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [prompt]",
		Short: "Show which task a prompt classifies to",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			task, keyword := router.ClassifyWithKeyword(args[0])
			if keyword == "" {
				keyword = "-"
			}
			fmt.Printf("%s\t(keyword: %s)\n", task, keyword)
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show the routing table for every known task",
		RunE: func(cmd *cobra.Command, args []string) error {
			rp, err := loadRoutingPolicy()
			if err != nil {
				return err
			}
			policy, err := router.NewPolicy(rp)
			if err != nil {
				return err
			}

			fmt.Printf("Policy version: %s\n\n", policy.Version())
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tMODE\tSOURCE\tPRIMARY\tFALLBACK\tMAX LATENCY")
			for _, route := range policy.Routes() {
				if route.Error != "" {
					fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%s\n", route.TaskID, route.Error)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\n",
					route.TaskID, route.Mode, route.ModeSource, route.Primary, route.Fallback, route.MaxLatencyMs)
			}
			return w.Flush()
		},
	}
}

func priceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price <model> <tokens-in> <tokens-out>",
		Short: "Estimate the USD cost of a call",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := strconv.Atoi(args[1])
			if err != nil || in < 0 {
				return fmt.Errorf("tokens-in must be a non-negative integer: %q", args[1])
			}
			out, err := strconv.Atoi(args[2])
			if err != nil || out < 0 {
				return fmt.Errorf("tokens-out must be a non-negative integer: %q", args[2])
			}

			var pricing config.PricingConfig
			if rp, err := loadRoutingPolicy(); err == nil {
				pricing = rp.Pricing
			}
			table := telemetry.NewPriceTable(pricing)
			price, known := table.Lookup(args[0])
			source := "table"
			if !known {
				source = "default"
			}
			fmt.Printf("%s: $%.6f (input $%.2f/M, output $%.2f/M, %s)\n",
				args[0], table.Estimate(args[0], in, out), price.InputPerMillion, price.OutputPerMillion, source)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the routing API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = app.cfg.HTTPAddr
			}
			srv := server.New(app.router,
				server.WithLogger(app.logger),
				server.WithGatherer(app.registry))

			app.logger.Info("serving",
				zap.String("addr", addr),
				zap.String("policy_version", app.router.Policy().Version()))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to "+config.EnvHTTPAddr+")")
	return cmd
}

func loadRoutingPolicy() (*config.RoutingPolicy, error) {
	path := policyFile
	if path == "" {
		path = os.Getenv(config.EnvPolicyPath)
	}
	if path == "" {
		return config.DefaultRoutingPolicy(), nil
	}
	return config.LoadRoutingPolicy(path)
}
