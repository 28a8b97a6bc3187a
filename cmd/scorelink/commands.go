package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/scorelink/pkg/client"
	"github.com/rmax-ai/scorelink/pkg/mcp"
	"github.com/rmax-ai/scorelink/pkg/protocol"
	"github.com/rmax-ai/scorelink/pkg/sqlbind"
)

// app carries what every subcommand needs.
type app struct {
	flags  globalFlags
	getenv func(string) string
	// newLogger overrides the flag-driven logger in tests.
	newLogger func() (*zap.Logger, error)
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	return newApp(getenv).rootCmd()
}

func newApp(getenv func(string) string) *app {
	return &app{getenv: getenv}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scorelink",
		Short:         "Query and mutate a graph-scoring engine",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.flags.register(root)

	root.AddCommand(
		a.infoCmd(),
		a.pingCmd(),
		a.scoreCmd(),
		a.scoreLinearSumCmd(),
		a.scoresCmd(),
		a.scoresLinearSumCmd(),
		a.beaconsCmd(),
		a.graphCmd(),
		a.gravityCmd(),
		a.nodesCmd(),
		a.edgesCmd(),
		a.connectedCmd(),
		a.mutualCmd(),
		a.putCmd(),
		a.deleteEdgeCmd(),
		a.deleteNodeCmd(),
		a.resetCmd(),
		a.zeroRecCmd(),
		a.syncCmd(),
		a.logLevelCmd(),
		a.sqlCmd(),
		a.mcpCmd(),
	)
	return root
}

func (a *app) logger() (*zap.Logger, error) {
	if a.newLogger != nil {
		return a.newLogger()
	}
	return a.flags.logger()
}

// run builds a client and hands it to fn. The logger is flushed once fn
// returns.
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger, err := a.logger()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		c, err := a.flags.newClient(cmd, a.getenv, logger)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), cmd, c, args)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printOk(cmd *cobra.Command, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Ok")
	return nil
}

func readTarget(cmd *cobra.Command) protocol.ReadTarget {
	if name, _ := cmd.Flags().GetString("context"); name != "" {
		return protocol.ReadFrom(name)
	}
	return protocol.Aggregate()
}

func writeTarget(cmd *cobra.Command) protocol.WriteTarget {
	if name, _ := cmd.Flags().GetString("context"); name != "" {
		return protocol.WriteTo(name)
	}
	return protocol.DefaultBucket()
}

func withContext(cmd *cobra.Command, usage string) *cobra.Command {
	cmd.Flags().String("context", "", usage)
	return cmd
}

func readContext(cmd *cobra.Command) *cobra.Command {
	return withContext(cmd, "named context to read (default: aggregate of all contexts)")
}

func writeContext(cmd *cobra.Command) *cobra.Command {
	return withContext(cmd, "named context to write (default: the default bucket)")
}

// optFloat returns the flag value only when it was set.
func optFloat(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return protocol.Float(v)
}

func optUint(cmd *cobra.Command, name string) *uint32 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetUint32(name)
	return protocol.Uint(v)
}

func pageFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32("index", 0, "rows to skip")
	cmd.Flags().Uint32("count", 0, "maximum rows (default: no limit)")
}

// --- Information ---

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the configured endpoint and connector version",
		Args:  cobra.NoArgs,
		RunE: a.run(func(_ context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			return printJSON(cmd, map[string]string{
				"service_url": c.ServiceURL(),
				"connector":   c.ConnectorVersion(),
			})
		}),
	}
}

func (a *app) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ask the engine for its version",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			v, err := c.Ping(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}),
	}
}

// --- Reads ---

func (a *app) scoreCmd() *cobra.Command {
	return readContext(&cobra.Command{
		Use:   "score <src> <dst>",
		Short: "Score src assigns dst",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rows, err := c.NodeScore(ctx, args[0], args[1], readTarget(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
}

func (a *app) scoreLinearSumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score-linear-sum <src> <dst>",
		Short: "Pre-summed score src assigns dst",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rows, err := c.NodeScoreLinearSum(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	}
}

func (a *app) scoresCmd() *cobra.Command {
	cmd := readContext(&cobra.Command{
		Use:   "scores <src>",
		Short: "Ranked scores assigned by src",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			hide, _ := cmd.Flags().GetBool("hide-personal")
			rows, err := c.Scores(ctx, args[0], client.ScoresOptions{
				Context:      readTarget(cmd),
				Prefix:       prefix,
				HidePersonal: hide,
				Lt:           optFloat(cmd, "lt"),
				Lte:          optFloat(cmd, "lte"),
				Gt:           optFloat(cmd, "gt"),
				Gte:          optFloat(cmd, "gte"),
				Index:        optUint(cmd, "index"),
				Count:        optUint(cmd, "count"),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
	f := cmd.Flags()
	f.String("prefix", "", "keep only targets starting with prefix")
	f.Bool("hide-personal", false, "hide the ego's personal nodes")
	f.Float64("lt", 0, "score strictly below")
	f.Float64("lte", 0, "score at most")
	f.Float64("gt", 0, "score strictly above")
	f.Float64("gte", 0, "score at least")
	pageFlags(cmd)
	return cmd
}

func (a *app) scoresLinearSumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scores-linear-sum <src>",
		Short: "Pre-summed ranked scores assigned by src",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rows, err := c.ScoresLinearSum(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	}
}

func (a *app) beaconsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "beacons",
		Short: "Global score table over the aggregate graph",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			rows, err := c.ForBeaconsGlobal(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	}
}

func graphOptions(cmd *cobra.Command) client.GraphOptions {
	positive, _ := cmd.Flags().GetBool("positive-only")
	return client.GraphOptions{
		Context:      readTarget(cmd),
		PositiveOnly: positive,
		Index:        optUint(cmd, "index"),
		Count:        optUint(cmd, "count"),
	}
}

func (a *app) graphCmd() *cobra.Command {
	cmd := readContext(&cobra.Command{
		Use:   "graph <src> <focus>",
		Short: "Scored edges of the neighborhood linking src and focus",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rows, err := c.Graph(ctx, args[0], args[1], graphOptions(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
	cmd.Flags().Bool("positive-only", false, "drop non-positive scores")
	pageFlags(cmd)
	return cmd
}

func (a *app) gravityCmd() *cobra.Command {
	cmd := readContext(&cobra.Command{
		Use:   "gravity <src> <focus>",
		Short: "Weighted nodes of the neighborhood linking src and focus",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rows, err := c.GravityNodes(ctx, args[0], args[1], graphOptions(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
	cmd.Flags().Bool("positive-only", false, "drop non-positive weights")
	pageFlags(cmd)
	return cmd
}

func (a *app) nodesCmd() *cobra.Command {
	return readContext(&cobra.Command{
		Use:   "nodes",
		Short: "List node ids",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			rows, err := c.NodeList(ctx, readTarget(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
}

func (a *app) edgesCmd() *cobra.Command {
	return readContext(&cobra.Command{
		Use:   "edges",
		Short: "List edges",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			rows, err := c.EdgeList(ctx, readTarget(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
}

func (a *app) connectedCmd() *cobra.Command {
	return readContext(&cobra.Command{
		Use:   "connected <src>",
		Short: "Outgoing connections of src",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rows, err := c.Connected(ctx, args[0], readTarget(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
}

func (a *app) mutualCmd() *cobra.Command {
	return readContext(&cobra.Command{
		Use:   "mutual <src>",
		Short: "Scores exchanged both ways between src and its peers",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rows, err := c.MutualScores(ctx, args[0], readTarget(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		}),
	})
}

// --- Mutations ---

func (a *app) putCmd() *cobra.Command {
	return writeContext(&cobra.Command{
		Use:   "put <src> <dst> <weight>",
		Short: "Create or overwrite an edge",
		Args:  cobra.ExactArgs(3),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			weight, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid weight %q: %w", args[2], err)
			}
			edge, err := c.PutEdge(ctx, args[0], args[1], weight, writeTarget(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, edge)
		}),
	})
}

func (a *app) deleteEdgeCmd() *cobra.Command {
	return writeContext(&cobra.Command{
		Use:   "delete-edge <src> <dst>",
		Short: "Remove an edge from one context",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			return printOk(cmd, c.DeleteEdge(ctx, args[0], args[1], writeTarget(cmd)))
		}),
	})
}

func (a *app) deleteNodeCmd() *cobra.Command {
	return writeContext(&cobra.Command{
		Use:   "delete-node <src>",
		Short: "Remove a node and its edges from one context",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			return printOk(cmd, c.DeleteNode(ctx, args[0], writeTarget(cmd)))
		}),
	})
}

// --- Administration ---

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "DANGER: clear all engine state in every context",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			return printOk(cmd, c.Reset(ctx))
		}),
	}
}

func (a *app) zeroRecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zerorec",
		Short: "Recompute scores anchored at the zero node",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			return printOk(cmd, c.RecomputeZero(ctx))
		}),
	}
}

func (a *app) syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Wait until the engine has applied every queued write",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			wait, _ := cmd.Flags().GetDuration("wait")
			return printOk(cmd, c.Synchronize(ctx, wait))
		}),
	}
	cmd.Flags().Duration("wait", client.DefaultSyncTimeout, "maximum time to wait")
	return cmd
}

func (a *app) logLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log-level <level>",
		Short: "Set the engine's log level",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			level, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid level %q: %w", args[0], err)
			}
			return printOk(cmd, c.SetLogLevel(ctx, uint32(level)))
		}),
	}
}

// --- Surfaces ---

func (a *app) sqlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <query>",
		Short: "Run a SQLite query with the mr_* functions bound to the engine",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			dsn, _ := cmd.Flags().GetString("db")
			db, err := sqlbind.Open("sqlite3_scorelink_"+uuid.NewString(), dsn, c)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.QueryContext(ctx, args[0])
			if err != nil {
				return err
			}
			defer rows.Close()

			cols, err := rows.Columns()
			if err != nil {
				return err
			}
			var out []map[string]any
			for rows.Next() {
				vals := make([]any, len(cols))
				ptrs := make([]any, len(cols))
				for i := range vals {
					ptrs[i] = &vals[i]
				}
				if err := rows.Scan(ptrs...); err != nil {
					return err
				}
				row := make(map[string]any, len(cols))
				for i, col := range cols {
					if b, ok := vals[i].([]byte); ok {
						row[col] = string(b)
						continue
					}
					row[col] = vals[i]
				}
				out = append(out, row)
			}
			if err := rows.Err(); err != nil {
				return err
			}
			if out == nil {
				out = []map[string]any{}
			}
			return printJSON(cmd, out)
		}),
	}
	cmd.Flags().String("db", ":memory:", "SQLite database to attach the functions to")
	return cmd
}

func (a *app) mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the engine as Model Context Protocol tools on stdio",
		Args:  cobra.NoArgs,
		RunE: a.run(func(_ context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			addr, _ := cmd.Flags().GetString("metrics-addr")
			if addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						fmt.Fprintf(cmd.ErrOrStderr(), "metrics server: %v\n", err)
					}
				}()
				defer srv.Close()
			}
			return mcp.NewServer(c).Serve()
		}),
	}
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	return cmd
}
