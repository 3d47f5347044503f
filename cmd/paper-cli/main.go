// Command paper-cli is a small command-line client for a paper-cache server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	paper "github.com/paper-cache/go-paper"
	"github.com/paper-cache/go-paper/wire"
)

var (
	flagAddr    string
	flagTimeout time.Duration
	flagAuth    string
	flagVerbose bool
	flagTTL     time.Duration
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paper-cli",
		Short:         "Talk to a paper-cache server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagAddr, "addr", "paper://127.0.0.1:3145", "server address")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "per-request timeout")
	root.PersistentFlags().StringVar(&flagAuth, "auth", "", "authentication token")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log connection lifecycle")

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
			return c.Set(ctx, args[0], []byte(args[1]), flagTTL)
		}),
	}
	set.Flags().DurationVar(&flagTTL, "ttl", 0, "time-to-live (0 for no expiry)")

	setTTL := &cobra.Command{
		Use:   "set-ttl <key>",
		Short: "Update a key's time-to-live",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
			return c.SetTTL(ctx, args[0], flagTTL)
		}),
	}
	setTTL.Flags().DurationVar(&flagTTL, "ttl", 0, "time-to-live (0 removes the expiry)")

	root.AddCommand(
		&cobra.Command{
			Use:   "ping",
			Short: "Check that the server is answering",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *paper.Client, _ []string) error {
				if err := c.Ping(ctx); err != nil {
					return err
				}
				fmt.Println("pong")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the server version",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *paper.Client, _ []string) error {
				version, err := c.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Println(version)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Fetch a value",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				item, err := c.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !item.Found {
					return fmt.Errorf("%q not found", args[0])
				}
				fmt.Println(string(item.Value))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "peek <key>",
			Short: "Fetch a value without touching eviction order",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				item, err := c.Peek(ctx, args[0])
				if err != nil {
					return err
				}
				if !item.Found {
					return fmt.Errorf("%q not found", args[0])
				}
				fmt.Println(string(item.Value))
				return nil
			}),
		},
		set,
		&cobra.Command{
			Use:   "del <key>",
			Short: "Delete a key",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				return c.Delete(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "has <key>",
			Short: "Report whether a key exists",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				ok, err := c.Has(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(ok)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "ttl <key>",
			Short: "Print a key's remaining time-to-live",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				ttl, hasExpiry, err := c.TTL(ctx, args[0])
				if err != nil {
					return err
				}
				if !hasExpiry {
					fmt.Println("no expiry")
					return nil
				}
				fmt.Println(ttl)
				return nil
			}),
		},
		setTTL,
		&cobra.Command{
			Use:   "size-of <key>",
			Short: "Print a value's stored size in bytes",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				size, err := c.ValueSize(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(size)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the server's status",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *paper.Client, _ []string) error {
				status, err := c.Status(ctx)
				if err != nil {
					return err
				}
				printStatus(status)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "size",
			Short: "Print the cache's occupancy",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *paper.Client, _ []string) error {
				size, err := c.Size(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%d/%d bytes, %d objects\n", size.UsedSize, size.MaxSize, size.NumObjects)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "policy [name]",
			Short: "Print or set the eviction policy",
			Args:  cobra.MaximumNArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				if len(args) == 0 {
					policy, err := c.Policy(ctx)
					if err != nil {
						return err
					}
					fmt.Println(policy)
					return nil
				}
				policy, err := wire.ParsePolicy(args[0])
				if err != nil {
					return err
				}
				return c.SetPolicy(ctx, policy)
			}),
		},
		&cobra.Command{
			Use:   "resize <bytes>",
			Short: "Set the cache's capacity",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *paper.Client, args []string) error {
				var size int64
				if _, err := fmt.Sscanf(args[0], "%d", &size); err != nil {
					return fmt.Errorf("invalid size %q", args[0])
				}
				return c.Resize(ctx, size)
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all entries",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *paper.Client, _ []string) error {
				return c.Clear(ctx)
			}),
		},
		&cobra.Command{
			Use:   "wipe",
			Short: "Remove all entries and reset statistics",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *paper.Client, _ []string) error {
				return c.Wipe(ctx)
			}),
		},
	)

	return root
}

func withClient(fn func(context.Context, *paper.Client, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := paper.Config{
			Timeout:   flagTimeout,
			AuthToken: flagAuth,
		}

		if flagVerbose {
			log := logrus.New()
			log.SetLevel(logrus.DebugLevel)
			cfg.Logger = log
		}

		client, err := paper.Dial(cmd.Context(), flagAddr, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		return fn(cmd.Context(), client, args)
	}
}

func printStatus(s *paper.Status) {
	fmt.Printf("pid:         %d\n", s.PID)
	fmt.Printf("uptime:      %s\n", time.Duration(s.Uptime)*time.Second)
	fmt.Printf("max size:    %d\n", s.MaxSize)
	fmt.Printf("used size:   %d\n", s.UsedSize)
	fmt.Printf("objects:     %d\n", s.NumObjects)
	fmt.Printf("rss:         %d\n", s.RSS)
	fmt.Printf("hwm:         %d\n", s.HWM)
	fmt.Printf("gets:        %d\n", s.TotalGets)
	fmt.Printf("sets:        %d\n", s.TotalSets)
	fmt.Printf("dels:        %d\n", s.TotalDels)
	fmt.Printf("miss ratio:  %.4f\n", s.MissRatio)
	fmt.Printf("policy:      %s\n", s.Policy)
	fmt.Printf("auto policy: %t\n", s.IsAutoPolicy)
	fmt.Print("policies:   ")
	for _, p := range s.Policies {
		fmt.Printf(" %s", p)
	}
	fmt.Println()
}
