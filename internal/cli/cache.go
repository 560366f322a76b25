package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/redis"
	redisstore "github.com/MrSnakeDoc/bookmarks/internal/store/redis"
	"github.com/MrSnakeDoc/bookmarks/internal/utils"
)

type cacheOptions struct {
	addr     string
	user     string
	password string
	db       int
	timeout  time.Duration
}

func init() {
	rootCmd.AddCommand(newCacheCmd())
}

func newCacheCmd() *cobra.Command {
	opts := &cacheOptions{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the Redis collection cache",
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.addr, "redis-addr", os.Getenv("BOOKMARKS_REDIS_ADDR"), "Redis address")
	pf.StringVar(&opts.user, "redis-username", os.Getenv("BOOKMARKS_REDIS_USERNAME"), "Redis username")
	pf.StringVar(&opts.password, "redis-password", os.Getenv("BOOKMARKS_REDIS_PASSWORD"), "Redis password")
	pf.IntVar(&opts.db, "redis-db", 0, "Redis DB number")
	pf.DurationVar(&opts.timeout, "timeout", 5*time.Second, "connect timeout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached sessions and their remaining TTL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCacheList(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Delete every cached collection",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCacheFlush(cmd, opts)
			},
		},
	)

	return cmd
}

func openStore(cmd *cobra.Command, opts *cacheOptions) (*redisstore.Store, func(), error) {
	if opts.addr == "" {
		return nil, nil, fmt.Errorf("--redis-addr or BOOKMARKS_REDIS_ADDR is required")
	}

	client, err := redis.New(cmd.Context(), redis.ConnectOptions{
		Addr:           opts.addr,
		User:           opts.user,
		Password:       opts.password,
		RedisDB:        opts.db,
		DialTimeout:    opts.timeout,
		ReadTimeout:    opts.timeout,
		WriteTimeout:   opts.timeout,
		PoolSize:       2,
		ConnectTimeout: opts.timeout,
		RetryInterval:  200 * time.Millisecond,
		MaxWait:        time.Second,
		PingTimeout:    opts.timeout,
		WarnThreshold:  3,
	}, logger.New("error", true))
	if err != nil {
		return nil, nil, err
	}

	return redisstore.NewStore(client, 0), func() { utils.Close(client) }, nil
}

func runCacheList(cmd *cobra.Command, opts *cacheOptions) error {
	s, closeFn, err := openStore(cmd, opts)
	if err != nil {
		return err
	}
	defer closeFn()

	ids, err := s.SessionIDs(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		ttl, err := s.TTL(cmd.Context(), id)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\n", id, ttl.Round(time.Second)); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "%d cached sessions\n", len(ids))
	return err
}

func runCacheFlush(cmd *cobra.Command, opts *cacheOptions) error {
	s, closeFn, err := openStore(cmd, opts)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := s.Flush(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "flushed %d cached collections\n", n)
	return err
}
