// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	etcdbackend "github.com/tochemey/sharedchain/backend/etcd"
	redisbackend "github.com/tochemey/sharedchain/backend/redis"
	"github.com/tochemey/sharedchain/chain"
	"github.com/tochemey/sharedchain/log"
)

const (
	// Wrap is the number of characters to wrap the help text at
	Wrap int = 50

	envPrefix = "sharedchain"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var (
		lines     []string
		line      strings.Builder
		lineWidth int
	)

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			line.WriteString(" ")
			lineWidth++
		}

		line.WriteString(word)
		lineWidth += len(word)
	}

	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// setupChainFlags adds the connection flags shared by every chain command
func setupChainFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("backend", chain.BackendEtcd, WrapString("The store holding the chain (etcd, redis, memory)"))
	flags.String("prefix", "sharedchain", WrapString("The common prefix of the chain, data and extra data keys"))
	flags.Bool("date", false, WrapString("Whether to add the current date to the key prefixes, starting a new chain every day"))
	flags.String("head", "head", WrapString("The id of the head node"))
	flags.Bool("separate-data", false, WrapString("Whether to store the node payloads apart from the pointers (etcd only)"))
	flags.Bool("compress", false, WrapString("Whether node payloads are zstd compressed, every writer of the chain must agree"))

	flags.String("etcd-endpoints", "127.0.0.1:2379", WrapString("Comma separated list of etcd endpoints"))
	flags.String("etcd-namespace", "", WrapString("Optional namespace prefixing every etcd key"))
	flags.String("etcd-username", "", WrapString("The etcd user name"))
	flags.String("etcd-password", "", WrapString("The etcd password"))

	flags.String("redis-addr", "127.0.0.1:6379", WrapString("The address of the redis server used as backend"))
	flags.String("redis-password", "", WrapString("The redis password"))
	flags.Int("redis-db", 0, WrapString("The redis database"))

	flags.String("cache-addr", "", WrapString("The address of the redis server duplicating the chain"))
	flags.Bool("cache-read", false, WrapString("Whether to read nodes from the cache first"))
	flags.Bool("cache-write", false, WrapString("Whether to duplicate every append to the cache"))
	flags.Bool("cache-local", false, WrapString("Whether to use an in-process cache instead of redis"))
	flags.Duration("cache-ttl", 0, WrapString("How long cached nodes are kept, zero keeps them forever"))

	flags.String("notify-driver", "", WrapString("Announce appends through redis or nats"))
	flags.String("notify-addr", "", WrapString("The address of the notification server"))
	flags.String("notify-channel", "", WrapString("The channel or subject of the notifications, defaults to the chain prefix"))

	flags.Int("max-attempts", 0, WrapString("How many times an append is tried, zero retries until it commits"))
	flags.Duration("retry-delay", 10*time.Millisecond, WrapString("The delay between two append attempts"))
	flags.Duration("timeout", 10*time.Second, WrapString("The timeout of a command"))
	flags.String("log-level", "warn", WrapString("The log level (debug, info, warn, error)"))
}

// initConfig loads the env files and the environment into v
func initConfig(v *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// bindCommandFlags binds the flags of cmd, its own and the inherited ones
func bindCommandFlags(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return err
	}
	return v.BindPFlags(cmd.Flags())
}

// chainConfig builds the chain configuration out of v
func chainConfig(v *viper.Viper) *chain.Config {
	config := chain.DefaultConfig(v.GetString("prefix"), v.GetBool("date"))
	config.Backend = v.GetString("backend")
	config.HeadID = v.GetString("head")
	config.SeparateDataStorage = v.GetBool("separate-data")

	config.Etcd = &etcdbackend.Config{
		Endpoints: splitList(v.GetString("etcd-endpoints")),
		Namespace: v.GetString("etcd-namespace"),
		Username:  v.GetString("etcd-username"),
		Password:  v.GetString("etcd-password"),
	}

	config.Redis = &redisbackend.Config{
		Addr:     v.GetString("redis-addr"),
		Password: v.GetString("redis-password"),
		DB:       v.GetInt("redis-db"),
	}

	config.Cache = chain.CacheConfig{
		Addr:         v.GetString("cache-addr"),
		ReadThrough:  v.GetBool("cache-read"),
		WriteThrough: v.GetBool("cache-write"),
		InProcess:    v.GetBool("cache-local"),
		TTL:          v.GetDuration("cache-ttl"),
	}

	config.Notify = chain.NotifyConfig{
		Driver:  v.GetString("notify-driver"),
		Addr:    v.GetString("notify-addr"),
		Channel: v.GetString("notify-channel"),
	}

	config.Retry = chain.RetryPolicy{
		MaxAttempts:  v.GetInt("max-attempts"),
		InitialDelay: v.GetDuration("retry-delay"),
	}
	return config
}

// newLogger returns a zap logger writing to stderr
func newLogger(v *viper.Viper) log.Logger {
	return log.NewZap(log.ParseLevel(v.GetString("log-level")), os.Stderr)
}

func splitList(value string) []string {
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
