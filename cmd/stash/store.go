package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gofirestore "cloud.google.com/go/firestore"
	"github.com/go-zookeeper/zk"
	consulapi "github.com/hashicorp/consul/api"
	"github.com/jackc/pgx/v5/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	goredis "github.com/redis/go-redis/v9"
	"github.com/zoobzio/stash"
	"github.com/zoobzio/stash/pkg/consul"
	"github.com/zoobzio/stash/pkg/etcd"
	"github.com/zoobzio/stash/pkg/file"
	"github.com/zoobzio/stash/pkg/firestore"
	"github.com/zoobzio/stash/pkg/kubernetes"
	"github.com/zoobzio/stash/pkg/nats"
	"github.com/zoobzio/stash/pkg/postgres"
	"github.com/zoobzio/stash/pkg/redis"
	"github.com/zoobzio/stash/pkg/sqlite"
	"github.com/zoobzio/stash/pkg/zookeeper"
	clientv3 "go.etcd.io/etcd/client/v3"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// openStore connects to the configured backend. The returned function
// releases the connection.
func openStore(ctx context.Context, cfg Config) (stash.Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "file":
		store, err := file.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "sqlite":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case "redis":
		if cfg.Addr == "" {
			return nil, nil, errors.New("STASH_ADDR is required for redis")
		}
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs: strings.Split(cfg.Addr, ","),
		})
		return redis.New(client, redis.WithPrefix(cfg.Prefix)), func() { _ = client.Close() }, nil

	case "postgres":
		if cfg.DSN == "" {
			return nil, nil, errors.New("STASH_DSN is required for postgres")
		}
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		var opts []postgres.Option
		if cfg.Prefix != "" {
			opts = append(opts, postgres.WithTable(cfg.Prefix))
		}
		store := postgres.New(pool, opts...)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case "etcd":
		if cfg.Addr == "" {
			return nil, nil, errors.New("STASH_ADDR is required for etcd")
		}
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   strings.Split(cfg.Addr, ","),
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect etcd: %w", err)
		}
		return etcd.New(client, etcd.WithPrefix(cfg.Prefix)), func() { _ = client.Close() }, nil

	case "consul":
		consulCfg := consulapi.DefaultConfig()
		if cfg.Addr != "" {
			consulCfg.Address = cfg.Addr
		}
		client, err := consulapi.NewClient(consulCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect consul: %w", err)
		}
		return consul.New(client, consul.WithPrefix(cfg.Prefix)), noop, nil

	case "nats":
		addr := cfg.Addr
		if addr == "" {
			addr = natsgo.DefaultURL
		}
		nc, err := natsgo.Connect(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		kv, err := natsBucket(ctx, nc, cfg.Prefix)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return nats.New(kv), nc.Close, nil

	case "zookeeper":
		if cfg.Addr == "" {
			return nil, nil, errors.New("STASH_ADDR is required for zookeeper")
		}
		conn, _, err := zk.Connect(strings.Split(cfg.Addr, ","), 5*time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("connect zookeeper: %w", err)
		}
		root := cfg.Prefix
		if root == "" {
			root = "/stash"
		}
		return zookeeper.New(conn, root), conn.Close, nil

	case "firestore":
		if cfg.Project == "" {
			return nil, nil, errors.New("STASH_PROJECT is required for firestore")
		}
		client, err := gofirestore.NewClient(ctx, cfg.Project)
		if err != nil {
			return nil, nil, fmt.Errorf("connect firestore: %w", err)
		}
		collection := cfg.Prefix
		if collection == "" {
			collection = "stash"
		}
		return firestore.New(client, collection), func() { _ = client.Close() }, nil

	case "kubernetes":
		restCfg, err := clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
		if err != nil {
			return nil, nil, fmt.Errorf("load kubeconfig: %w", err)
		}
		client, err := k8s.NewForConfig(restCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create kubernetes client: %w", err)
		}
		name := cfg.Prefix
		if name == "" {
			name = "stash"
		}
		return kubernetes.New(client, cfg.Namespace, name), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// natsBucket opens the named bucket, creating it if needed.
func natsBucket(ctx context.Context, nc *natsgo.Conn, bucket string) (jetstream.KeyValue, error) {
	if bucket == "" {
		bucket = "stash"
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream: %w", err)
	}
	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	}
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", bucket, err)
	}
	return kv, nil
}
