// Package stash provides persisted, self-synchronizing key-value bindings.
//
// Many independent consumers can bind to the same key. A write through any
// binding is persisted to a Store and immediately delivered to every other
// binding of that key in the process, without polling and without each
// binding re-reading the store.
//
// # Components
//
//   - Codec: deterministic, reversible value <-> bytes mapping (JSONCodec, YAMLCodec)
//   - Store: synchronous Get/Set/Delete over the durable medium (MemoryStore, pkg/*)
//   - Registry: per-key copy-on-write subscriber lists with snapshot publishing
//   - Cell: reconciles a cached value against the store, deduplicates and publishes writes
//   - Binding: a consumer's live view; adopts published values and notifies listeners
//
// # Data Flow
//
//	Bind → Cell.Read → consumer renders
//	Set/Update → reconcile → encode → dedup → Store.Set → Registry.Publish
//	Registry.Publish → every Binding of the key (writer included) → OnChange
//
// Reads compare the stored encoding with the cell's cached snapshot, so an
// entry changed outside the registry (another process, a manual edit) is
// decoded and adopted on the next read. Writes that encode to the current
// value are dropped: no store write, no notification.
//
// # Absence
//
// A key without a stored entry reads as (zero value, false). Absence is
// tracked separately from any encoded value, so a stored JSON null is not
// the same as "not set". An empty stored entry also reads as absent. Delete
// returns a key to the absent state.
//
// # Errors
//
// DecodeError, PersistError, LoadError and EncodeError are returned to the
// immediate caller and never swallowed. A failed persist leaves every
// binding on the pre-write value and notifies no one. There is no retry.
//
// # Backends
//
// Store implementations are available in pkg/:
//
//   - pkg/file: one file per key in a directory
//   - pkg/sqlite: SQLite table (modernc.org/sqlite)
//   - pkg/redis: Redis strings
//   - pkg/postgres: PostgreSQL table (pgx)
//   - pkg/etcd: etcd keys
//   - pkg/consul: Consul KV
//   - pkg/nats: NATS JetStream KV
//   - pkg/zookeeper: ZooKeeper znodes
//   - pkg/firestore: Firestore documents
//   - pkg/kubernetes: ConfigMap or Secret data keys
//
// # Example
//
//	type Prefs struct {
//	    Theme string `json:"theme"`
//	}
//
//	store := stash.NewMemoryStore()
//
//	header, _ := stash.Bind[Prefs](ctx, "prefs", store)
//	sidebar, _ := stash.Bind[Prefs](ctx, "prefs", store)
//	defer header.Close()
//	defer sidebar.Close()
//
//	sidebar.OnChange(func(p Prefs, ok bool) {
//	    log.Printf("sidebar sees theme %q", p.Theme)
//	})
//
//	header.Set(ctx, Prefs{Theme: "dark"}) // sidebar sees theme "dark"
//
// # Observability
//
// Cells, bindings and the registry emit capitan signals (see signals.go).
// Hook them to log or trace:
//
//	capitan.Hook(stash.CellPersistFailed, func(_ context.Context, e *capitan.Event) {
//	    key, _ := stash.KeyKey.From(e)
//	    msg, _ := stash.KeyError.From(e)
//	    log.Printf("persist %s failed: %s", key, msg)
//	})
package stash
