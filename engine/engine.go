// Package engine is the public façade wiring the value, schema, store,
// predicate, planner, executor, commit, metrics, and config packages
// into the embedded, single-writer database described by spec.md §6:
// one *badger.DB, recovered on open, exposed through entity handles that
// know how to validate, plan, route, and commit against it.
package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/canisterdb/engine/internal/commit"
	"github.com/canisterdb/engine/internal/config"
	"github.com/canisterdb/engine/internal/executor"
	"github.com/canisterdb/engine/internal/metrics"
	"github.com/canisterdb/engine/internal/schema"
	"github.com/canisterdb/engine/internal/store"
)

// Engine owns the shared *badger.DB and every entity handle registered
// against it. spec.md §5's "single writer" scheduling model is enforced
// here with a plain mutex: only one save/delete executor holds write
// access at a time, the same discipline
// dynamodb/ddbstore/store_transact_write_items.go gets for free from
// DynamoDB's own item-level locking, made explicit since badger alone
// doesn't serialize cross-transaction command sequences for us.
type Engine struct {
	db      *badger.DB
	primary *store.PrimaryStore
	index   *store.IndexStore
	sink    metrics.Sink

	missingRow executor.MissingRowPolicy

	mu sync.Mutex

	handles                map[string]*EntityHandle
	indexOwner             map[string]string
	reverseIndexesByTarget map[string][]string
}

// Open opens (or creates) the badger database described by opts,
// replays any half-applied commit marker left from a prior crash
// (spec.md §6's ensure_recovered_for_write, run "before any user
// write"), and returns a ready Engine.
func Open(opts config.EngineOptions) (*Engine, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.DataDir)
	}
	bopts = bopts.WithLogger(nil)
	if opts.ValueLogFileSize > 0 {
		bopts = bopts.WithValueLogFileSize(opts.ValueLogFileSize)
	}
	if opts.MemTableSize > 0 {
		bopts = bopts.WithMemTableSize(opts.MemTableSize)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("engine: open badger: %w", err)
	}

	if err := commit.Recover(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: recovery sweep: %w", err)
	}

	return &Engine{
		db:                     db,
		primary:                store.NewPrimaryStore(db),
		index:                  store.NewIndexStore(db),
		sink:                   metrics.Nop{},
		missingRow:             missingRowFromConfig(opts.DefaultMissingRowPolicy),
		handles:                make(map[string]*EntityHandle),
		indexOwner:             make(map[string]string),
		reverseIndexesByTarget: make(map[string][]string),
	}, nil
}

func missingRowFromConfig(p config.MissingRowPolicy) executor.MissingRowPolicy {
	if p == config.MissingRowIgnore {
		return executor.Ignore
	}
	return executor.Error
}

// Close releases the underlying badger database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// SetSink installs the metrics.Sink every subsequent query and commit
// records through. A nil sink restores the default metrics.Nop{}.
func (e *Engine) SetSink(sink metrics.Sink) {
	if sink == nil {
		sink = metrics.Nop{}
	}
	e.sink = sink
}

// CommitMarkerPresent reports whether a commit marker is currently
// persisted, spec.md §6's commit_marker_present() for tooling and tests.
func (e *Engine) CommitMarkerPresent() (bool, error) {
	return commit.Present(e.db)
}

func (e *Engine) stores() executor.Stores {
	return executor.Stores{Primary: e.primary, Index: e.index}
}

// reverseIndexName derives the deterministic store-level index
// identifier for one strong relation, read by both the save path
// (which maintains the posting) and the delete path (which consults it
// via commit.EnforceNoReverseRelation). Qualified by target entity,
// referrer entity, and field so two different relations pointing at the
// same target never collide.
func reverseIndexName(referrerEntity, field, targetEntity string) string {
	return fmt.Sprintf("__reverse__%s__%s__%s", targetEntity, referrerEntity, field)
}

// RegisterEntity validates ent's schema fingerprint against whatever
// was last persisted in its registry slot (spec.md §6's "schema
// metadata lives in its own registry slot"), records its strong
// relations' reverse-index names for the delete path to consult, and
// returns a handle bound to codec for every save/delete/query executor
// to use.
//
// Index names are this registry's only namespacing seam: schema.Index
// enforces per-entity uniqueness, but the store keyspace underneath
// IndexPrefix/IndexRange addresses an index purely by the string the
// planner copies from schema.Index.Name (internal/planner/lower.go),
// with no entity qualifier of its own. RegisterEntity therefore treats
// index names as required to be unique across the whole registered
// schema, not just within one entity — the same way a DynamoDB GSI name
// is table-scoped but, in this single flat keyspace, has no table to be
// scoped by.
func (e *Engine) RegisterEntity(ent *schema.Entity, codec RowCodec) (*EntityHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.handles[ent.Name]; exists {
		return nil, fmt.Errorf("engine: entity %q already registered", ent.Name)
	}
	for _, idx := range ent.Indexes {
		if owner, exists := e.indexOwner[idx.Name]; exists {
			return nil, fmt.Errorf("engine: index name %q already used by entity %q; index names must be globally unique", idx.Name, owner)
		}
	}

	if err := checkSchemaFingerprint(e.db, ent); err != nil {
		return nil, err
	}

	for _, idx := range ent.Indexes {
		e.indexOwner[idx.Name] = ent.Name
	}
	for _, rel := range ent.RelationsOf() {
		name := reverseIndexName(ent.Name, rel.Field, rel.TargetEntity)
		e.reverseIndexesByTarget[rel.TargetEntity] = append(e.reverseIndexesByTarget[rel.TargetEntity], name)
	}

	h := &EntityHandle{entity: ent, view: schema.NewView(ent), codec: codec}
	e.handles[ent.Name] = h
	return h, nil
}

// schemaFingerprint hashes the parts of an entity's shape that change
// the on-disk encoding if altered: field kinds, primary key, and index
// definitions. Field/index ordering is significant by design — reordering
// fields is itself a shape change worth flagging, matching spec.md §6's
// "any change requires a version bump and a migration" for the
// canonical encoding these fields feed into.
func schemaFingerprint(ent *schema.Entity) []byte {
	h := fnv.New64a()
	fmt.Fprintf(h, "entity:%s;pk:%s;", ent.Name, ent.PrimaryKey)
	for _, f := range ent.Fields {
		fmt.Fprintf(h, "field:%s:%d:%d:%d;", f.Name, f.Kind.Scalar, f.Kind.Collection, f.Kind.Element)
	}
	for _, idx := range ent.Indexes {
		fmt.Fprintf(h, "index:%s:%v:%v;", idx.Name, idx.Fields, idx.Unique)
	}
	sum := h.Sum64()
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, sum)
	return out
}

func checkSchemaFingerprint(db *badger.DB, ent *schema.Entity) error {
	want := schemaFingerprint(ent)
	key := store.SchemaRegistryKey(ent.Name)

	var existing []byte
	err := db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(key)
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			existing = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("engine: read schema registry for %q: %w", ent.Name, err)
	}
	if existing == nil {
		return db.Update(func(txn *badger.Txn) error { return txn.Set(key, want) })
	}
	if !bytes.Equal(existing, want) {
		return fmt.Errorf("engine: entity %q schema fingerprint changed since last open; migration required", ent.Name)
	}
	return nil
}
