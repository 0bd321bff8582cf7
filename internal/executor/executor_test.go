package executor

import (
	"strconv"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/canisterdb/engine/internal/planner"
	"github.com/canisterdb/engine/internal/predicate"
	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

// openTestDB mirrors internal/store's own in-memory badger fixture.
func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

const entity = "Item"

func seedRows(t *testing.T, primary *store.PrimaryStore, n ...int) {
	t.Helper()
	require.NoError(t, primary.WriteTxn(func(txn *badger.Txn) error {
		for _, i := range n {
			k := value.MustKey(value.Int(int64(i)))
			dk := value.DataKey{Entity: entity, Key: k}
			if err := primary.Insert(txn, dk, store.RawRow(strconv.Itoa(i))); err != nil {
				return err
			}
		}
		return nil
	}))
}

func drain(t *testing.T, s KeyStream) []int {
	t.Helper()
	var out []int
	for {
		dk, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		i, ok := dk.Key.Value().AsInt()
		require.True(t, ok)
		out = append(out, int(i))
	}
	s.Close()
	return out
}

func keyPath(kind planner.PathKind) planner.Path { return planner.Path{Kind: kind} }

func intKey(i int) value.Key { return value.MustKey(value.Int(int64(i))) }

func TestOpenFullScanAscending(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 3, 1, 2)

	plan := planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.FullScan)}
	stream, err := Open(entity, Stores{Primary: primary, Index: store.NewIndexStore(db)}, plan, Asc)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, drain(t, stream))
}

func TestOpenFullScanDescending(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 3, 1, 2)

	plan := planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.FullScan)}
	stream, err := Open(entity, Stores{Primary: primary, Index: store.NewIndexStore(db)}, plan, Desc)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 1}, drain(t, stream))
}

func TestOpenKeyRangeBounds(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3, 4, 5)

	p := planner.Path{
		Kind:  planner.KeyRange,
		Lower: planner.Bound{Present: true, Inclusive: false, Key: intKey(1)},
		Upper: planner.Bound{Present: true, Inclusive: true, Key: intKey(4)},
	}
	plan := planner.AccessPlan{Kind: planner.KindPath, Path: p}
	stream, err := Open(entity, Stores{Primary: primary, Index: store.NewIndexStore(db)}, plan, Asc)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 4}, drain(t, stream))
}

func TestOpenByKeysDedupesAndOrders(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3)

	p := planner.Path{Kind: planner.ByKeys, Keys: []value.Key{intKey(3), intKey(1), intKey(3), intKey(2)}}
	plan := planner.AccessPlan{Kind: planner.KindPath, Path: p}
	stream, err := Open(entity, Stores{Primary: primary, Index: store.NewIndexStore(db)}, plan, Asc)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, drain(t, stream))
}

func TestOpenIndexPrefix(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	index := store.NewIndexStore(db)
	seedRows(t, primary, 1, 2, 3, 4)
	seedIndexEntries(t, db, index, "by_cat", "a", 1, 3)
	seedIndexEntries(t, db, index, "by_cat", "b", 2, 4)

	p := planner.Path{Kind: planner.IndexPrefix, IndexName: "by_cat", Prefix: []value.Value{value.Text("a")}}
	plan := planner.AccessPlan{Kind: planner.KindPath, Path: p}
	stream, err := Open(entity, Stores{Primary: primary, Index: index}, plan, Asc)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, drain(t, stream))
}

func seedIndexEntries(t *testing.T, db *badger.DB, index *store.IndexStore, indexName, category string, ids ...int) {
	t.Helper()
	fp, err := value.NewFingerprint(value.Text(category))
	require.NoError(t, err)
	ik := value.IndexKey{IndexID: indexName, Arity: 1, Fingerprints: []value.Fingerprint{fp}}
	for _, i := range ids {
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			_, insErr := index.InsertIndexEntry(txn, ik, indexName, false, intKey(i))
			return insErr
		}))
	}
}

func byKeysPlan(keys ...int) planner.AccessPlan {
	ks := make([]value.Key, len(keys))
	for i, k := range keys {
		ks[i] = intKey(k)
	}
	return planner.AccessPlan{Kind: planner.KindPath, Path: planner.Path{Kind: planner.ByKeys, Keys: ks}}
}

func TestUnionDedupesAcrossChildren(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3, 4, 5)

	plan := planner.AccessPlan{
		Kind:     planner.KindUnion,
		Children: []planner.AccessPlan{byKeysPlan(1, 3, 5), byKeysPlan(2, 3, 4)},
	}
	stream, err := Open(entity, Stores{Primary: primary, Index: store.NewIndexStore(db)}, plan, Asc)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5}, drain(t, stream))
}

func TestIntersectionOnlyCommonKeys(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3, 4, 5)

	plan := planner.AccessPlan{
		Kind:     planner.KindIntersection,
		Children: []planner.AccessPlan{byKeysPlan(1, 2, 3, 4), byKeysPlan(2, 4, 5)},
	}
	stream, err := Open(entity, Stores{Primary: primary, Index: store.NewIndexStore(db)}, plan, Asc)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, drain(t, stream))
}

func TestIntersectionEmptyWhenOneChildEmpty(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3)

	plan := planner.AccessPlan{
		Kind:     planner.KindIntersection,
		Children: []planner.AccessPlan{byKeysPlan(1, 2, 3), byKeysPlan()},
	}
	stream, err := Open(entity, Stores{Primary: primary, Index: store.NewIndexStore(db)}, plan, Asc)
	require.NoError(t, err)
	require.Empty(t, drain(t, stream))
}

func TestClassifyRoute(t *testing.T) {
	require.Equal(t, RoutePrimaryKey, ClassifyRoute(planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.ByKey)}))
	require.Equal(t, RoutePrimaryScan, ClassifyRoute(planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.FullScan)}))
	require.Equal(t, RouteIndexRange, ClassifyRoute(planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.IndexRange)}))

	pushedDown := planner.AccessPlan{Kind: planner.KindPath, Path: planner.Path{Kind: planner.IndexPrefix, SecondaryOrderPushdown: true}}
	require.Equal(t, RouteSecondaryPrefix, ClassifyRoute(pushedDown))

	notPushedDown := planner.AccessPlan{Kind: planner.KindPath, Path: planner.Path{Kind: planner.IndexPrefix}}
	require.Equal(t, RouteGeneric, ClassifyRoute(notPushedDown))

	composite := planner.AccessPlan{Kind: planner.KindUnion, Children: []planner.AccessPlan{byKeysPlan(1), byKeysPlan(2)}}
	require.Equal(t, RouteComposite, ClassifyRoute(composite))

	withFullScanChild := planner.AccessPlan{
		Kind: planner.KindUnion,
		Children: []planner.AccessPlan{
			byKeysPlan(1),
			{Kind: planner.KindPath, Path: keyPath(planner.FullScan)},
		},
	}
	require.Equal(t, RouteGeneric, ClassifyRoute(withFullScanChild))
}

func TestPageAndResumeSuffixProperty(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3, 4, 5)

	fullScan := planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.FullScan)}
	s := Stores{Primary: primary, Index: store.NewIndexStore(db)}

	stream, err := Open(entity, s, fullScan, Asc)
	require.NoError(t, err)
	page, next, hasMore, err := Page(stream, 0, 2)
	require.NoError(t, err)
	require.True(t, hasMore)
	require.Equal(t, []int{1, 2}, dataKeysToInts(t, page))
	require.NotNil(t, next)

	resumed, err := Open(entity, s, fullScan, Asc)
	require.NoError(t, err)
	resumedStream := Resume(resumed, next.Last, Asc)
	page2, next2, hasMore2, err := Page(resumedStream, 0, 2)
	require.NoError(t, err)
	require.True(t, hasMore2)
	require.Equal(t, []int{3, 4}, dataKeysToInts(t, page2))
	require.NotNil(t, next2)

	resumed2, err := Open(entity, s, fullScan, Asc)
	require.NoError(t, err)
	lastStream := Resume(resumed2, next2.Last, Asc)
	page3, _, hasMore3, err := Page(lastStream, 0, 2)
	require.NoError(t, err)
	require.False(t, hasMore3)
	require.Equal(t, []int{5}, dataKeysToInts(t, page3))
}

func dataKeysToInts(t *testing.T, keys []value.DataKey) []int {
	t.Helper()
	out := make([]int, len(keys))
	for i, k := range keys {
		v, ok := k.Key.Value().AsInt()
		require.True(t, ok)
		out[i] = int(v)
	}
	return out
}

func TestCursorEncodeDecodeRoundTrips(t *testing.T) {
	c := Cursor{Entity: entity, Last: intKey(7)}
	decoded, err := Decode(Encode(c))
	require.NoError(t, err)
	require.Equal(t, c.Entity, decoded.Entity)
	require.Equal(t, value.Equal, value.CanonicalCmp(c.Last.Value(), decoded.Last.Value()))
}

func rowDecoder(row store.RawRow) (predicate.Row, error) {
	n, err := strconv.Atoi(string(row))
	if err != nil {
		return nil, err
	}
	return predicate.Row{"n": value.Int(int64(n))}, nil
}

func TestExecuteAggregateCount(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3, 4, 5)
	s := Stores{Primary: primary, Index: store.NewIndexStore(db)}

	fullScan := planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.FullScan)}
	stream, err := Open(entity, s, fullScan, Asc)
	require.NoError(t, err)

	res, err := ExecuteAggregate(stream, primary, AggregateQuery{Kind: Count, Dir: Asc})
	require.NoError(t, err)
	require.EqualValues(t, 5, res.Count)
}

func TestExecuteAggregateMinMaxID(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	seedRows(t, primary, 1, 2, 3, 4, 5)
	s := Stores{Primary: primary, Index: store.NewIndexStore(db)}

	fullScanAsc := planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.FullScan)}
	streamAsc, err := Open(entity, s, fullScanAsc, Asc)
	require.NoError(t, err)
	res, err := ExecuteAggregate(streamAsc, primary, AggregateQuery{Kind: MinID, Dir: Asc, Decoder: rowDecoder})
	require.NoError(t, err)
	require.True(t, res.HasValue)
	v, _ := res.Key.Value().AsInt()
	require.EqualValues(t, 1, v)

	streamDesc, err := Open(entity, s, fullScanAsc, Desc)
	require.NoError(t, err)
	res2, err := ExecuteAggregate(streamDesc, primary, AggregateQuery{Kind: MaxID, Dir: Desc, Decoder: rowDecoder})
	require.NoError(t, err)
	require.True(t, res2.HasValue)
	v2, _ := res2.Key.Value().AsInt()
	require.EqualValues(t, 5, v2)
}

func TestExecuteAggregateFieldMinMax(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	// Rows whose "n" field is deliberately NOT correlated with key
	// order, so a FieldMax that just tracked stream position would
	// return the wrong row.
	fieldByKey := map[int]int{1: 30, 2: 90, 3: 10, 4: 20, 5: 40}
	require.NoError(t, primary.WriteTxn(func(txn *badger.Txn) error {
		for key, n := range fieldByKey {
			dk := value.DataKey{Entity: entity, Key: intKey(key)}
			if err := primary.Insert(txn, dk, store.RawRow(strconv.Itoa(n))); err != nil {
				return err
			}
		}
		return nil
	}))
	s := Stores{Primary: primary, Index: store.NewIndexStore(db)}

	fullScan := planner.AccessPlan{Kind: planner.KindPath, Path: keyPath(planner.FullScan)}
	stream, err := Open(entity, s, fullScan, Asc)
	require.NoError(t, err)

	res, err := ExecuteAggregate(stream, primary, AggregateQuery{
		Kind: FieldMax, Field: "n", Dir: Asc, Decoder: rowDecoder,
	})
	require.NoError(t, err)
	require.True(t, res.HasValue)
	n, _ := res.Row["n"].AsInt()
	require.EqualValues(t, 90, n)

	stream2, err := Open(entity, s, fullScan, Asc)
	require.NoError(t, err)
	res2, err := ExecuteAggregate(stream2, primary, AggregateQuery{
		Kind: FieldMin, Field: "n", Dir: Asc, Decoder: rowDecoder,
	})
	require.NoError(t, err)
	require.True(t, res2.HasValue)
	n2, _ := res2.Row["n"].AsInt()
	require.EqualValues(t, 10, n2)
}

func TestExecuteAggregateMissingRowPolicy(t *testing.T) {
	db := openTestDB(t)
	primary := store.NewPrimaryStore(db)
	index := store.NewIndexStore(db)
	seedRows(t, primary, 1, 2)
	// A stale index entry pointing at a primary key with no backing row.
	seedIndexEntries(t, db, index, "by_cat", "a", 1, 2, 99)

	p := planner.Path{Kind: planner.IndexPrefix, IndexName: "by_cat", Prefix: []value.Value{value.Text("a")}}
	plan := planner.AccessPlan{Kind: planner.KindPath, Path: p}

	streamIgnore, err := Open(entity, Stores{Primary: primary, Index: index}, plan, Asc)
	require.NoError(t, err)
	res, err := ExecuteAggregate(streamIgnore, primary, AggregateQuery{
		Kind: Count, Dir: Asc, Decoder: rowDecoder, MissingRow: Ignore,
		Residual: predicate.True(), HasResidual: true,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Count)

	streamError, err := Open(entity, Stores{Primary: primary, Index: index}, plan, Asc)
	require.NoError(t, err)
	_, err = ExecuteAggregate(streamError, primary, AggregateQuery{
		Kind: Count, Dir: Asc, Decoder: rowDecoder, MissingRow: Error,
		Residual: predicate.True(), HasResidual: true,
	})
	require.Error(t, err)
	var corrupt *store.Corruption
	require.ErrorAs(t, err, &corrupt)
}

func TestExplainReportsRouteAndPushdown(t *testing.T) {
	p := planner.Path{Kind: planner.IndexPrefix, IndexName: "by_cat", SecondaryOrderPushdown: true}
	plan := planner.AccessPlan{Kind: planner.KindPath, Path: p}
	ex := Explain(plan)
	require.Equal(t, RouteSecondaryPrefix, ex.Route)
	require.Equal(t, "by_cat", ex.IndexName)
	require.True(t, ex.OrderPushdown)
}
