package value

// CoercionFamily groups kinds that may legally coerce into one another
// under a Strict/NumericWiden/TextCasefold/CollectionElement coercion
// spec (see internal/predicate). Every Kind belongs to exactly one
// family; the predicate engine's legality matrix is keyed on
// (field family, literal family), never on a per-Kind switch.
type CoercionFamily uint8

const (
	FamilyNull CoercionFamily = iota
	FamilyNumeric
	FamilyText
	FamilyCollection
	FamilyIdentifier
	FamilyTemporal
	FamilyBool
	FamilyUnit
)

// Capability is the fixed, per-Kind capability row consulted by the
// planner, predicate engine, and index encoder. It is the single source
// of truth for "can this kind be compared numerically," "does it have a
// total order," and "can it appear in an index key" — no call site is
// permitted to re-derive these facts with an ad-hoc type switch (Design
// Notes: registry-driven capability tables).
type Capability struct {
	Family           CoercionFamily
	NumericComparable bool
	Orderable        bool
	StorageKey       bool
}

// CanonicalRank is the fixed ordering byte used as the first component
// of CanonicalCmp: values of different kinds always compare by rank
// before falling through to a variant-specific total order.
func CanonicalRank(k Kind) uint8 {
	return rankTable[k]
}

var rankTable = map[Kind]uint8{
	KindNull:       0,
	KindUnit:       1,
	KindBool:       2,
	KindInt:        3,
	KindUint:       4,
	KindBigInt:     5,
	KindBigUint:    6,
	KindDecimal:    7,
	KindFloat32:    8,
	KindFloat64:    9,
	KindDuration:   10,
	KindTimestamp:  11,
	KindDate:       12,
	KindUlid:       13,
	KindPrincipal:  14,
	KindSubaccount: 15,
	KindAccount:    16,
	KindText:       17,
	KindBlob:       18,
	KindList:       19,
	KindMap:        20,
}

var capabilityTable = map[Kind]Capability{
	KindNull:       {Family: FamilyNull, NumericComparable: false, Orderable: false, StorageKey: false},
	KindUnit:       {Family: FamilyUnit, NumericComparable: false, Orderable: true, StorageKey: true},
	KindBool:       {Family: FamilyBool, NumericComparable: false, Orderable: true, StorageKey: true},
	KindInt:        {Family: FamilyNumeric, NumericComparable: true, Orderable: true, StorageKey: true},
	KindUint:       {Family: FamilyNumeric, NumericComparable: true, Orderable: true, StorageKey: true},
	KindBigInt:     {Family: FamilyNumeric, NumericComparable: true, Orderable: true, StorageKey: true},
	KindBigUint:    {Family: FamilyNumeric, NumericComparable: true, Orderable: true, StorageKey: true},
	KindDecimal:    {Family: FamilyNumeric, NumericComparable: true, Orderable: true, StorageKey: true},
	KindFloat32:    {Family: FamilyNumeric, NumericComparable: true, Orderable: true, StorageKey: true},
	KindFloat64:    {Family: FamilyNumeric, NumericComparable: true, Orderable: true, StorageKey: true},
	KindTimestamp:  {Family: FamilyTemporal, NumericComparable: false, Orderable: true, StorageKey: true},
	KindDuration:   {Family: FamilyTemporal, NumericComparable: true, Orderable: true, StorageKey: true},
	KindDate:       {Family: FamilyTemporal, NumericComparable: false, Orderable: true, StorageKey: true},
	KindPrincipal:  {Family: FamilyIdentifier, NumericComparable: false, Orderable: true, StorageKey: true},
	KindSubaccount: {Family: FamilyIdentifier, NumericComparable: false, Orderable: true, StorageKey: true},
	KindAccount:    {Family: FamilyIdentifier, NumericComparable: false, Orderable: true, StorageKey: true},
	KindText:       {Family: FamilyText, NumericComparable: false, Orderable: true, StorageKey: true},
	KindUlid:       {Family: FamilyIdentifier, NumericComparable: false, Orderable: true, StorageKey: true},
	KindBlob:       {Family: FamilyCollection, NumericComparable: false, Orderable: false, StorageKey: false},
	KindList:       {Family: FamilyCollection, NumericComparable: false, Orderable: false, StorageKey: false},
	KindMap:        {Family: FamilyCollection, NumericComparable: false, Orderable: false, StorageKey: false},
}

// Capabilities looks up the fixed capability row for a Kind. ok is false
// only for an unregistered Kind value (never constructible through the
// exported Value constructors).
func Capabilities(k Kind) (Capability, bool) {
	c, ok := capabilityTable[k]
	return c, ok
}
