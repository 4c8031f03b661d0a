// Package kind classifies Nostr event kinds into their storage category and
// carries a small human-readable name table for diagnostics, in the manner of
// the teacher's own kind package, adapted to expose the four-way Category
// spec.md's storage model requires instead of a set of ad hoc booleans.
package kind

// Category is the storage-semantics classification of an event kind.
type Category int

const (
	Regular Category = iota
	Replaceable
	Ephemeral
	Addressable
)

func (c Category) String() string {
	switch c {
	case Replaceable:
		return "replaceable"
	case Ephemeral:
		return "ephemeral"
	case Addressable:
		return "addressable"
	default:
		return "regular"
	}
}

// Range boundaries from spec.md §3.
const (
	ReplaceableRangeStart = 10000
	ReplaceableRangeEnd   = 19999
	EphemeralRangeStart   = 20000
	EphemeralRangeEnd     = 29999
	AddressableRangeStart = 30000
	AddressableRangeEnd   = 39999
)

// Well-known kind numbers that fall outside the generic ranges but carry
// fixed classification regardless (ProfileMetadata and FollowList are
// replaceable despite their low numeric value).
const (
	ProfileMetadata = 0
	TextNote        = 1
	RecommendRelay  = 2
	FollowList      = 3
	EventDeletion   = 5
)

// Classify maps a numeric kind to its storage Category, per the range table
// in spec.md §3: Regular = {1,2} ∪ [4,44] ∪ [1000,9999]; Replaceable =
// {0,3} ∪ [10000,19999]; Ephemeral = [20000,29999]; Addressable =
// [30000,39999]; any other value collapses to Regular.
func Classify(k uint16) Category {
	switch {
	case k == ProfileMetadata || k == FollowList:
		return Replaceable
	case k >= ReplaceableRangeStart && k <= ReplaceableRangeEnd:
		return Replaceable
	case k >= EphemeralRangeStart && k <= EphemeralRangeEnd:
		return Ephemeral
	case k >= AddressableRangeStart && k <= AddressableRangeEnd:
		return Addressable
	default:
		return Regular
	}
}

// ShouldStore reports whether events of this category are ever persisted.
// Ephemeral events are fanned out live and never written to the Primary
// Event Log.
func ShouldStore(c Category) bool { return c != Ephemeral }

// IsReplaceable reports whether the category keeps at most one row per
// identity key (plain replaceable by (pubkey,kind), or addressable by
// (pubkey,kind,d-tag)).
func IsReplaceable(c Category) bool { return c == Replaceable || c == Addressable }

// Name returns a human-readable label for well-known kind numbers, and
// "unknown" for any other kind. Used only for logging/diagnostics.
func Name(k uint16) string {
	if n, ok := names[k]; ok {
		return n
	}
	return "unknown"
}

var names = map[uint16]string{
	ProfileMetadata:     "ProfileMetadata",
	TextNote:            "TextNote",
	RecommendRelay:      "RecommendRelay",
	FollowList:          "FollowList",
	4:                   "EncryptedDirectMessage",
	EventDeletion:       "EventDeletion",
	6:                   "Repost",
	7:                   "Reaction",
	8:                   "BadgeAward",
	1984:                "Reporting",
	10000:               "MuteList",
	10002:               "RelayListMetadata",
	20000:               "EphemeralRangeStart",
	23194:               "NWCWalletRequest",
	23195:               "NWCWalletResponse",
	30000:               "CategorizedPeopleList",
	30023:               "LongFormContent",
	30311:               "LiveEvent",
}
