package domain

// Role is a level in the fixed onboarding hierarchy. Lower value = more senior.
type Role int

const (
	RolePlatform Role = iota
	RoleWhiteLabel
	RoleMasterDistributor
	RoleDistributor
	RoleRetailer
)

var roleNames = map[Role]string{
	RolePlatform:          "PLATFORM",
	RoleWhiteLabel:        "WHITE_LABEL",
	RoleMasterDistributor: "MASTER_DISTRIBUTOR",
	RoleDistributor:       "DISTRIBUTOR",
	RoleRetailer:          "RETAILER",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether r is one of the five hierarchy levels.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// SeniorTo reports whether r sits strictly above other in the hierarchy.
func (r Role) SeniorTo(other Role) bool {
	return r < other
}

// ParseRole maps the wire representation back to a Role.
func ParseRole(s string) (Role, bool) {
	for role, name := range roleNames {
		if name == s {
			return role, true
		}
	}
	return 0, false
}

// Direction is the transaction direction of a channel.
type Direction string

const (
	DirectionPayin  Direction = "PAYIN"
	DirectionPayout Direction = "PAYOUT"
)

// ChargeType selects how a gateway prices payouts.
type ChargeType string

const (
	ChargePercentage ChargeType = "PERCENTAGE"
	ChargeSlab       ChargeType = "SLAB"
)

// EntryType is the closed set of ledger entry kinds.
type EntryType string

const (
	EntryCredit      EntryType = "CREDIT"
	EntryDebit       EntryType = "DEBIT"
	EntryCommission  EntryType = "COMMISSION"
	EntryTransferIn  EntryType = "TRANSFER_IN"
	EntryTransferOut EntryType = "TRANSFER_OUT"
	EntryRefund      EntryType = "REFUND"
)

// Credits reports whether the entry type increases the wallet balance.
func (t EntryType) Credits() bool {
	switch t {
	case EntryCredit, EntryCommission, EntryTransferIn, EntryRefund:
		return true
	default:
		return false
	}
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryCredit, EntryDebit, EntryCommission, EntryTransferIn, EntryTransferOut, EntryRefund:
		return true
	default:
		return false
	}
}

// Payout request statuses.
const (
	PayoutStatusPending    = "PENDING"
	PayoutStatusProcessing = "PROCESSING"
	PayoutStatusCompleted  = "COMPLETED"
	PayoutStatusFailed     = "FAILED"
)

// MaxHierarchyDepth bounds the ancestor walk. The hierarchy has five levels;
// anything deeper means a corrupted parent chain.
const MaxHierarchyDepth = 16
