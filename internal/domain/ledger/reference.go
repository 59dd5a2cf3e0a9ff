package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReferenceSuffixLength is the number of random characters appended to
// every reference.
const ReferenceSuffixLength = 5

var typeCodes = map[Type]string{
	TypeDeposit:         "DEP",
	TypeWithdrawal:      "WDL",
	TypeContestEntry:    "ENT",
	TypeContestWinnings: "WIN",
	TypeBonus:           "BON",
	TypeRefund:          "RFD",
	TypeReferralBonus:   "RFB",
	TypeAdminAdjustment: "ADJ",
	TypeTransfer:        "TRF",
}

// BuildReference assembles the human-inspectable ledger reference: the
// three-letter type code, the creation time in base-36 milliseconds, and
// the caller-supplied random suffix, all uppercased.
func BuildReference(txType Type, at time.Time, suffix string) (string, error) {
	code, ok := typeCodes[txType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, txType)
	}
	if len(suffix) != ReferenceSuffixLength {
		return "", fmt.Errorf("reference suffix must be %d characters, got %d", ReferenceSuffixLength, len(suffix))
	}

	stamp := strconv.FormatInt(at.UnixMilli(), 36)
	return strings.ToUpper(code + stamp + suffix), nil
}
