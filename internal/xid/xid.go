package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), compact(id)[:12])
}

func TransactionID() string {
	return New("txn")
}

func TargetID() string {
	return New("target")
}

// ReceiptNumber is human readable: RCP-<yyyymmdd>-<6 hex>. It is unique enough
// for a single terminal, the transaction id remains the real key.
func ReceiptNumber(at time.Time) string {
	suffix := fmt.Sprintf("%06X", at.UnixNano()%0xFFFFFF)
	if id, err := uuid.NewRandom(); err == nil {
		suffix = strings.ToUpper(compact(id)[:6])
	}
	return fmt.Sprintf("RCP-%s-%s", at.UTC().Format("20060102"), suffix)
}

func compact(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
