package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber generates a human-readable order number: ORD-<UTC timestamp>-<8
// uppercase hex chars>. Uniqueness is best-effort; the store enforces it with
// a unique constraint, and callers regenerate on conflict.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return "ORD-" + now.UTC().Format("20060102150405") + "-" + suffix
}
