package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateTransactionRef creates a human-readable, globally unique sale
// reference, e.g. TXN-9F2C41AB.
func GenerateTransactionRef() string {
	return "TXN-" + strings.ToUpper(uuid.New().String()[:8])
}
