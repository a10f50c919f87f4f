package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

var jakarta = loadJakarta()

func loadJakarta() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

// GenerateOrderNumber returns the number printed on the counter display and the receipt,
// e.g. KK-251015-093012-0427. The date is in shop local time (WIB).
func GenerateOrderNumber() string {
	now := time.Now().In(jakarta)

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return fmt.Sprintf("KK-%s-%04d", now.Format("060102-150405"), n.Int64())
}
