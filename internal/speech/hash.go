package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// ContentHash returns the stable cache key for a synthesis request.
func ContentHash(text, voice, rate string) string {
	sum := sha256.New()
	sum.Write([]byte(text))
	sum.Write([]byte{0})
	sum.Write([]byte(voice))
	sum.Write([]byte{0})
	sum.Write([]byte(rate))
	return hex.EncodeToString(sum.Sum(nil))
}

// RateString expresses speed as a signed percentage offset from baseline,
// e.g. "+20%" or "-10%". Zero offset is "+0%".
func RateString(speed, baseline float64) string {
	if !(baseline > 0) || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return "+0%"
	}
	offset := int(math.Round((speed/baseline - 1) * 100))
	if offset < 0 {
		return fmt.Sprintf("%d%%", offset)
	}
	return fmt.Sprintf("+%d%%", offset)
}
