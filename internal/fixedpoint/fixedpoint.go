package fixedpoint

import (
	"github.com/holiman/uint256"
)

// All engine amounts are 18-decimal ("wad") fixed-point values carried in
// 256-bit unsigned integers. Division truncates toward zero, which keeps
// every payout computation exactly reproducible.

// WadDecimals is the engine-wide fractional precision.
const WadDecimals = 18

var (
	// Wad is 10^18, the fixed-point scale.
	Wad = uint256.NewInt(1_000_000_000_000_000_000)

	// MaxUint256 is 2^256-1, used as the "infinite" health factor sentinel.
	MaxUint256 = new(uint256.Int).Not(uint256.NewInt(0))
)

// MulDiv computes a * b / denom with a full 512-bit intermediate.
// Returns overflow=true if the result does not fit in 256 bits or denom is zero.
func MulDiv(a, b, denom *uint256.Int) (*uint256.Int, bool) {
	if denom.IsZero() {
		return new(uint256.Int), true
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denom)
	return z, overflow
}

// MulWad computes a * b / 1e18, truncating.
func MulWad(a, b *uint256.Int) (*uint256.Int, bool) {
	return MulDiv(a, b, Wad)
}

// DivWad computes a * 1e18 / b, truncating.
func DivWad(a, b *uint256.Int) (*uint256.Int, bool) {
	return MulDiv(a, Wad, b)
}

// FeedScale returns 10^(18-feedDecimals), the multiplier that lifts a price
// feed's native precision to wad precision. Feeds with more than 18 decimals
// are not supported and return nil.
func FeedScale(feedDecimals uint8) *uint256.Int {
	if feedDecimals > WadDecimals {
		return nil
	}
	scale := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := feedDecimals; i < WadDecimals; i++ {
		scale.Mul(scale, ten)
	}
	return scale
}

// FromUnits converts a whole-unit quantity to its wad representation.
func FromUnits(units uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(units), Wad)
}

// FromFeedUnits converts a whole-unit price at the feed's native precision,
// e.g. FromFeedUnits(2000, 8) == 2000 * 10^8.
func FromFeedUnits(units uint64, feedDecimals uint8) *uint256.Int {
	scale := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < feedDecimals; i++ {
		scale.Mul(scale, ten)
	}
	return new(uint256.Int).Mul(uint256.NewInt(units), scale)
}
