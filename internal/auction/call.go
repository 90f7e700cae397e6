package auction

// MaxCalls is the number of calls after which the auctioneer should close the lot.
const MaxCalls = 3

var callTexts = [MaxCalls]string{"Going once...", "Going twice...", "SOLD!"}

// NextCall advances the going-once counter, saturating at MaxCalls.
func NextCall(count int) int {
	if count >= MaxCalls {
		return MaxCalls
	}
	if count < 0 {
		return 1
	}
	return count + 1
}

// CallText is what the auctioneer announces for the given call count.
func CallText(count int) string {
	switch {
	case count <= 0:
		return ""
	case count >= MaxCalls:
		return callTexts[MaxCalls-1]
	default:
		return callTexts[count-1]
	}
}

// ShouldComplete reports whether the countdown has run out. It is advisory:
// nothing completes a sale except an explicit command.
func ShouldComplete(count int) bool {
	return count >= MaxCalls
}
