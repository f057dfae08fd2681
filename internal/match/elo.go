package match

import "math"

// eloK is the rating K-factor applied to every finished game.
const eloK = 32

// Rate returns the post-game ratings for white and black given white's
// score: 1 for a win, 0 for a loss, 0.5 for a draw. Results clamp to the
// uint16 range the wire format and store carry.
func Rate(white, black uint16, whiteScore float64) (uint16, uint16) {
	expectedWhite := 1 / (1 + math.Pow(10, (float64(black)-float64(white))/400))
	expectedBlack := 1 - expectedWhite

	blackScore := 1 - whiteScore
	newWhite := float64(white) + eloK*(whiteScore-expectedWhite)
	newBlack := float64(black) + eloK*(blackScore-expectedBlack)

	return clampRating(newWhite), clampRating(newBlack)
}

func clampRating(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(math.Round(v))
}
