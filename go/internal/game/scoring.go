package game

// Round 1 score deltas.
const (
	ScoreCorrect = 200
	ScoreWrong   = -100
	ScoreTimeout = -150
)

// AddScore applies a signed delta to a player's score. Scores never go
// negative no matter how many penalties accumulate.
func AddScore(p *Player, delta int) {
	next := p.Score + delta
	if next < 0 {
		next = 0
	}
	p.Score = next
}

// Clamp01 keeps a podium height inside [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
