package dedupe

// diceCoefficient scores two strings on [0,1] using character bigrams.
// Identical strings score 1, fully disjoint strings 0.
func diceCoefficient(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	overlap := 0
	for i := 0; i < len(b)-1; i++ {
		gram := b[i : i+2]
		if bigrams[gram] > 0 {
			bigrams[gram]--
			overlap++
		}
	}

	return 2.0 * float64(overlap) / float64(len(a)+len(b)-2)
}

// scorePair is the weighted mean of per-field similarities.
func scorePair(pair RecordPair, weights map[string]float64) float64 {
	var total, weightSum float64
	for field, w := range weights {
		total += w * diceCoefficient(pair.Left[field], pair.Right[field])
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}
