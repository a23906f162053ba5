package reconcile

// Confidence converts a recognizer distance into a score in [0,1] as
// 1 - distance, clamped. The conversion is exact only for cosine distance
// on normalized embeddings; euclidean distances are unbounded, so for them
// the score is an approximation and exact is false.
func Confidence(distance float64, metric string) (score float64, exact bool) {
	score = 1 - distance
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, metric == "cosine"
}
