package embedding

// meanPool averages a row-major [seqLen x hidden] activation matrix over the
// sequence axis, counting only positions whose attention mask is non-zero.
// With an all-ones mask this is the plain mean across tokens.
func meanPool(hidden []float32, seqLen, hiddenSize int, mask []int64) []float32 {
	out := make([]float32, hiddenSize)
	if seqLen == 0 || hiddenSize == 0 {
		return out
	}
	sums := make([]float64, hiddenSize)
	var count float64
	for t := 0; t < seqLen; t++ {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		row := hidden[t*hiddenSize : (t+1)*hiddenSize]
		for j, v := range row {
			sums[j] += float64(v)
		}
		count++
	}
	if count == 0 {
		return out
	}
	for j := range sums {
		out[j] = float32(sums[j] / count)
	}
	return out
}

// truncateTokens caps a single encoded sequence at maxLen, keeping the final
// (separator) token so the model still sees a well-formed sequence.
func truncateTokens(ids, typeIDs, mask []int, maxLen int) ([]int, []int, []int) {
	if maxLen <= 0 || len(ids) <= maxLen {
		return ids, typeIDs, mask
	}
	keep := func(s []int) []int {
		if len(s) != len(ids) {
			return s
		}
		out := make([]int, 0, maxLen)
		out = append(out, s[:maxLen-1]...)
		return append(out, s[len(s)-1])
	}
	return keep(ids), keep(typeIDs), keep(mask)
}

func toInt64(s []int) []int64 {
	out := make([]int64, len(s))
	for i, v := range s {
		out[i] = int64(v)
	}
	return out
}
