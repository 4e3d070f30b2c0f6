package tx

// Legacy P2PKH size components in bytes.
const (
	p2pkhOverhead = 10  // version(4) + in count(1) + out count(1) + locktime(4)
	p2pkhInput    = 148 // outpoint(36) + script len(1) + sig script(107) + sequence(4)
	p2pkhOutput   = 34  // value(8) + script len(1) + script(25)
)

// EstimateSize returns the approximate serialized size of a signed legacy
// P2PKH transaction with the given number of inputs and outputs.
func EstimateSize(numInputs, numOutputs int) int {
	return p2pkhOverhead + p2pkhInput*numInputs + p2pkhOutput*numOutputs
}

// EstimateTxFee returns the fee for a P2PKH transaction at feeRate base
// units per byte.
func EstimateTxFee(numInputs, numOutputs int, feeRate uint64) uint64 {
	return uint64(EstimateSize(numInputs, numOutputs)) * feeRate
}

// FeeRate returns the effective fee rate of fee over a P2PKH transaction of
// the given shape, rounded down.
func FeeRate(fee uint64, numInputs, numOutputs int) uint64 {
	size := EstimateSize(numInputs, numOutputs)
	if size == 0 {
		return 0
	}
	return fee / uint64(size)
}
