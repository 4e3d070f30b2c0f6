package tx

import "testing"

func TestEstimateTxFee(t *testing.T) {
	tests := []struct {
		name       string
		numInputs  int
		numOutputs int
		feeRate    uint64
		want       uint64
	}{
		{"zero rate", 1, 2, 0, 0},
		{"simple 1-in 2-out", 1, 2, 10, (10 + 148 + 68) * 10},   // 226 * 10
		{"2-in 2-out", 2, 2, 10, (10 + 296 + 68) * 10},           // 374 * 10
		{"consolidate 10-in 1-out", 10, 1, 1, 10 + 1480 + 34},    // 1524
		{"rate 1", 1, 1, 1, 10 + 148 + 34},                       // 192
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTxFee(tt.numInputs, tt.numOutputs, tt.feeRate)
			if got != tt.want {
				t.Errorf("EstimateTxFee(%d, %d, %d) = %d, want %d",
					tt.numInputs, tt.numOutputs, tt.feeRate, got, tt.want)
			}
		})
	}
}

func TestFeeRate(t *testing.T) {
	if got := FeeRate(2260, 1, 2); got != 10 {
		t.Errorf("FeeRate(2260, 1, 2) = %d, want 10", got)
	}
	if got := FeeRate(100, 1, 2); got != 0 {
		t.Errorf("FeeRate(100, 1, 2) = %d, want 0", got)
	}
}
