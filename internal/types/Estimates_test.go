package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolatilityEstimateKnown(t *testing.T) {
	assert.True(t, VolatilityEstimate{Value: 0.8, Method: VolMethodLogReturns, Samples: 72}.Known())
	assert.True(t, VolatilityEstimate{Value: 0.05, Method: VolMethodProxy, Samples: 2}.Known())
	assert.False(t, VolatilityEstimate{}.Known())
	assert.False(t, VolatilityEstimate{Method: VolMethodProxy, Samples: 2}.Known())
}

func TestFeeAPRResultAPRValue(t *testing.T) {
	apr := 36.5
	assert.Equal(t, 36.5, FeeAPRResult{FeeAPR: &apr, Source: AprSourceFees24h}.APRValue())
	assert.Equal(t, 0.0, FeeAPRResult{Source: AprSourceEstimated}.APRValue())
}
