package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumMatchesClientAlgorithm(t *testing.T) {
	// 31-hash of "abc" is 96354, which is "22ci" in base 36
	assert.Equal(t, "22ci", Sum("abc"))
	assert.Equal(t, "0", Sum(""))
}

func TestSumIsDeterministic(t *testing.T) {
	a := Sum("Mozilla/5.0|en-US|-180|data:image/png;base64,xyz|1920|1080|24")
	b := Sum("Mozilla/5.0|en-US|-180|data:image/png;base64,xyz|1920|1080|24")
	assert.Equal(t, a, b)

	c := Sum("Mozilla/5.0|en-GB|-180|data:image/png;base64,xyz|1920|1080|24")
	assert.NotEqual(t, a, c)
}

func TestHashJoinsComponentsInOrder(t *testing.T) {
	c := Components{
		UserAgent:      "Mozilla/5.0",
		Language:       "en-US",
		TimezoneOffset: -180,
		CanvasData:     "data:image/png;base64,xyz",
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		ColorDepth:     24,
	}
	assert.Equal(t, Sum("Mozilla/5.0|en-US|-180|data:image/png;base64,xyz|1920|1080|24"), c.Hash())
}
