package kawahagi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKawahagiDBRoundTrip(t *testing.T) {
	db := NewKawahagiDBForTesting("kawahagi_roundtrip", 512)
	defer db.Shutdown()

	for i := 0; i < 300; i++ {
		require.NoError(t, db.Insert([]byte(fmt.Sprintf("k%d", i)), uint32(i)))
	}
	db.VerifyIntegrity()

	for i := 0; i < 300; i++ {
		assert.Contains(t, db.GetValue([]byte(fmt.Sprintf("k%d", i))), uint32(i))
	}

	assert.True(t, db.Remove([]byte("k7"), 7))
	assert.NotContains(t, db.GetValue([]byte("k7")), uint32(7))
	assert.False(t, db.Remove([]byte("k7"), 7))
}

func TestKawahagiDBStats(t *testing.T) {
	db := NewKawahagiDBForTesting("kawahagi_stats", 512)
	defer db.Shutdown()

	require.NoError(t, db.Insert([]byte("a key"), 1))
	stats := db.StatsString()
	assert.Contains(t, stats, "frames resident")
	assert.Contains(t, stats, "KiB")
}
