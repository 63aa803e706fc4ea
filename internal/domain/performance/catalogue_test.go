package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGAFCatalogue(t *testing.T) {
	factors := GAFCatalogue()
	require.Len(t, factors, 15)
	assert.Equal(t, "GAF1", factors[0].Code)
	assert.Equal(t, "GAF15", factors[14].Code)

	f, ok := LookupFactor("GAF4")
	require.True(t, ok)
	assert.Equal(t, "Quality of work", f.Name)

	_, ok = LookupFactor("GAF99")
	assert.False(t, ok)

	factors[0].Name = "changed"
	again, _ := LookupFactor("GAF1")
	assert.Equal(t, "Job knowledge", again.Name)
}

func TestSortGAFsFollowsCatalogue(t *testing.T) {
	gafs := []GAF{{Factor: "GAF10"}, {Factor: "GAF2"}, {Factor: "GAF1"}}
	sortGAFs(gafs)
	assert.Equal(t, []string{"GAF1", "GAF2", "GAF10"}, []string{gafs[0].Factor, gafs[1].Factor, gafs[2].Factor})
}
