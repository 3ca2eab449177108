package genres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Folklor, Normalize(" Dychovka "))
	assert.Equal(t, Folklor, Normalize("ĽUDOVÉ"))
	assert.Equal(t, "Rock", Normalize("rock"))
	assert.Equal(t, "", Normalize("  "))
}

func TestJoinSplit(t *testing.T) {
	assert.Equal(t, "Rock,Folklór,Jazz", Join([]string{"rock", "cimbalovka", "Rock", "", "jazz", "folklor"}))
	assert.Equal(t, "", Join(nil))
	assert.Equal(t, []string{"Rock", "Jazz"}, Split(" Rock, ,Jazz,"))
	assert.Nil(t, Split(""))
}
