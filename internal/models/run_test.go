package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolumeLen(t *testing.T) {
	assert.Equal(t, 60, Volume{Size: []int{3, 4, 5}}.Len())
	assert.Equal(t, 7, Volume{Size: []int{7}}.Len())
}
