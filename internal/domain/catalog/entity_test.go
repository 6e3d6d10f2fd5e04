package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntity_Text(t *testing.T) {
	e := Entity{Name: "Lucky Me Pancit Canton", Category: "Instant Noodles", Description: "  Chilimansi flavor "}
	assert.Equal(t, "lucky me pancit canton instant noodles chilimansi flavor", e.Text())
}

func TestEntity_TextSkipsEmptyParts(t *testing.T) {
	e := Entity{Name: "Torque Wrench"}
	assert.Equal(t, "torque wrench", e.Text())
}

func TestEntity_HasPrice(t *testing.T) {
	p := 12.5
	assert.True(t, (&Entity{Price: &p}).HasPrice())
	assert.False(t, (&Entity{}).HasPrice())
}
