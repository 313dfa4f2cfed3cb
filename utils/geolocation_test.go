package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDistance(t *testing.T) {
	// Berlin Alexanderplatz to Brandenburg Gate, roughly 2.3 km.
	distance := CalculateDistance(52.5219, 13.4132, 52.5163, 13.3777)
	assert.InDelta(t, 2480, distance, 150)

	assert.Zero(t, CalculateDistance(52.52, 13.405, 52.52, 13.405))
}

func TestIsValidCoordinate(t *testing.T) {
	assert.True(t, IsValidCoordinate(52.52, 13.405))
	assert.True(t, IsValidCoordinate(-90, 180))
	assert.False(t, IsValidCoordinate(90.1, 0))
	assert.False(t, IsValidCoordinate(0, -180.5))
}

func TestFormatCoordinates(t *testing.T) {
	assert.Equal(t, "52.52000, 13.40500", FormatCoordinates(52.52, 13.405))
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "850 m", FormatDistance(850))
	assert.Equal(t, "2.3 km", FormatDistance(2300))
}
