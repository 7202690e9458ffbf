package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemographicsValidate(t *testing.T) {
	tests := []struct {
		name    string
		demo    AudienceDemographics
		wantErr bool
	}{
		{
			name: "valid splits",
			demo: AudienceDemographics{
				Gender: map[string]float64{"male": 58.2, "female": 41.8},
				Age:    map[string]float64{"18-24": 30, "25-34": 70},
			},
		},
		{
			name: "boundary values allowed",
			demo: AudienceDemographics{Gender: map[string]float64{"male": 0, "female": 100}},
		},
		{
			name:    "empty bucket name",
			demo:    AudienceDemographics{Countries: map[string]float64{"": 12.5}},
			wantErr: true,
		},
		{
			name:    "NaN share",
			demo:    AudienceDemographics{Age: map[string]float64{"18-24": math.NaN()}},
			wantErr: true,
		},
		{
			name:    "infinite share",
			demo:    AudienceDemographics{Cities: map[string]float64{"Berlin": math.Inf(1)}},
			wantErr: true,
		},
		{
			name:    "negative share",
			demo:    AudienceDemographics{Gender: map[string]float64{"male": -0.1}},
			wantErr: true,
		},
		{
			name:    "share above 100",
			demo:    AudienceDemographics{Gender: map[string]float64{"male": 100.1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.demo.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDemographicsEmpty(t *testing.T) {
	assert.True(t, AudienceDemographics{}.Empty())
	assert.False(t, AudienceDemographics{
		Gender: map[string]float64{"male": 50},
	}.Empty())
}
