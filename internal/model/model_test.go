package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"EvacInfo", &EvacInfo{}, "evac_infos"},
		{"Run", &Run{}, "runs"},
		{"Episode", &Episode{}, "episodes"},
		{"Outcome", &Outcome{}, "outcomes"},
		{"PopulationSample", &PopulationSample{}, "population_samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsMatch(t *testing.T) {
	assert.Len(t, DatabaseModelsSQLite, len(DatabaseModels))
}
