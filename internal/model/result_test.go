package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupDatabases(t *testing.T) {
	t.Parallel()

	records := []NormalizedRecord{
		{Field: "phone", SourceDatabase: "MVD 2022"},
		{Field: "email", SourceDatabase: "MVD 2022"},
		{Field: "name", SourceDatabase: "Delivery Club"},
		{Field: "phone", SourceDatabase: "MVD 2022"},
		{Field: "address", SourceDatabase: UnknownDatabase},
	}

	assert.Equal(t, []string{"MVD 2022", "Delivery Club", UnknownDatabase}, DedupDatabases(records))
}

func TestDedupDatabases_Empty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, DedupDatabases(nil))
}
