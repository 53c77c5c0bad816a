package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_DisabledWithoutBrokers(t *testing.T) {
	p, err := NewProducer(" , ", "grievance.audit")
	require.NoError(t, err)
	assert.Nil(t, p)
}
