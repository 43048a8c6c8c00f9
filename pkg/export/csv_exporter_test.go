package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"id", "title"},
		Rows: []map[string]string{
			{"id": "1", "title": "Opening, welcome"},
			{"id": "2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,title\n1,\"Opening, welcome\"\n2,\n", string(payload))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
