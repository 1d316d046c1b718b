package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkbookRoundTrip(t *testing.T) {
	exporter := NewWorkbookExporter()
	data := Dataset{
		Headers: []string{"name", "sequence"},
		Rows: []map[string]string{
			{"name": "B.Com", "sequence": "1"},
			{"name": "B.Sc", "sequence": "2"},
		},
	}

	payload, err := exporter.Render("degrees", data)
	require.NoError(t, err)

	parsed, err := exporter.Parse(bytes.NewReader(payload), []string{"name"})
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, "B.Com", parsed.Rows[0]["name"])
	assert.Equal(t, "2", parsed.Rows[1]["sequence"])
}

func TestWorkbookParseHeadersCaseInsensitive(t *testing.T) {
	exporter := NewWorkbookExporter()
	payload, err := exporter.Render("blood-groups", Dataset{
		Headers: []string{"TYPE"},
		Rows:    []map[string]string{{"TYPE": "O+"}, {"TYPE": ""}},
	})
	require.NoError(t, err)

	parsed, err := exporter.Parse(bytes.NewReader(payload), []string{"type"})
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, "O+", parsed.Rows[0]["type"])
}

func TestWorkbookParseMissingHeaders(t *testing.T) {
	exporter := NewWorkbookExporter()
	payload, err := exporter.Render("religions", Dataset{
		Headers: []string{"label"},
		Rows:    []map[string]string{{"label": "x"}},
	})
	require.NoError(t, err)

	_, err = exporter.Parse(bytes.NewReader(payload), []string{"name"})
	var missing *MissingHeadersError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"name"}, missing.Missing)
}

func TestSlipRendererProducesPDF(t *testing.T) {
	pdf, err := NewSlipRenderer().Render(Slip{
		InstitutionName: "Admissions Office",
		Fields:          []SlipField{{Label: "Application", Value: "2024-000001"}},
		VerifyURL:       "http://localhost/verify/abc",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"id", "status"},
		Rows:    []map[string]string{{"id": "12", "status": "REJECTED"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,status\n12,REJECTED\n", string(out))
}
