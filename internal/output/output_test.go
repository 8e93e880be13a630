package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/danielolaszy/triage/pkg/models"
)

var sampleTickets = []*models.Ticket{
	{
		Key:          "AITRIAGE-1",
		Description:  "not rendered",
		Version:      "4.12.1",
		PlatformType: "baremetal",
		Operators:    []string{"CNV", "LSO"},
		Features:     []string{"Hyperthreading"},
	},
	{
		Key:       "AITRIAGE-2",
		Operators: []string{},
		Features:  []string{},
	},
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatText},
		{input: "text", want: FormatText},
		{input: " JSON ", want: FormatJSON},
		{input: "yaml", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTicketsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Tickets(&buf, FormatJSON, sampleTickets[:1]))

	assert.JSONEq(t, `[{
		"key": "AITRIAGE-1",
		"openshift_version": "4.12.1",
		"platform_type": "baremetal",
		"olm_operators": ["CNV", "LSO"],
		"configured_features": ["Hyperthreading"]
	}]`, buf.String())
}

func TestTicketsJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Tickets(&buf, FormatJSON, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestTicketsYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Tickets(&buf, FormatYAML, sampleTickets))

	var decoded []models.Ticket
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "AITRIAGE-1", decoded[0].Key)
	assert.Equal(t, []string{"CNV", "LSO"}, decoded[0].Operators)
	assert.Empty(t, decoded[0].Description)
	assert.NotContains(t, buf.String(), "not rendered")
}

func TestTicketsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Tickets(&buf, FormatText, sampleTickets))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "KEY")
	assert.Contains(t, string(lines[1]), "AITRIAGE-1")
	assert.Contains(t, string(lines[1]), "CNV,LSO")
	assert.Contains(t, string(lines[2]), "AITRIAGE-2")
	assert.Contains(t, string(lines[2]), "-")
}

func TestEncodeRejectsText(t *testing.T) {
	assert.Error(t, Encode(&bytes.Buffer{}, FormatText, 1))
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"A", "B"}, [][]string{{"1", ""}}))
	assert.Equal(t, "A  B\n1  -\n", buf.String())
}
