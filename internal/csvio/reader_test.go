package csvio

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_HeaderAndRows(t *testing.T) {
	input := `Borrower SSN,Days Delinquent,OPB
123456789,45,15234
987654321,120,28750
`
	table, err := NewReader().Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Borrower SSN", "Days Delinquent", "OPB"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Borrower SSN", table.Rows[0][0].Column)
	assert.Equal(t, "123456789", table.Rows[0][0].Value)
	assert.Equal(t, "28750", table.Rows[1][2].Value)
}

func TestRead_StripsBOM(t *testing.T) {
	input := "\uFEFFSSN,Major\n123456789,Nursing\n"
	table, err := NewReader().Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "SSN", table.Headers[0])
}

func TestRead_RaggedRows(t *testing.T) {
	input := "SSN,Major,Email\n123456789,Nursing\n987654321,Biology,b@x.edu,extra\n"
	table, err := NewReader().Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Len(t, table.Rows[0], 3)
	assert.Equal(t, "", table.Rows[0][2].Value)
	assert.Len(t, table.Rows[1], 3)
	assert.Equal(t, "b@x.edu", table.Rows[1][2].Value)
}

func TestRead_Empty(t *testing.T) {
	_, err := NewReader().Read(context.Background(), strings.NewReader(""))
	require.Error(t, err)
}

func TestRead_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader().Read(ctx, strings.NewReader("a,b\n1,2\n"))
	require.ErrorIs(t, err, context.Canceled)
}
