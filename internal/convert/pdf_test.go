package convert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFConverter_CanHandle(t *testing.T) {
	c := newPDFConverter()
	assert.True(t, c.CanHandle("application/pdf", ".pdf"))
	assert.False(t, c.CanHandle("", ".txt"))
}

func TestPDFConverter_Convert_RejectsCorruptInput(t *testing.T) {
	c := newPDFConverter()
	in := Input{RelPath: "bad.pdf", Ext: ".pdf", Content: []byte("%PDF-1.4 not actually a pdf")}

	_, err := c.Convert(context.Background(), in)
	require.Error(t, err)
	var convErr *ConvertError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, KindCorrupt, convErr.Kind)
}
