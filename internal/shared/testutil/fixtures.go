package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// OrdersCSV is a small dataset with dates, the location hierarchy and sales
// but none of the category or profit columns.
const OrdersCSV = "Order Date,Region,State,City,Sales\n" +
	"01/02/2021,East,New York,New York City,10\n" +
	"01/03/2021,West,California,Los Angeles,5\n"

// WriteLatin1 encodes content as ISO-8859-1 and writes it to name inside a
// fresh temporary directory. It returns the file path.
func WriteLatin1(t *testing.T, name, content string) string {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))
	return path
}

// MultipartUpload builds a multipart/form-data body with one file part. It
// returns the body and its Content-Type header value.
func MultipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
