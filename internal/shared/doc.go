// Package shared holds code used across the dashboard packages that does not
// belong to any single layer.
//
// # Test Utilities
//
// The testutil subpackage provides helpers for package tests:
//
//	- LogCapture, an slog.Handler that records entries for assertions
//	- WriteLatin1, which writes ISO-8859-1 encoded fixture files
//	- MultipartUpload, which builds a multipart body for upload requests
//
// Example usage:
//
//	func TestUpload(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    body, contentType := testutil.MultipartUpload(t, "file", "orders.csv", testutil.OrdersCSV)
//	    ...
//	    assert.True(t, logs.ContainsMessage("Upload rejected"))
//	}
//
// Nothing in testutil may be imported by production code.
package shared
