package constants

import "strings"

// InvoiceTextExtensions are the file types the text extractor accepts.
var InvoiceTextExtensions = map[string]struct{}{
	"txt": {},
	"csv": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsInvoiceTextExt reports whether ext (with or without dot) is a supported text format.
func IsInvoiceTextExt(ext string) bool {
	_, ok := InvoiceTextExtensions[NormalizeExt(ext)]
	return ok
}
