package safe

import "testing"

func TestProductIdentifier(t *testing.T) {
	// CRC-16/CCITT-FALSE check value for the standard test string.
	if got := ProductIdentifier([]byte("123456789")); got != "29B1" {
		t.Errorf("Expected 29B1, got %s", got)
	}
	if got := ProductIdentifier(nil); got != "FFFF" {
		t.Errorf("Expected FFFF for empty input, got %s", got)
	}
	// Four uppercase hex characters even for small checksums.
	if got := ProductIdentifier([]byte{}); len(got) != 4 {
		t.Errorf("Expected 4 characters, got %q", got)
	}
}
