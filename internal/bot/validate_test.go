package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVIN(t *testing.T) {
	assert.Equal(t, "WVWZZZ1JZXW000001", NormalizeVIN("  wvwzzz1jzxw000001\n"))
	assert.Equal(t, "XTA210530V1234567", NormalizeVIN("xta210530v1234567"))
}

func TestValidVIN(t *testing.T) {
	valid := []string{
		"WVWZZZ1JZXW000001",
		"XTA210530V1234567",
		"1HGBH41JXMN109186",
	}
	for _, vin := range valid {
		assert.True(t, ValidVIN(vin), vin)
	}

	invalid := []string{
		"",
		"WVWZZZ1JZXW00001",    // 16 chars
		"WVWZZZ1JZXW0000012",  // 18 chars
		"WVWZZZ1JZIW000001",   // contains I
		"WVWZZZ1JZOW000001",   // contains O
		"WVWZZZ1JZQW000001",   // contains Q
		"wvwzzz1jzxw000001",   // not normalized
		"WVWZZZ1JZXW00000 1",  // embedded space
	}
	for _, vin := range invalid {
		assert.False(t, ValidVIN(vin), vin)
	}
}

func TestValidContact(t *testing.T) {
	assert.True(t, ValidContact("user@example.com"))
	assert.True(t, ValidContact("12345"))
	assert.True(t, ValidContact("  12345  "))
	assert.False(t, ValidContact("1234"))
	assert.False(t, ValidContact("   1234   "))
	assert.False(t, ValidContact(""))
}
