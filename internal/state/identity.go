package state

import "unicode/utf16"

// Palette is the fixed avatar colour list. Its order is shared by every
// client and must not change.
var Palette = [...]string{
	"#e74c3c",
	"#3498db",
	"#2ecc71",
	"#f39c12",
	"#9b59b6",
	"#1abc9c",
	"#e67e22",
	"#34495e",
	"#f1c40f",
	"#e91e63",
	"#00bcd4",
	"#4caf50",
}

// Hash is the 31-multiplier string hash over UTF-16 code units with 32-bit
// wraparound, returned as an absolute value. Browser clients compute the
// same number, so ids hash identically everywhere.
func Hash(s string) uint32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return uint32(v)
}

// ColorFor returns the palette entry for a stable player id.
func ColorFor(id string) string {
	return Palette[Hash(id)%uint32(len(Palette))]
}

// NameFor returns the advertised display name, or a name derived from the id.
func NameFor(id string, meta Meta) string {
	if meta.Name != "" {
		return meta.Name
	}
	units := utf16.Encode([]rune(id))
	if len(units) > 6 {
		units = units[:6]
	}
	return "Player " + string(utf16.Decode(units))
}
