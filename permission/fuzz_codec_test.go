package permission

import "testing"

// FuzzParseMask exercises the textual mask parser with arbitrary input.
// Goal: no panics; anything that parses must survive a text round trip.
func FuzzParseMask(f *testing.F) {
	f.Add("client")
	f.Add("developer")
	f.Add("super_admin")
	f.Add("0b111")
	f.Add("0xff")
	f.Add("18446744073709551615")
	f.Add("")
	f.Add("0b")
	f.Add("-1")

	f.Fuzz(func(t *testing.T, in string) {
		mask, err := ParseMask(in)
		if err != nil {
			return
		}

		text, err := mask.MarshalText()
		if err != nil {
			t.Fatalf("marshal after parse: %v", err)
		}
		var back Mask
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if back != mask {
			t.Fatalf("round trip mismatch: %d != %d", back, mask)
		}
	})
}
