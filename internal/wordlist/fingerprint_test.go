package wordlist

import "testing"

func TestNormalize(t *testing.T) {
	entry := Entry{
		Word:        "  Apfel \r\n",
		Translation: "The Apple",
		Example:     "Ein roter Apfel",
	}
	expected := "apfel\nthe apple\nein roter apfel"
	normalized := Normalize(entry)

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestFingerprint(t *testing.T) {
	t.Run("generates correct fingerprint", func(t *testing.T) {
		entry := Entry{
			Word:        "W",
			Translation: "T",
			Example:     "E",
		}
		// SHA-256 for "w\nt\ne"
		expected := "11ac549c88adc62d709da228a904e435c86dce29a0e7a07545817547a9e24f3d"
		fp := Fingerprint(entry)

		if fp != expected {
			t.Errorf("Expected fingerprint '%s', but got '%s'", expected, fp)
		}
	})

	t.Run("fingerprint is deterministic", func(t *testing.T) {
		a := Entry{Word: "test", Translation: "test"}
		b := Entry{Word: "test", Translation: "test"}
		if Fingerprint(a) != Fingerprint(b) {
			t.Error("Expected fingerprints for identical entries to be the same")
		}
	})

	t.Run("normalization produces same fingerprint", func(t *testing.T) {
		a := Entry{
			Word:        "  apfel ",
			Translation: "apple",
		}
		b := Entry{
			Word:        "Apfel",
			Translation: "Apple",
		}
		if Fingerprint(a) != Fingerprint(b) {
			t.Error("Expected fingerprints to be the same after normalization, but they were different.")
		}
	})

	t.Run("different entries have different fingerprints", func(t *testing.T) {
		a := Entry{Word: "apfel", Translation: "apple"}
		b := Entry{Word: "birne", Translation: "pear"}
		if Fingerprint(a) == Fingerprint(b) {
			t.Error("Expected fingerprints for different entries to be different")
		}
	})
}
