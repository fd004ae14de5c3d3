package textsim

import "testing"

func TestFingerprintNormalization(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(DefaultOptions())

	if f.Fingerprint("Hello World!") != f.Fingerprint("hello   world") {
		t.Fatal("normalized inputs should share a fingerprint")
	}
	if f.Fingerprint("hello world") == f.Fingerprint("goodbye world") {
		t.Fatal("different token sets should not collide")
	}

	// Token order and duplication are irrelevant.
	if f.Fingerprint("world hello world") != f.Fingerprint("hello world") {
		t.Fatal("fingerprint should hash the unique token set")
	}
}

func TestPreprocessCaseSensitive(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(Options{CaseSensitive: true})

	if f.Fingerprint("Hello") == f.Fingerprint("hello") {
		t.Fatal("case-sensitive mode should distinguish casing")
	}
}

func TestPreprocessStopWords(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(Options{DropStopWords: true})

	tokens := f.Preprocess("the quick fox is in the field")
	for _, tok := range tokens {
		if tok == "the" || tok == "is" || tok == "in" {
			t.Fatalf("stop word %q survived preprocessing", tok)
		}
	}
	if len(tokens) != 3 { // quick, fox, field
		t.Fatalf("got tokens %v, want 3 content words", tokens)
	}
}

func TestPreprocessMinTokenLength(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(Options{MinTokenLength: 4})

	tokens := f.Preprocess("a big complicated thing")
	want := map[string]bool{"complicated": true, "thing": true}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want only tokens of length >= 4", tokens)
	}
	for _, tok := range tokens {
		if !want[tok] {
			t.Fatalf("unexpected token %q", tok)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want string
	}{
		{"hello there, general greeting", "en"},
		{"привет как дела у тебя сегодня", "ru"},
		{"你好世界这是一个测试", "zh"},
		{"مرحبا بالعالم هذا اختبار", "ar"},
	}

	for _, c := range cases {
		if got := DetectLanguage(c.text); got != c.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestSameLanguage(t *testing.T) {
	t.Parallel()

	if !SameLanguage("en", "en-US") {
		t.Fatal("en and en-US share a base language")
	}
	if SameLanguage("en", "ru") {
		t.Fatal("en and ru do not share a base language")
	}
}
