package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
}

func TestDetectLanguagePriorityAndNormalization(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")

		if got := detectLanguage(); got != "ru_RU" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")

		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	old := po
	po = nil
	t.Cleanup(func() { po = old })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want %q", got, "Hello")
	}

	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q, want %q", got, "file")
	}

	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q, want %q", got, "files")
	}
}

func TestInitRussianCatalogue(t *testing.T) {
	oldPo, oldLang := po, current
	t.Cleanup(func() { po, current = oldPo, oldLang })

	Init("ru")

	if got := Language(); got != "ru" {
		t.Fatalf("Language() = %q, want %q", got, "ru")
	}
	if got := T("Localize"); got != "Локализовать" {
		t.Fatalf("T(Localize) = %q", got)
	}
	if got := N("Localized %d chunk", "Localized %d chunks", 5); got != "Локализовано %d частей" {
		t.Fatalf("N(5) = %q", got)
	}
	if got := T("not in the catalogue"); got != "not in the catalogue" {
		t.Fatalf("untranslated passthrough = %q", got)
	}
}

func TestInitEnglishPassthrough(t *testing.T) {
	oldPo, oldLang := po, current
	t.Cleanup(func() { po, current = oldPo, oldLang })

	Init("en_US")

	if got := Language(); got != "en" {
		t.Fatalf("Language() = %q, want %q", got, "en")
	}
	if got := T("Localize"); got != "Localize" {
		t.Fatalf("T(Localize) = %q", got)
	}
}

func TestBaseLanguage(t *testing.T) {
	for in, want := range map[string]string{"ru_RU": "ru", "pt-BR": "pt", "EN": "en", "de": "de"} {
		if got := baseLanguage(in); got != want {
			t.Errorf("baseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
