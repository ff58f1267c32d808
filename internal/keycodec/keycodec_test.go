package keycodec

import "testing"

func TestFormatParseWorkRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"movie", "movie:the-matrix:1999"},
		{"series", "series:the-wire:2002"},
		{"live", "live:espn-hd:LIVE"},
		{"episode", "episode:the-matrix:1999:s1:e5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseWork(tc.key)
			if err != nil {
				t.Fatalf("ParseWork(%q): %v", tc.key, err)
			}
			var (
				out string
				fErr error
			)
			if parsed.WorkType == WorkEpisode {
				out, fErr = FormatEpisodeWork(parsed.CanonicalSlug, parsed.Year, parsed.Season, parsed.Episode)
			} else {
				out, fErr = FormatWork(parsed.WorkType, parsed.CanonicalSlug, parsed.Year, parsed.IsLive)
			}
			if fErr != nil {
				t.Fatalf("format back: %v", fErr)
			}
			if out != tc.key {
				t.Fatalf("round-trip mismatch: got %q want %q", out, tc.key)
			}
		})
	}
}

func TestFormatEpisodeWork_MatrixScenario(t *testing.T) {
	got, err := FormatEpisodeWork("The Matrix", 1999, 1, 5)
	if err != nil {
		t.Fatalf("FormatEpisodeWork: %v", err)
	}
	want := "episode:the-matrix:1999:s1:e5"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseWork_InvalidKinds(t *testing.T) {
	invalid := []string{
		"",
		"movie:the-matrix",
		"documentary:foo:2020",
		"movie::2020",
		"movie:the-matrix:notayear",
		"episode:the-matrix:1999:s1",
		"episode:the-matrix:1999:sX:eY",
	}
	for _, key := range invalid {
		if _, err := ParseWork(key); err == nil {
			t.Errorf("ParseWork(%q): expected error, got nil", key)
		}
	}
}

func TestFormatParseSourceRoundTrip(t *testing.T) {
	key, err := FormatSource(SourceXtream, "acct1", KindVod, "12345")
	if err != nil {
		t.Fatalf("FormatSource: %v", err)
	}
	want := "src:xtream:acct1:vod:12345"
	if key != want {
		t.Fatalf("got %q want %q", key, want)
	}
	parsed, err := ParseSource(key)
	if err != nil {
		t.Fatalf("ParseSource(%q): %v", key, err)
	}
	if parsed.SourceType != SourceXtream || parsed.AccountKey != "acct1" || parsed.Kind != KindVod || parsed.ProviderItemID != "12345" {
		t.Fatalf("parsed mismatch: %+v", parsed)
	}
}

func TestParseSource_LegacyShortForm(t *testing.T) {
	parsed, err := ParseSource("xtream:acct1:999")
	if err != nil {
		t.Fatalf("ParseSource legacy: %v", err)
	}
	if parsed.SourceType != SourceXtream || parsed.AccountKey != "acct1" || parsed.ProviderItemID != "999" {
		t.Fatalf("parsed mismatch: %+v", parsed)
	}
	if parsed.Kind != KindVod {
		t.Fatalf("expected default kind vod, got %q", parsed.Kind)
	}
}

func TestParseSource_RejectsZeroID(t *testing.T) {
	if _, err := FormatSource(SourceXtream, "acct1", KindVod, "0"); err == nil {
		t.Fatal("expected error for providerItemId \"0\"")
	}
}

func TestFormatVariant(t *testing.T) {
	key, err := FormatVariant("src:xtream:acct1:vod:12345", "1080p", "en")
	if err != nil {
		t.Fatalf("FormatVariant: %v", err)
	}
	want := "src:xtream:acct1:vod:12345#1080p:en"
	if key != want {
		t.Fatalf("got %q want %q", key, want)
	}
}

func TestFormatAuthority(t *testing.T) {
	key, err := FormatAuthority(AuthorityTMDB, AuthorityMovie, "603")
	if err != nil {
		t.Fatalf("FormatAuthority: %v", err)
	}
	want := "tmdb:movie:603"
	if key != want {
		t.Fatalf("got %q want %q", key, want)
	}
	if _, err := FormatAuthority(Authority("rotten"), AuthorityMovie, "603"); err == nil {
		t.Fatal("expected error for unknown authority")
	}
}

func TestDetectContentType(t *testing.T) {
	cases := map[string]ContentKind{
		"movie:the-matrix:1999":             ContentVod,
		"series:the-wire:2002":               ContentSeries,
		"episode:the-matrix:1999:s1:e5":      ContentEpisode,
		"live:espn-hd:LIVE":                  ContentLive,
		"src:xtream:acct1:vod:12345":         ContentVod,
		"src:xtream:acct1:live:1":            ContentLive,
		"tmdb:movie:603":                     ContentUnknown,
	}
	for key, want := range cases {
		if got := DetectContentType(key); got != want {
			t.Errorf("DetectContentType(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{
		"movie:the-matrix:1999",
		"episode:the-matrix:1999:s1:e5",
		"src:xtream:acct1:vod:12345",
		"xtream:acct1:999",
		"tmdb:movie:603",
		"src:xtream:acct1:vod:12345#1080p:en",
	}
	for _, key := range valid {
		if !IsValid(key) {
			t.Errorf("IsValid(%q) = false, want true", key)
		}
	}
	invalid := []string{"", "not-a-key", "movie:only-slug"}
	for _, key := range invalid {
		if IsValid(key) {
			t.Errorf("IsValid(%q) = true, want false", key)
		}
	}
}

func TestResolveThroughRedirects(t *testing.T) {
	chain := map[string]string{
		"movie:old-title:1999":  "movie:mid-title:1999",
		"movie:mid-title:1999":  "movie:new-title:1999",
	}
	lookup := func(k string) (string, bool) {
		v, ok := chain[k]
		return v, ok
	}
	got := ResolveThroughRedirects("movie:old-title:1999", lookup)
	want := "movie:new-title:1999"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestResolveThroughRedirects_CapsAtTenHops(t *testing.T) {
	lookup := func(k string) (string, bool) {
		n := 0
		for _, r := range k {
			if r == 'x' {
				n++
			}
		}
		return k + "x", n < 20
	}
	got := ResolveThroughRedirects("a", lookup)
	if len(got) > len("a")+maxRedirectHops {
		t.Fatalf("resolution exceeded hop cap: %q", got)
	}
}

func TestParseLegacySeriesKey(t *testing.T) {
	base, season, episode, ok := ParseLegacySeriesKey("the-wire-s5e10")
	if !ok {
		t.Fatal("expected legacy form to parse")
	}
	if base != "the-wire" || season != 5 || episode != 10 {
		t.Fatalf("got base=%q season=%d episode=%d", base, season, episode)
	}
	if _, _, _, ok := ParseLegacySeriesKey("the-wire"); ok {
		t.Fatal("expected non-legacy slug to not parse")
	}
}
