package token

import (
	"path/filepath"
	"testing"
)

type mapGetter map[string]string

func (m mapGetter) Get(key string) string { return m[key] }

func TestChainPrefersPrimaryStoreKey(t *testing.T) {
	t.Parallel()

	chain := Chain{
		Store:   mapGetter{PrimaryKey: "tok-primary", AliasKey: "tok-alias"},
		Cookies: func(string) string { return "tok-cookie" },
	}
	if got := chain.AccessToken(); got != "tok-primary" {
		t.Fatalf("expected primary key to win, got %q", got)
	}
}

func TestChainFallsBackToAliasThenCookies(t *testing.T) {
	t.Parallel()

	chain := Chain{Store: mapGetter{AliasKey: "tok-alias"}}
	if got := chain.AccessToken(); got != "tok-alias" {
		t.Fatalf("expected alias key, got %q", got)
	}

	cookies := map[string]string{AliasKey: "tok-cookie-alias"}
	chain = Chain{
		Store:   mapGetter{},
		Cookies: func(name string) string { return cookies[name] },
	}
	if got := chain.AccessToken(); got != "tok-cookie-alias" {
		t.Fatalf("expected cookie alias, got %q", got)
	}
}

func TestChainEmptyWhenNothingResolves(t *testing.T) {
	t.Parallel()

	if got := (Chain{}).AccessToken(); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileStore(path)

	if got := store.Get(PrimaryKey); got != "" {
		t.Fatalf("expected empty token before Set, got %q", got)
	}
	if err := store.Set(PrimaryKey, "tok-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(AliasKey, "tok-2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened := NewFileStore(path)
	if got := reopened.Get(PrimaryKey); got != "tok-1" {
		t.Fatalf("expected tok-1, got %q", got)
	}
	if got := reopened.Get(AliasKey); got != "tok-2" {
		t.Fatalf("expected tok-2, got %q", got)
	}
}
