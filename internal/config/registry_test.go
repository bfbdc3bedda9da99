package config_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/solace/internal/config"
	"github.com/MrWong99/solace/pkg/provider/stt"
	sttmock "github.com/MrWong99/solace/pkg/provider/stt/mock"
)

func TestRegistry_CreateUnknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT: got %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM: got %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS: got %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_CreatePassesEntry(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var got config.ProviderEntry
	want := &sttmock.Provider{}
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		got = e
		return want, nil
	})

	entry := config.ProviderEntry{Name: "whisper", BaseURL: "http://localhost:8080", Model: "base.en"}
	p, err := reg.CreateSTT(entry)
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p != want {
		t.Error("CreateSTT did not return the factory's provider")
	}
	if got.BaseURL != entry.BaseURL || got.Model != entry.Model {
		t.Errorf("factory received %+v, want %+v", got, entry)
	}
}

func TestRegistry_NamesSortedAndOverwrite(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	factory := func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil }
	reg.RegisterSTT("whisper", factory)
	reg.RegisterSTT("deepgram", factory)
	reg.RegisterSTT("whisper", factory)

	if got, want := reg.Names("stt"), []string{"deepgram", "whisper"}; !slices.Equal(got, want) {
		t.Errorf("Names(stt) = %v, want %v", got, want)
	}
	if got := reg.Names("llm"); len(got) != 0 {
		t.Errorf("Names(llm) = %v, want empty", got)
	}
	if got := reg.Names("bogus"); len(got) != 0 {
		t.Errorf("Names(bogus) = %v, want empty", got)
	}
}
