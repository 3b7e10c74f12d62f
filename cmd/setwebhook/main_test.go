package main

import (
	"context"
	"errors"
	"testing"

	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
)

type fakeRegistrar struct {
	registered string
	reported   string
	regErr     error
}

func (f *fakeRegistrar) RegisterWebhook(_ context.Context, url string) error {
	if f.regErr != nil {
		return f.regErr
	}
	f.registered = url
	return nil
}

func (f *fakeRegistrar) GetWebhookStatus(context.Context) (telegram.WebhookInfo, error) {
	url := f.registered
	if f.reported != "" {
		url = f.reported
	}
	return telegram.WebhookInfo{URL: url}, nil
}

func TestRegisterConfirmsURL(t *testing.T) {
	client := &fakeRegistrar{}
	if err := register(context.Background(), client, "https://hooks.example/webhooks/telegram"); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestRegisterFailsWhenProviderReportsOtherURL(t *testing.T) {
	client := &fakeRegistrar{reported: "https://old.example/hook"}

	err := register(context.Background(), client, "https://hooks.example/webhooks/telegram")
	var regErr *telegram.RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
}

func TestRegisterPropagatesProviderRejection(t *testing.T) {
	client := &fakeRegistrar{regErr: &telegram.RegistrationError{URL: "http://x", Err: errors.New("https required")}}

	err := register(context.Background(), client, "http://x")
	var regErr *telegram.RegistrationError
	if !errors.As(err, &regErr) || regErr.URL != "http://x" {
		t.Fatalf("expected provider rejection, got %v", err)
	}
}
