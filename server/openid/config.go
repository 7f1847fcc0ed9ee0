package openid

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/liquidtune/tunevault/server/config"
)

var verifier *oidc.IDTokenVerifier

// Configure discovers the provider when openid is enabled.
func Configure(ctx context.Context) error {
	if !config.Instance().OpenId.UseOpenId {
		return nil
	}

	provider, err := oidc.NewProvider(ctx, config.Instance().OpenId.ProviderURL)
	if err != nil {
		return err
	}

	verifier = provider.Verifier(&oidc.Config{
		ClientID: config.Instance().OpenId.ClientId,
	})

	return nil
}

func whitelist() []string { return config.Instance().OpenId.EmailWhitelist }
