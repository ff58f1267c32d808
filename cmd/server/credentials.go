package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/karlokarate/nxcatalog/internal/credential"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/provider/xtream"
)

// credentialSeparator joins username and password inside one encrypted
// handle, so SourceAccount carries a single CredentialsHandle field rather
// than two.
const credentialSeparator = "\x00"

// accountCredentialResolver implements xtream.CredentialResolver by
// loading the account's Endpoint/CredentialsHandle from the entity store
// and decrypting the handle on every call. It does not cache the
// decrypted secret in memory beyond the single Resolve call.
type accountCredentialResolver struct {
	store     nx.EntityStore
	encryptor *credential.Encryptor
}

func newAccountCredentialResolver(store nx.EntityStore, encryptor *credential.Encryptor) *accountCredentialResolver {
	return &accountCredentialResolver{store: store, encryptor: encryptor}
}

var _ xtream.CredentialResolver = (*accountCredentialResolver)(nil)

func (r *accountCredentialResolver) Resolve(ctx context.Context, accountKey string) (xtream.Credentials, error) {
	account, err := r.store.SourceAccounts().Get(ctx, accountKey)
	if err != nil {
		return xtream.Credentials{}, fmt.Errorf("credentials: load account %s: %w", accountKey, err)
	}

	plaintext, err := r.encryptor.Decrypt(account.CredentialsHandle)
	if err != nil {
		return xtream.Credentials{}, fmt.Errorf("credentials: decrypt handle for %s: %w", accountKey, err)
	}

	username, password, ok := strings.Cut(plaintext, credentialSeparator)
	if !ok {
		return xtream.Credentials{}, fmt.Errorf("credentials: malformed handle for %s", accountKey)
	}

	return xtream.Credentials{
		BaseURL:  account.Endpoint,
		Username: username,
		Password: password,
	}, nil
}

// encryptXtreamCredentials packs username/password into the handle format
// accountCredentialResolver expects, encrypted with enc. seedProviderAAccount
// uses this at startup to populate SourceAccount.CredentialsHandle from the
// ProviderA config block.
func encryptXtreamCredentials(enc *credential.Encryptor, username, password string) (string, error) {
	return enc.Encrypt(username + credentialSeparator + password)
}
