package keystore

import (
	"github.com/lestrrat-go/jwx/v2/jwk"
)

type StoreKeyRequest struct {
	ID         string
	Controller string
	// PrivateKeyJWK is the JSON serialization of a private JWK.
	PrivateKeyJWK []byte
}

type GetKeyRequest struct {
	ID string
}

type GetKeyResponse struct {
	ID         string
	Controller string
	Key        jwk.Key
	CreatedAt  string
}

type GetKeyDetailsRequest struct {
	ID string
}

type GetKeyDetailsResponse struct {
	ID           string
	Controller   string
	CreatedAt    string
	PublicKeyJWK jwk.Key
}

type DeleteKeyRequest struct {
	ID string
}
