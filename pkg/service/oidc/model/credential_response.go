package model

// CredentialResponse is a response from a Credential Issuer to a Credential Request.
type CredentialResponse struct {
	// Format is the format of the issued credential.
	Format string `json:"format"`

	// Credential is a string for JWT formats and an object for ldp_vc.
	Credential any `json:"credential"`

	// CNonce is the nonce the wallet must use for the proof of its next credential request.
	CNonce string `json:"c_nonce,omitempty"`

	// CNonceExpiresIn is the lifetime of the c_nonce in seconds.
	CNonceExpiresIn int `json:"c_nonce_expires_in,omitempty"`
}

// CredentialErrorResponse is returned instead of a CredentialResponse when issuance fails.
type CredentialErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	CNonce           string `json:"c_nonce,omitempty"`
	CNonceExpiresIn  int    `json:"c_nonce_expires_in,omitempty"`
}
