package keyaccess

import (
	"crypto/sha256"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

const (
	JSONWebSignature2020 = "JsonWebSignature2020"
	AssertionMethod      = "assertionMethod"

	proofKey   = "proof"
	contextKey = "@context"
	jwsKey     = "jws"
)

// DataIntegrityKeyAccess produces and checks JsonWebSignature2020 proofs (https://w3c.github.io/vc-jws-2020/). The
// signature is a detached, unencoded JWS over the hashes of the URDNA2015 canonical forms of the proof options and
// of the document.
type DataIntegrityKeyAccess struct {
	loader ld.DocumentLoader
}

func NewDataIntegrityKeyAccess(loader ld.DocumentLoader) *DataIntegrityKeyAccess {
	return &DataIntegrityKeyAccess{loader: loader}
}

// Sign returns a copy of document carrying a proof made with key.
func (ka DataIntegrityKeyAccess) Sign(document map[string]any, key jwk.Key, verificationMethod string, created time.Time) (map[string]any, error) {
	if document == nil {
		return nil, errors.New("document cannot be nil")
	}
	alg, err := AlgorithmForKey(key)
	if err != nil {
		return nil, err
	}

	proof := map[string]any{
		"type":               JSONWebSignature2020,
		"created":            created.UTC().Format(time.RFC3339),
		"verificationMethod": verificationMethod,
		"proofPurpose":       AssertionMethod,
	}
	payload, err := ka.signingInput(document, proof)
	if err != nil {
		return nil, err
	}

	headers := jws.NewHeaders()
	if err = headers.Set("b64", false); err != nil {
		return nil, errors.Wrap(err, "setting b64 header")
	}
	if err = headers.Set(jws.CriticalKey, []string{"b64"}); err != nil {
		return nil, errors.Wrap(err, "setting crit header")
	}
	signature, err := jws.Sign(nil, jws.WithKey(alg, key, jws.WithProtectedHeaders(headers)), jws.WithDetachedPayload(payload))
	if err != nil {
		return nil, errors.Wrap(err, "signing proof")
	}
	proof[jwsKey] = string(signature)

	signed := make(map[string]any, len(document)+1)
	for k, v := range document {
		signed[k] = v
	}
	signed[proofKey] = proof
	return signed, nil
}

// Verify checks the proof of document against publicKey.
func (ka DataIntegrityKeyAccess) Verify(document map[string]any, publicKey jwk.Key) error {
	rawProof, ok := document[proofKey]
	if !ok {
		return errors.New("document has no proof")
	}
	proof, ok := rawProof.(map[string]any)
	if !ok {
		return errors.New("proof is not an object")
	}
	signature, ok := proof[jwsKey].(string)
	if !ok || signature == "" {
		return errors.New("proof has no jws")
	}
	if proof["type"] != JSONWebSignature2020 {
		return errors.Errorf("unsupported proof type: %v", proof["type"])
	}

	unsigned := make(map[string]any, len(document))
	for k, v := range document {
		if k != proofKey {
			unsigned[k] = v
		}
	}
	options := make(map[string]any, len(proof))
	for k, v := range proof {
		if k != jwsKey {
			options[k] = v
		}
	}
	payload, err := ka.signingInput(unsigned, options)
	if err != nil {
		return err
	}

	alg, err := AlgorithmForKey(publicKey)
	if err != nil {
		return err
	}
	if _, err = jws.Verify([]byte(signature), jws.WithKey(alg, publicKey), jws.WithDetachedPayload(payload)); err != nil {
		return errors.Wrap(err, "verifying proof")
	}
	return nil
}

func (ka DataIntegrityKeyAccess) signingInput(document, proofOptions map[string]any) ([]byte, error) {
	options := make(map[string]any, len(proofOptions)+1)
	for k, v := range proofOptions {
		options[k] = v
	}
	if c, ok := document[contextKey]; ok {
		options[contextKey] = c
	}

	canonicalOptions, err := ka.canonicalize(options)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalizing proof options")
	}
	canonicalDocument, err := ka.canonicalize(document)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalizing document")
	}
	optionsHash := sha256.Sum256([]byte(canonicalOptions))
	documentHash := sha256.Sum256([]byte(canonicalDocument))
	return append(optionsHash[:], documentHash[:]...), nil
}

func (ka DataIntegrityKeyAccess) canonicalize(document map[string]any) (string, error) {
	proc := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	options.Algorithm = "URDNA2015"
	options.Format = "application/n-quads"
	options.ProduceGeneralizedRdf = false
	options.DocumentLoader = ka.loader

	normalized, err := proc.Normalize(document, options)
	if err != nil {
		return "", err
	}
	canonical, ok := normalized.(string)
	if !ok {
		return "", errors.Errorf("unexpected normalized form: %T", normalized)
	}
	if strings.TrimSpace(canonical) == "" {
		return "", errors.New("document has no linked data statements")
	}
	return canonical, nil
}
