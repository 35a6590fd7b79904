// Package msecrets wraps AWS Secrets Manager for the permit-signing key
// material (spec.md §4.4's key rotation), read by the gateway's permit
// issuer and verifier. Key versions live inside the secret's JSON value
// (see KeyMaterial), so a rotation can introduce vN+1 while vN remains
// valid for permits already issued under it; FetchKeyMaterial reads the
// secret's current value and requests no particular version stage.
package msecrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// KeyMaterial is the JSON shape stored in the secret: the active signing
// key version plus every still-valid key, keyed by integer version
// (stringified) and mapping to the raw HMAC secret value itself — e.g.
// {"activeVersion":"1","keys":{"1":"test-secret-v1"}} per spec.md §4.4's
// key-rotation scheme.
type KeyMaterial struct {
	ActiveVersion string            `json:"activeVersion"`
	Keys          map[string]string `json:"keys"`
}

// Client wraps a Secrets Manager client bound to one secret ARN.
type Client struct {
	api      *secretsmanager.Client
	secretID string
}

// New builds a Client bound to secretID (name or ARN).
func New(api *secretsmanager.Client, secretID string) *Client {
	return &Client{api: api, secretID: secretID}
}

// FetchKeyMaterial retrieves and decodes the current key material.
func (c *Client) FetchKeyMaterial(ctx context.Context) (KeyMaterial, error) {
	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(c.secretID),
	})
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("msecrets: get secret value: %w", err)
	}

	if out.SecretString == nil {
		return KeyMaterial{}, fmt.Errorf("msecrets: secret %s has no string value", c.secretID)
	}

	var km KeyMaterial
	if err := json.Unmarshal([]byte(*out.SecretString), &km); err != nil {
		return KeyMaterial{}, fmt.Errorf("msecrets: decode key material: %w", err)
	}

	return km, nil
}
