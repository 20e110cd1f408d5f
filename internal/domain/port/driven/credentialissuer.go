package driven

import "context"

// CredentialIssuer converts the long-lived GitHub App identity into a
// short-lived, scope-limited installation access token. The token is used
// for exactly one pipeline run and never cached across runs.
type CredentialIssuer interface {
	MintInstallationToken(ctx context.Context, installationID int64) (string, error)
}
