package azure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/go-autorest/autorest"
	"github.com/Azure/go-autorest/autorest/adal"
	autorestazure "github.com/Azure/go-autorest/autorest/azure"
)

// Credentials selects how to authenticate against Azure Resource Manager:
// a user assigned managed identity when MIClientID is set, a service
// principal otherwise.
type Credentials struct {
	Environment    string
	TenantID       string
	MIClientID     string
	SPClientID     string
	SPClientSecret string
}

// Environment resolves the cloud by name, defaulting to the public cloud.
func Environment(name string) (autorestazure.Environment, error) {
	if strings.TrimSpace(name) == "" {
		return autorestazure.PublicCloud, nil
	}
	return autorestazure.EnvironmentFromName(name)
}

func NewAuthorizer(credentials Credentials) (autorest.Authorizer, error) {
	env, err := Environment(credentials.Environment)
	if err != nil {
		return nil, err
	}

	if credentials.TenantID == "" {
		return nil, errors.New("tenant id is not set")
	}

	if credentials.MIClientID != "" {
		token, err := adal.NewServicePrincipalTokenFromManagedIdentity(env.ResourceManagerEndpoint, &adal.ManagedIdentityOptions{
			ClientID: credentials.MIClientID,
		})
		if err != nil {
			return nil, fmt.Errorf("managed identity %s: %w", credentials.MIClientID, err)
		}
		return autorest.NewBearerAuthorizer(token), nil
	}

	if credentials.SPClientID == "" || credentials.SPClientSecret == "" {
		return nil, errors.New("no subscription credential")
	}

	oauthConfig, err := adal.NewOAuthConfig(env.ActiveDirectoryEndpoint, credentials.TenantID)
	if err != nil {
		return nil, err
	}

	token, err := adal.NewServicePrincipalToken(*oauthConfig, credentials.SPClientID, credentials.SPClientSecret, env.ResourceManagerEndpoint)
	if err != nil {
		return nil, fmt.Errorf("service principal %s: %w", credentials.SPClientID, err)
	}
	return autorest.NewBearerAuthorizer(token), nil
}
