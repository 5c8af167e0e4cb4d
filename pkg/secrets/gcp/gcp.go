// Package gcp provides a Google Secret Manager implementation of
// secrets.Store.
package gcp

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/crowdit/crowdmcp/pkg/secrets"
)

// DefaultProject is used when no project is configured.
const DefaultProject = "crowdmcp"

// API is the subset of the Secret Manager client the store uses.
type API interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	Close() error
}

// Config holds Secret Manager settings.
type Config struct {
	Project         string
	CredentialsFile string
}

// Store reads and writes secrets in one GCP project.
type Store struct {
	api     API
	project string
}

var _ secrets.Store = (*Store)(nil)

// New connects to Secret Manager using application default credentials,
// or the configured credentials file.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating secret manager client: %w", err)
	}
	return NewWithAPI(client, cfg.Project), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, project string) *Store {
	if project == "" {
		project = DefaultProject
	}
	return &Store{api: api, project: project}
}

// Get reads the latest version of the named secret.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	resp, err := s.api.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretPath(name) + "/versions/latest",
	})
	if err != nil {
		return "", mapError(name, err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// Put adds a new version, creating the secret first when it does not exist.
func (s *Store) Put(ctx context.Context, name, value string) error {
	err := s.addVersion(ctx, name, value)
	if status.Code(err) != codes.NotFound {
		return mapError(name, err)
	}

	_, err = s.api.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   "projects/" + s.project,
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating secret %s: %w", name, err)
	}
	return mapError(name, s.addVersion(ctx, name, value))
}

func (s *Store) addVersion(ctx context.Context, name, value string) error {
	_, err := s.api.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretPath(name),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	})
	return err
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.api.Close()
}

func (s *Store) secretPath(name string) string {
	return "projects/" + s.project + "/secrets/" + name
}

func mapError(name string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", name, secrets.ErrNotFound)
	}
	return fmt.Errorf("secret %s: %w", name, err)
}
