package gcp

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/crowdit/crowdmcp/pkg/secrets"
)

type fakeAPI struct {
	secrets  map[string][]string // secret path -> versions
	accessed []string
	created  []string
	closed   bool
	fail     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{secrets: map[string][]string{}}
}

func (f *fakeAPI) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.accessed = append(f.accessed, req.GetName())
	if f.fail != nil {
		return nil, f.fail
	}
	for path, versions := range f.secrets {
		if path+"/versions/latest" == req.GetName() && len(versions) > 0 {
			return &secretmanagerpb.AccessSecretVersionResponse{
				Name:    req.GetName(),
				Payload: &secretmanagerpb.SecretPayload{Data: []byte(versions[len(versions)-1])},
			}, nil
		}
	}
	return nil, status.Error(codes.NotFound, "secret not found")
}

func (f *fakeAPI) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	versions, ok := f.secrets[req.GetParent()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	f.secrets[req.GetParent()] = append(versions, string(req.GetPayload().GetData()))
	return &secretmanagerpb.SecretVersion{Name: req.GetParent() + "/versions/1"}, nil
}

func (f *fakeAPI) CreateSecret(_ context.Context, req *secretmanagerpb.CreateSecretRequest, _ ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	path := req.GetParent() + "/secrets/" + req.GetSecretId()
	f.created = append(f.created, path)
	f.secrets[path] = nil
	return &secretmanagerpb.Secret{Name: path}, nil
}

func (f *fakeAPI) Close() error {
	f.closed = true
	return nil
}

func TestGetLatestVersion(t *testing.T) {
	api := newFakeAPI()
	api.secrets["projects/crowdmcp-prod/secrets/XERO_CLIENT_ID"] = []string{"old", "cid"}
	s := NewWithAPI(api, "crowdmcp-prod")

	got, err := s.Get(context.Background(), "XERO_CLIENT_ID")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "cid" {
		t.Errorf("Get = %q, want latest version", got)
	}
	if api.accessed[0] != "projects/crowdmcp-prod/secrets/XERO_CLIENT_ID/versions/latest" {
		t.Errorf("accessed %q", api.accessed[0])
	}
}

func TestGetNotFoundMapsToSentinel(t *testing.T) {
	s := NewWithAPI(newFakeAPI(), "")

	_, err := s.Get(context.Background(), "MISSING")
	if !errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetOtherErrorsPassThrough(t *testing.T) {
	api := newFakeAPI()
	api.fail = status.Error(codes.PermissionDenied, "denied")
	s := NewWithAPI(api, "p")

	_, err := s.Get(context.Background(), "X")
	if err == nil || errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("err = %v, want non-NotFound error", err)
	}
}

func TestDefaultProject(t *testing.T) {
	api := newFakeAPI()
	s := NewWithAPI(api, "")
	_, _ = s.Get(context.Background(), "A")
	if api.accessed[0] != "projects/crowdmcp/secrets/A/versions/latest" {
		t.Errorf("accessed %q", api.accessed[0])
	}
}

func TestPutExistingSecret(t *testing.T) {
	api := newFakeAPI()
	api.secrets["projects/p/secrets/M365_REFRESH_TOKEN"] = []string{"rt-1"}
	s := NewWithAPI(api, "p")
	ctx := context.Background()

	if err := s.Put(ctx, "M365_REFRESH_TOKEN", "rt-2"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(api.created) != 0 {
		t.Errorf("unexpected CreateSecret calls: %v", api.created)
	}
	if got, _ := s.Get(ctx, "M365_REFRESH_TOKEN"); got != "rt-2" {
		t.Errorf("Get after Put = %q", got)
	}
}

func TestPutCreatesMissingSecret(t *testing.T) {
	api := newFakeAPI()
	s := NewWithAPI(api, "p")
	ctx := context.Background()

	if err := s.Put(ctx, "XERO_REFRESH_TOKEN", "rt"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(api.created) != 1 || api.created[0] != "projects/p/secrets/XERO_REFRESH_TOKEN" {
		t.Errorf("created = %v", api.created)
	}
	if got, _ := s.Get(ctx, "XERO_REFRESH_TOKEN"); got != "rt" {
		t.Errorf("Get after Put = %q", got)
	}

	if err := s.Close(); err != nil || !api.closed {
		t.Errorf("Close: %v closed=%v", err, api.closed)
	}
}
