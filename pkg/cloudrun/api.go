package cloudrun

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	run "google.golang.org/api/run/v1"
)

const invokerRole = "roles/run.invoker"

// ServicesAPI is the subset of the Cloud Run Admin API used to deploy a service.
type ServicesAPI interface {
	Get(ctx context.Context, name string) (*run.Service, error)
	Create(ctx context.Context, parent string, service *run.Service) (*run.Service, error)
	Replace(ctx context.Context, name string, service *run.Service) (*run.Service, error)
	AllowUnauthenticated(ctx context.Context, resource string) error
}

// APIFactory returns a client for the regional endpoint of a region.
type APIFactory func(ctx context.Context, region string) (ServicesAPI, error)

type apiClient struct {
	service *run.APIService
}

var _ ServicesAPI = &apiClient{}

// NewAPI creates a client for the regional endpoint, authenticating with application default credentials
// unless other options are given.
func NewAPI(ctx context.Context, region string, opts ...option.ClientOption) (ServicesAPI, error) {
	opts = append([]option.ClientOption{option.WithEndpoint(fmt.Sprintf("https://%s-run.googleapis.com/", region))}, opts...)
	service, err := run.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &apiClient{service: service}, nil
}

func (c *apiClient) Get(ctx context.Context, name string) (*run.Service, error) {
	return c.service.Namespaces.Services.Get(name).Context(ctx).Do()
}

func (c *apiClient) Create(ctx context.Context, parent string, service *run.Service) (*run.Service, error) {
	return c.service.Namespaces.Services.Create(parent, service).Context(ctx).Do()
}

func (c *apiClient) Replace(ctx context.Context, name string, service *run.Service) (*run.Service, error) {
	return c.service.Namespaces.Services.ReplaceService(name, service).Context(ctx).Do()
}

func (c *apiClient) AllowUnauthenticated(ctx context.Context, resource string) error {
	policy, err := c.service.Projects.Locations.Services.GetIamPolicy(resource).Context(ctx).Do()
	if err != nil {
		return err
	}

	for _, binding := range policy.Bindings {
		if binding.Role != invokerRole {
			continue
		}
		for _, member := range binding.Members {
			if member == "allUsers" {
				return nil
			}
		}
	}

	policy.Bindings = append(policy.Bindings, &run.Binding{
		Role:    invokerRole,
		Members: []string{"allUsers"},
	})

	_, err = c.service.Projects.Locations.Services.SetIamPolicy(resource, &run.SetIamPolicyRequest{
		Policy: policy,
	}).Context(ctx).Do()
	return err
}

// IsNotFound reports whether an API error means that the requested object does not exist.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
