package binder

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"cloud.google.com/go/compute/metadata"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	container "google.golang.org/api/container/v1"
	"google.golang.org/api/option"
	"k8s.io/client-go/rest"

	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/kubeclient"
)

// ClusterLister lists the GKE clusters of a project in all locations.
type ClusterLister interface {
	ListClusters(ctx context.Context, project string) ([]*container.Cluster, error)
}

type containerLister struct {
	service *container.Service
}

func (l *containerLister) ListClusters(ctx context.Context, project string) ([]*container.Cluster, error) {
	resp, err := l.service.Projects.Locations.Clusters.List(fmt.Sprintf("projects/%s/locations/-", project)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Clusters, nil
}

// GKE binds to clusters through the Container API, authenticating with
// Google application default credentials.
type GKE struct {
	Clusters    ClusterLister
	TokenSource oauth2.TokenSource
	// DefaultProject is used when the environment has no project configured.
	DefaultProject string
	// DetectProject is the last resort for finding a project.
	DetectProject func(ctx context.Context) (string, error)
}

var _ Binder = &GKE{}

func NewGKE(ctx context.Context) (*GKE, error) {
	creds, err := google.FindDefaultCredentials(ctx, container.CloudPlatformScope)
	if err != nil {
		return nil, failure.Errorf(failure.Binding, "find application default credentials: %w", err)
	}

	service, err := container.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, failure.Errorf(failure.Binding, "create container API client: %w", err)
	}

	return &GKE{
		Clusters:       &containerLister{service: service},
		TokenSource:    creds.TokenSource,
		DefaultProject: creds.ProjectID,
		DetectProject:  MetadataProject,
	}, nil
}

// MetadataProject returns the project of the Compute Engine instance we are running on.
func MetadataProject(ctx context.Context) (string, error) {
	if !metadata.OnGCE() {
		return "", fmt.Errorf("not running on Google Cloud")
	}
	return metadata.ProjectIDWithContext(ctx)
}

func (g *GKE) project(ctx context.Context, location Location) (string, error) {
	if len(location.Project) > 0 {
		return location.Project, nil
	}
	if len(g.DefaultProject) > 0 {
		return g.DefaultProject, nil
	}
	if g.DetectProject == nil {
		return "", fmt.Errorf("no project configured")
	}
	project, err := g.DetectProject(ctx)
	if err != nil {
		return "", fmt.Errorf("no project configured, and auto-detection failed: %w", err)
	}
	log.Debugf("Detected project %s from instance metadata", project)
	return project, nil
}

func (g *GKE) Bind(ctx context.Context, location Location) (kubeclient.Interface, error) {
	project, err := g.project(ctx, location)
	if err != nil {
		return nil, failure.Wrap(failure.Binding, err)
	}

	clusters, err := g.Clusters.ListClusters(ctx, project)
	if err != nil {
		return nil, failure.Errorf(failure.Binding, "list clusters in project %s: %w", project, err)
	}

	cluster, err := FindCluster(clusters, location.Cluster, location.Region)
	if err != nil {
		return nil, failure.Errorf(failure.Binding, "project %s: %w", project, err)
	}

	config, err := RestConfig(cluster, g.TokenSource)
	if err != nil {
		return nil, failure.Errorf(failure.Binding, "cluster %s: %w", cluster.Name, err)
	}

	log.WithFields(log.Fields{
		"project":  project,
		"location": cluster.Location,
		"cluster":  cluster.Name,
	}).Debugf("Bound to cluster at %s", cluster.Endpoint)

	client, err := kubeclient.New(config, location.Cluster, location.Namespace)
	if err != nil {
		return nil, failure.Wrap(failure.Binding, err)
	}

	return client, nil
}

// FindCluster returns the cluster with the given name located in region or one of its zones.
// An empty region matches every location.
func FindCluster(clusters []*container.Cluster, name, region string) (*container.Cluster, error) {
	candidates := make([]string, 0, len(clusters))

	for _, cluster := range clusters {
		candidates = append(candidates, cluster.Name+"@"+cluster.Location)
		if cluster.Name != name {
			continue
		}
		if len(region) == 0 || cluster.Location == region || strings.HasPrefix(cluster.Location, region+"-") {
			return cluster, nil
		}
	}

	sort.Strings(candidates)
	where := "any region"
	if len(region) > 0 {
		where = "region " + region
	}

	return nil, fmt.Errorf("cluster %s not found in %s; available clusters are %v", name, where, candidates)
}

// RestConfig creates a client configuration for a GKE cluster, authenticating every request with tokens from ts.
func RestConfig(cluster *container.Cluster, ts oauth2.TokenSource) (*rest.Config, error) {
	if cluster.MasterAuth == nil {
		return nil, fmt.Errorf("cluster has no master auth configuration")
	}

	ca, err := base64.StdEncoding.DecodeString(cluster.MasterAuth.ClusterCaCertificate)
	if err != nil {
		return nil, fmt.Errorf("decode cluster CA certificate: %w", err)
	}
	if !x509.NewCertPool().AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("cluster CA certificate contains no PEM encoded certificates")
	}

	return &rest.Config{
		Host: "https://" + cluster.Endpoint,
		TLSClientConfig: rest.TLSClientConfig{
			CAData: ca,
		},
		WrapTransport: func(rt http.RoundTripper) http.RoundTripper {
			return &oauth2.Transport{
				Source: ts,
				Base:   rt,
			}
		},
	}, nil
}
