package cluster_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"

	"github.com/nais/promote/pkg/binder"
	"github.com/nais/promote/pkg/cluster"
	"github.com/nais/promote/pkg/converge"
	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/kubeclient"
	"github.com/nais/promote/pkg/platform"
	"github.com/nais/promote/pkg/workdir"
)

type staticBinder struct {
	client kubeclient.Interface
	err    error
	bound  []binder.Location
}

func (b *staticBinder) Bind(_ context.Context, location binder.Location) (kubeclient.Interface, error) {
	b.bound = append(b.bound, location)
	return b.client, b.err
}

func target(domain string) environment.Target {
	return environment.Target{
		Environment: environment.Staging,
		App:         "helloworld",
		ClusterName: "helloworld-staging",
		Namespace:   "helloworld-staging",
		Domain:      domain,
		Repository:  "eu.gcr.io/acme",
		Version:     "v2",
		Memory:      "512Mi",
		CPU:         "250m",
		CPULimit:    "1",
		Replicas:    2,
		Port:        8080,
		HealthPath:  "/ping",
		Secrets:     map[string]string{},
	}
}

func newPlatform(t *testing.T, static *fake.Clientset, dyn *dynamicfake.FakeDynamicClient) (*cluster.Platform, *staticBinder) {
	w, err := workdir.New(t.TempDir(), true)
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	b := &staticBinder{client: kubeclient.NewFromClients(static, dyn, "helloworld-staging", "helloworld-staging")}

	return &cluster.Platform{
		Binder:  b,
		Poller:  converge.Poller{Interval: time.Millisecond, Timeout: time.Second},
		Workdir: w,
		Logger:  log.NewEntry(logger),
	}, b
}

func mutations(dyn *dynamicfake.FakeDynamicClient) []string {
	m := make([]string, 0)
	for _, action := range dyn.Actions() {
		if action.GetVerb() != "get" {
			m = append(m, action.GetVerb()+" "+action.GetResource().Resource)
		}
	}
	return m
}

func TestApplyWithoutDomain(t *testing.T) {
	ctx := context.Background()
	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	p, b := newPlatform(t, fake.NewSimpleClientset(), dyn)

	stage, err := p.Bind(ctx, target(""))
	require.NoError(t, err)
	assert.Equal(t, []binder.Location{{Cluster: "helloworld-staging", Namespace: "helloworld-staging"}}, b.bound)

	require.NoError(t, stage.Apply(ctx))
	assert.Equal(t, []string{
		"create namespaces",
		"create deployments",
		"create services",
	}, mutations(dyn))

	dyn.ClearActions()
	require.NoError(t, stage.Apply(ctx))
	assert.Empty(t, mutations(dyn))
}

func TestApplyWithDomain(t *testing.T) {
	ctx := context.Background()
	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	p, _ := newPlatform(t, fake.NewSimpleClientset(), dyn)

	stage, err := p.Bind(ctx, target("hello.example.com"))
	require.NoError(t, err)

	require.NoError(t, stage.Apply(ctx))
	assert.Equal(t, []string{
		"create namespaces",
		"create deployments",
		"create managedcertificates",
		"create backendconfigs",
		"create services",
		"create ingresses",
	}, mutations(dyn))

	dyn.ClearActions()
	require.NoError(t, stage.Apply(ctx))
	assert.Empty(t, mutations(dyn))
}

func TestApplyNewVersionPatchesDeploymentOnly(t *testing.T) {
	ctx := context.Background()
	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	p, _ := newPlatform(t, fake.NewSimpleClientset(), dyn)

	stage, err := p.Bind(ctx, target("hello.example.com"))
	require.NoError(t, err)
	require.NoError(t, stage.Apply(ctx))

	next := target("hello.example.com")
	next.Version = "v3"
	stage, err = p.Bind(ctx, next)
	require.NoError(t, err)

	dyn.ClearActions()
	require.NoError(t, stage.Apply(ctx))
	assert.Equal(t, []string{"patch deployments"}, mutations(dyn))
}

func TestApplyAfterDomainIsAdded(t *testing.T) {
	ctx := context.Background()
	static := fake.NewSimpleClientset()
	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	p, _ := newPlatform(t, static, dyn)

	stage, err := p.Bind(ctx, target(""))
	require.NoError(t, err)
	require.NoError(t, stage.Apply(ctx))

	stage, err = p.Bind(ctx, target("hello.example.com"))
	require.NoError(t, err)

	dyn.ClearActions()
	require.NoError(t, stage.Apply(ctx))
	assert.Equal(t, []string{
		"create managedcertificates",
		"create backendconfigs",
		"patch services",
		"create ingresses",
	}, mutations(dyn))

	svc, err := dyn.Resource(corev1.SchemeGroupVersion.WithResource("services")).Namespace("helloworld-staging").Get(ctx, "helloworld", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "NodePort", svc.Object["spec"].(map[string]any)["type"])
	assert.Contains(t, svc.GetAnnotations(), "cloud.google.com/backend-config")
}

func TestApplyPrintsResources(t *testing.T) {
	ctx := context.Background()
	p, _ := newPlatform(t, fake.NewSimpleClientset(), dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()))
	out := &bytes.Buffer{}
	p.PrintTo = out

	stage, err := p.Bind(ctx, target(""))
	require.NoError(t, err)
	require.NoError(t, stage.Apply(ctx))
	assert.Contains(t, out.String(), "kind: Deployment")
}

func TestBindFailure(t *testing.T) {
	p, b := newPlatform(t, fake.NewSimpleClientset(), dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()))
	b.err = failure.Errorf(failure.Binding, "cluster helloworld-staging not found")

	_, err := p.Bind(context.Background(), target(""))
	assert.Equal(t, failure.Binding, failure.KindOf(err))
}

func TestRender(t *testing.T) {
	p, b := newPlatform(t, fake.NewSimpleClientset(), dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()))
	out := &bytes.Buffer{}

	err := p.Render(out, target("hello.example.com"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "kind: ManagedCertificate")
	assert.Contains(t, out.String(), "kind: Ingress")
	assert.Empty(t, b.bound)
}

func converged(version string, pods int) []runtime.Object {
	objects := []runtime.Object{
		&appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: "helloworld", Namespace: "helloworld-staging", Generation: 2},
			Spec:       appsv1.DeploymentSpec{Replicas: ptr.To(int32(pods))},
			Status: appsv1.DeploymentStatus{
				Replicas:           int32(pods),
				UpdatedReplicas:    int32(pods),
				AvailableReplicas:  int32(pods),
				ObservedGeneration: 2,
			},
		},
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: "helloworld", Namespace: "helloworld-staging"},
			Status: corev1.ServiceStatus{
				LoadBalancer: corev1.LoadBalancerStatus{
					Ingress: []corev1.LoadBalancerIngress{{IP: "35.1.2.3"}},
				},
			},
		},
		&networkingv1.Ingress{
			ObjectMeta: metav1.ObjectMeta{Name: "helloworld", Namespace: "helloworld-staging"},
			Status: networkingv1.IngressStatus{
				LoadBalancer: networkingv1.IngressLoadBalancerStatus{
					Ingress: []networkingv1.IngressLoadBalancerIngress{{IP: "34.4.5.6"}},
				},
			},
		},
	}
	for i := 0; i < pods; i++ {
		objects = append(objects, &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      fmt.Sprintf("helloworld-%d", i),
				Namespace: "helloworld-staging",
				Labels:    map[string]string{"app": "helloworld", "version": version},
			},
			Status: corev1.PodStatus{Phase: corev1.PodRunning},
		})
	}
	return objects
}

func TestConverge(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		domain   string
		endpoint platform.Endpoint
	}{
		{
			domain:   "",
			endpoint: platform.Endpoint{Address: "35.1.2.3", Port: 80},
		},
		{
			domain:   "hello.example.com",
			endpoint: platform.Endpoint{Address: "34.4.5.6", Port: 443, URL: "https://hello.example.com"},
		},
	} {
		static := fake.NewSimpleClientset(converged("v2", 2)...)
		p, _ := newPlatform(t, static, dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()))

		stage, err := p.Bind(ctx, target(tt.domain))
		require.NoError(t, err)

		endpoint, err := stage.Converge(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.endpoint, endpoint)
	}
}

func TestConvergeTimesOutOnOldPods(t *testing.T) {
	ctx := context.Background()
	static := fake.NewSimpleClientset(converged("v1", 2)...)
	p, _ := newPlatform(t, static, dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()))
	p.Poller.Timeout = 50 * time.Millisecond

	stage, err := p.Bind(ctx, target(""))
	require.NoError(t, err)

	_, err = stage.Converge(ctx)
	assert.Equal(t, failure.ConvergenceTimeout, failure.KindOf(err))
	assert.ErrorContains(t, err, "pod generation did not converge")
	assert.ErrorContains(t, err, "v1/Running")
}
